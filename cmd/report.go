package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/ticket-timer/internal/config"
	"github.com/Tiliavir/ticket-timer/internal/freshdesk"
	"github.com/Tiliavir/ticket-timer/internal/jira"
	"github.com/Tiliavir/ticket-timer/internal/model"
	"github.com/Tiliavir/ticket-timer/internal/report"
	"github.com/Tiliavir/ticket-timer/internal/storage"
	"github.com/Tiliavir/ticket-timer/internal/teamwork"
	"github.com/Tiliavir/ticket-timer/internal/timecalc"
)

func runReport(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd.ErrOrStderr())

	switch outputFormat {
	case report.FormatText, report.FormatJSON, report.FormatYAML:
	default:
		return withCode(exitUsage, fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if ticketID != 0 {
		return runTicket(cmd, cfg, log)
	}

	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	current := now()
	day, err := timecalc.Resolve(arg, cfg.Global.DateFormat, current)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
		return withCode(exitUsage, err)
	}

	adapters := newAdapters(cfg, log)
	if cfg.Cache.Enabled {
		store, err := openCache(cfg)
		if err != nil {
			log.Warn("cache disabled", "error", err)
		} else {
			defer store.Close()
			for i, a := range adapters {
				adapters[i] = storage.NewCached(a, store, refresh, cfg.Cache.TTL, log)
			}
		}
	}

	batches, err := fetchAll(cmd.Context(), adapters, day, strict || cfg.Global.Strict)
	if err != nil {
		return withCode(exitService, err)
	}
	for _, b := range batches {
		if b.Err != nil {
			log.Warn("service failed", "source", b.Source, "error", b.Err)
		}
	}

	workday, live := effectiveWorkday(cfg.Global, day, current)
	result := report.Aggregate(day, batches, workday)
	result.Live = live
	if step := time.Duration(cfg.Global.UntrackedRoundMinutes) * time.Minute; step > 0 {
		result.Untracked = timecalc.CeilTo(result.Untracked, step)
	}

	out := cmd.OutOrStdout()
	opts := report.Options{
		Width: cfg.Global.ProgressBarWidth,
		Color: cfg.Global.Color && !noColor && isTerminal(out),
	}
	return report.Write(out, result, outputFormat, opts)
}

// newAdapters builds one adapter per configured service in report order.
func newAdapters(cfg config.Config, log *slog.Logger) []model.Adapter {
	timeout := cfg.Global.RequestTimeout
	var adapters []model.Adapter
	if cfg.Freshdesk.Enabled() {
		adapters = append(adapters, newFreshdesk(cfg, log))
	}
	if cfg.Jira.Enabled() {
		adapters = append(adapters, jira.NewClient(jira.Config{
			URL:     cfg.Jira.URL,
			Login:   cfg.Jira.Login,
			Secret:  cfg.Jira.Secret,
			Bearer:  cfg.Jira.Bearer,
			Timeout: timeout,
			Logger:  log,
		}))
	}
	if cfg.Teamwork.Enabled() {
		adapters = append(adapters, teamwork.NewClient(teamwork.Config{
			URL:     cfg.Teamwork.URL,
			UserID:  cfg.Teamwork.UserID,
			APIKey:  cfg.Teamwork.Secret,
			Timeout: timeout,
			Logger:  log,
		}))
	}
	return adapters
}

func newFreshdesk(cfg config.Config, log *slog.Logger) *freshdesk.Client {
	return freshdesk.NewClient(freshdesk.Config{
		URL:     cfg.Freshdesk.URL,
		AgentID: cfg.Freshdesk.AgentID,
		APIKey:  cfg.Freshdesk.Secret,
		TZShift: cfg.Freshdesk.TZShift,
		Timeout: cfg.Global.RequestTimeout,
		Logger:  log,
	})
}

func openCache(cfg config.Config) (*storage.Store, error) {
	path, err := cfg.CachePath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// fetchAll queries every adapter concurrently. Each goroutine owns one slot
// of the result. In strict mode the first failure cancels the rest and is
// returned; otherwise failures stay in their batch.
func fetchAll(ctx context.Context, adapters []model.Adapter, day time.Time, strict bool) ([]report.SourceBatch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	batches := make([]report.SourceBatch, len(adapters))
	var g *errgroup.Group
	if strict {
		g, ctx = errgroup.WithContext(ctx)
	} else {
		g = new(errgroup.Group)
	}
	for i, a := range adapters {
		g.Go(func() error {
			entries, err := a.FetchEntries(ctx, day)
			batches[i] = report.SourceBatch{Source: a.Source(), Entries: entries, Err: err}
			if err != nil && strict {
				return fmt.Errorf("%s: %w", a.Source(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// effectiveWorkday returns the workday untracked time is measured against.
// With live_untracked on, today's workday is cut at the current time.
func effectiveWorkday(g config.GlobalConfig, day, at time.Time) (time.Duration, bool) {
	if !g.LiveUntracked || !timecalc.SameDay(day, at) {
		return g.Workday, false
	}
	since := timecalc.SinceMidnight(at)
	if !g.Window.Contains(since) {
		return g.Workday, false
	}
	return g.Window.Elapsed(since), true
}

func runTicket(cmd *cobra.Command, cfg config.Config, log *slog.Logger) error {
	if !cfg.Freshdesk.Enabled() {
		return withCode(exitUsage, fmt.Errorf("%w: --ticket needs a [freshdesk] url", model.ErrConfigInvalid))
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	total, err := newFreshdesk(cfg, log).FetchTicketTotal(ctx, ticketID)
	if errors.Is(err, model.ErrTicketNotFound) {
		return withCode(exitUsage, err)
	}
	if err != nil {
		return withCode(exitService, err)
	}
	return report.RenderTicket(cmd.OutOrStdout(), total)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
