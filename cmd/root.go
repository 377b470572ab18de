package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ticket-timer/internal/config"
	"github.com/Tiliavir/ticket-timer/internal/model"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1
	exitService = 2
)

var (
	configPath   string
	ticketID     int
	outputFormat string
	strict       bool
	refresh      bool
	noColor      bool
	verbose      bool
)

// now is replaced in tests.
var now = time.Now

var rootCmd = &cobra.Command{
	Use:   "timer [offset|date]",
	Short: "Daily time report from Freshdesk, Jira and Teamwork",
	Long: `timer collects the time you logged on one day in Freshdesk, Jira and
Teamwork and prints per-ticket entries, totals by billing category, a
progress bar and the time still untracked.

The optional argument is a day offset (0 = today, 1 = yesterday) or a date
in the configured date_format.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReport,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&configPath, "config", "c", "", "Path to config file (default ~/.timer/config.toml)")
	f.BoolVarP(&verbose, "verbose", "v", false, "Log requests and cache decisions to stderr")

	rootCmd.Flags().IntVarP(&ticketID, "ticket", "t", 0, "Freshdesk ticket #; print the time ever spent on it")
	rootCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format: text, json, yaml")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "Fail the whole run when one service fails")
	rootCmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore cached days and fetch again")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(secretCmd)
}

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, model.ErrServiceUnavailable) || errors.Is(err, model.ErrMalformedResponse) {
		return exitService
	}
	return exitUsage
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file, offering to generate one when it is
// missing.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Config{}, withCode(exitUsage, err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if errors.Is(err, model.ErrConfigMissing) {
		prompt := config.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
		if !prompt.Confirm(fmt.Sprintf("No config found at %s. Create one now?", path)) {
			return config.Config{}, withCode(exitUsage, err)
		}
		cfg, err = config.Generate(path, prompt)
		if err == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Config written to %s\n", path)
		}
	}
	if err != nil {
		return config.Config{}, withCode(exitUsage, err)
	}
	return cfg, nil
}
