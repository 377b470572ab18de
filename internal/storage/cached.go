package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/Tiliavir/ticket-timer/internal/model"
	"github.com/Tiliavir/ticket-timer/internal/timecalc"
)

// Cached wraps an adapter with the store. Days fetched after they ended are
// served from the store until the snapshot is older than maxAge; anything
// else goes to the service and replaces the snapshot.
type Cached struct {
	next    model.Adapter
	store   *Store
	refresh bool
	maxAge  time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewCached returns a caching adapter. With refresh set it never reads the
// store but still writes it. A zero maxAge never expires a finished day.
func NewCached(next model.Adapter, store *Store, refresh bool, maxAge time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		next:    next,
		store:   store,
		refresh: refresh,
		maxAge:  maxAge,
		now:     time.Now,
		log:     logger.With("source", next.Source()),
	}
}

func (c *Cached) Source() model.Source { return c.next.Source() }

func (c *Cached) Agent() string { return c.next.Agent() }

func (c *Cached) FetchEntries(ctx context.Context, day time.Time) ([]model.TimeEntry, error) {
	if !c.refresh {
		cached, ok, err := c.store.LoadDay(ctx, c.Source(), c.Agent(), day)
		switch {
		case err != nil:
			c.log.Warn("cache read failed", "error", err)
		case ok && c.fresh(cached, day):
			c.log.Debug("serving day from cache", "day", day.Format(dayLayout), "count", len(cached.Entries))
			return cached.Entries, nil
		}
	}

	entries, err := c.next.FetchEntries(ctx, day)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveDay(ctx, c.Source(), c.Agent(), day, entries, c.now()); err != nil {
		c.log.Warn("cache write failed", "error", err)
	}
	return entries, nil
}

// fresh reports whether a snapshot was taken after day ended and is still
// within maxAge.
func (c *Cached) fresh(d Day, day time.Time) bool {
	if d.FetchedAt.Before(timecalc.EndOfDay(day)) {
		return false
	}
	return c.maxAge <= 0 || c.now().Sub(d.FetchedAt) < c.maxAge
}
