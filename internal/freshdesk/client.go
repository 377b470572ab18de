// Package freshdesk fetches time entries from the Freshdesk helpdesk API.
package freshdesk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/Tiliavir/ticket-timer/internal/apiclient"
	"github.com/Tiliavir/ticket-timer/internal/model"
	"github.com/Tiliavir/ticket-timer/internal/timecalc"
)

const (
	perPage  = 100
	maxPages = 100
	// apiTime is the timestamp format Freshdesk expects in filters.
	apiTime = "2006-01-02T15:04:05Z"
)

// Config holds the account settings for one agent.
type Config struct {
	URL     string
	AgentID string
	APIKey  string
	// TZShift is the account's offset from UTC in hours.
	TZShift int
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is a Freshdesk adapter. It implements model.Adapter and
// model.TicketTotaler.
type Client struct {
	api     *apiclient.Client
	agentID string
	tzShift time.Duration
	log     *slog.Logger
}

// NewClient creates a Freshdesk client.
func NewClient(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("source", model.SourceFreshdesk)
	return &Client{
		api: apiclient.New(apiclient.Config{
			BaseURL:   cfg.URL,
			Timeout:   cfg.Timeout,
			Authorize: apiclient.BasicAuth(cfg.APIKey, "X"),
			Logger:    log,
		}),
		agentID: cfg.AgentID,
		tzShift: time.Duration(cfg.TZShift) * time.Hour,
		log:     log,
	}
}

func (c *Client) Source() model.Source { return model.SourceFreshdesk }

func (c *Client) Agent() string { return c.agentID }

// timeEntry is the wire shape of /api/v2/time_entries items.
type timeEntry struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	AgentID    int64     `json:"agent_id"`
	Billable   bool      `json:"billable"`
	Note       string    `json:"note"`
	TimeSpent  string    `json:"time_spent"`
	ExecutedAt time.Time `json:"executed_at"`
	StartTime  time.Time `json:"start_time"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Window returns the UTC filter bounds for a local calendar day, shifted by
// the account offset and one second so entries logged exactly at midnight
// are included.
func (c *Client) Window(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(-c.tzShift - time.Second)
	return from, from.Add(24 * time.Hour)
}

// FetchEntries returns the agent's entries executed on day, ordered by ticket
// and then by last update.
func (c *Client) FetchEntries(ctx context.Context, day time.Time) ([]model.TimeEntry, error) {
	from, to := c.Window(day)
	query := url.Values{
		"agent_id":        {c.agentID},
		"executed_after":  {from.Format(apiTime)},
		"executed_before": {to.Format(apiTime)},
	}
	raw, err := c.list(ctx, "/api/v2/time_entries", query)
	if err != nil {
		return nil, err
	}

	kept := raw[:0]
	for _, e := range raw {
		if e.ExecutedAt.IsZero() || e.ExecutedAt.After(from) && e.ExecutedAt.Before(to) {
			kept = append(kept, e)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].TicketID != kept[j].TicketID {
			return kept[i].TicketID < kept[j].TicketID
		}
		return kept[i].UpdatedAt.Before(kept[j].UpdatedAt)
	})

	entries := make([]model.TimeEntry, 0, len(kept))
	for _, e := range kept {
		entry, err := c.mapEntry(e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	c.log.Debug("fetched entries", "day", day.Format("2006-01-02"), "count", len(entries))
	return entries, nil
}

// FetchTicketTotal sums every entry ever logged against ticketID.
func (c *Client) FetchTicketTotal(ctx context.Context, ticketID int) (model.TicketTotal, error) {
	total := model.TicketTotal{Ticket: strconv.Itoa(ticketID)}
	raw, err := c.list(ctx, fmt.Sprintf("/api/v2/tickets/%d/time_entries", ticketID), url.Values{})
	if errors.Is(err, apiclient.ErrNotFound) {
		return total, fmt.Errorf("%w: #%d", model.ErrTicketNotFound, ticketID)
	}
	if err != nil {
		return total, err
	}
	for _, e := range raw {
		spent, err := timecalc.ParseClock(e.TimeSpent)
		if err != nil {
			return total, fmt.Errorf("%w: time entry %d: %v", model.ErrMalformedResponse, e.ID, err)
		}
		if e.Billable {
			total.Bill += spent
		} else {
			total.Free += spent
		}
	}
	return total, nil
}

// list pages through a time entry collection until a short page.
func (c *Client) list(ctx context.Context, path string, query url.Values) ([]timeEntry, error) {
	var all []timeEntry
	query.Set("per_page", strconv.Itoa(perPage))
	for page := 1; page <= maxPages; page++ {
		query.Set("page", strconv.Itoa(page))
		var batch []timeEntry
		if _, err := c.api.GetJSON(ctx, path, query, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			break
		}
	}
	return all, nil
}

// mapEntry converts a Freshdesk time entry into a model.TimeEntry.
func (c *Client) mapEntry(e timeEntry) (model.TimeEntry, error) {
	spent, err := timecalc.ParseClock(e.TimeSpent)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("%w: time entry %d: %v", model.ErrMalformedResponse, e.ID, err)
	}
	if e.TicketID == 0 {
		return model.TimeEntry{}, fmt.Errorf("%w: time entry %d has no ticket_id", model.ErrMalformedResponse, e.ID)
	}
	start := e.StartTime
	if start.IsZero() {
		start = e.ExecutedAt
	}
	ticket := strconv.FormatInt(e.TicketID, 10)
	return model.TimeEntry{
		Source:    model.SourceFreshdesk,
		Ticket:    ticket,
		URL:       c.api.BaseURL() + "/a/tickets/" + ticket,
		Billable:  e.Billable,
		Duration:  spent,
		Note:      e.Note,
		Start:     start,
		Agent:     c.agentID,
		UpdatedAt: e.UpdatedAt,
	}, nil
}
