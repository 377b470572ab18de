// Package teamwork fetches time entries from the Teamwork projects API.
package teamwork

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/ticket-timer/internal/apiclient"
	"github.com/Tiliavir/ticket-timer/internal/model"
	"github.com/Tiliavir/ticket-timer/internal/timecalc"
)

const maxPages = 100

// Config holds the account settings for one user.
type Config struct {
	URL     string
	UserID  string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is a Teamwork adapter implementing model.Adapter.
type Client struct {
	api    *apiclient.Client
	userID string
	log    *slog.Logger
}

// NewClient creates a Teamwork client.
func NewClient(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("source", model.SourceTeamwork)
	return &Client{
		api: apiclient.New(apiclient.Config{
			BaseURL:   cfg.URL,
			Timeout:   cfg.Timeout,
			Authorize: apiclient.BasicAuth(cfg.APIKey, "X"),
			Logger:    log,
		}),
		userID: cfg.UserID,
		log:    log,
	}
}

func (c *Client) Source() model.Source { return model.SourceTeamwork }

func (c *Client) Agent() string { return c.userID }

// field is a value Teamwork sends either quoted or bare.
type field string

func (f *field) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if s, err := strconv.Unquote(string(data)); err == nil {
		*f = field(s)
		return nil
	}
	*f = field(data)
	return nil
}

func (f field) int() (int64, error) {
	if f == "" {
		return 0, nil
	}
	return strconv.ParseInt(string(f), 10, 64)
}

type timeEntry struct {
	ID          field  `json:"id"`
	TodoItemID  field  `json:"todo-item-id"`
	ProjectID   field  `json:"project-id"`
	ProjectName string `json:"project-name"`
	Description string `json:"description"`
	Hours       field  `json:"hours"`
	Minutes     field  `json:"minutes"`
	IsBillable  field  `json:"isbillable"`
	Date        string `json:"date"`
	UpdatedDate string `json:"updatedDate"`
}

type listResponse struct {
	TimeEntries []timeEntry `json:"time-entries"`
}

// FetchEntries returns the user's entries dated on day in API order.
func (c *Client) FetchEntries(ctx context.Context, day time.Time) ([]model.TimeEntry, error) {
	stamp := day.Format("20060102")
	query := url.Values{
		"userId":   {c.userID},
		"fromdate": {stamp},
		"todate":   {stamp},
	}

	var raw []timeEntry
	for page := 1; page <= maxPages; page++ {
		query.Set("page", strconv.Itoa(page))
		var resp listResponse
		header, err := c.api.GetJSON(ctx, "/time_entries.json", query, &resp)
		if err != nil {
			return nil, err
		}
		raw = append(raw, resp.TimeEntries...)
		pages, _ := strconv.Atoi(header.Get("X-Pages"))
		if page >= pages {
			break
		}
	}

	var entries []model.TimeEntry
	for _, e := range raw {
		entry, err := c.mapEntry(e)
		if err != nil {
			return nil, err
		}
		// date is UTC; the report day is local
		if !timecalc.SameDay(entry.Start.In(day.Location()), day) {
			continue
		}
		entries = append(entries, entry)
	}
	c.log.Debug("fetched entries", "day", day.Format("2006-01-02"), "count", len(entries))
	return entries, nil
}

func (c *Client) mapEntry(e timeEntry) (model.TimeEntry, error) {
	hours, err := e.Hours.int()
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("%w: time entry %s: hours %q", model.ErrMalformedResponse, e.ID, e.Hours)
	}
	minutes, err := e.Minutes.int()
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("%w: time entry %s: minutes %q", model.ErrMalformedResponse, e.ID, e.Minutes)
	}
	ticket := string(e.TodoItemID)
	if ticket == "" || ticket == "0" {
		ticket = string(e.ProjectID)
	}
	if ticket == "" {
		return model.TimeEntry{}, fmt.Errorf("%w: time entry %s has neither task nor project", model.ErrMalformedResponse, e.ID)
	}
	note := strings.TrimSpace(e.Description)
	if note == "" {
		note = e.ProjectName
	}
	start, err := time.Parse(time.RFC3339, e.Date)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("%w: time entry %s: date %q", model.ErrMalformedResponse, e.ID, e.Date)
	}
	updated, _ := time.Parse(time.RFC3339, e.UpdatedDate)
	return model.TimeEntry{
		Source:    model.SourceTeamwork,
		Ticket:    ticket,
		URL:       c.api.BaseURL() + "/#tasks/" + ticket,
		Billable:  e.IsBillable == "1" || e.IsBillable == "true",
		Duration:  time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute,
		Note:      note,
		Start:     start,
		Agent:     c.userID,
		UpdatedAt: updated,
	}, nil
}
