// Package jira fetches worklogs from the Jira REST API (v2).
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Tiliavir/ticket-timer/internal/apiclient"
	"github.com/Tiliavir/ticket-timer/internal/model"
)

const (
	pageSize = 100
	// startedLayout is how Jira renders worklog start times.
	startedLayout = "2006-01-02T15:04:05.000-0700"
)

// Config holds the account settings.
type Config struct {
	URL   string
	Login string
	// Secret is the password, or the personal access token when Bearer is set.
	Secret string
	Bearer bool

	Timeout time.Duration
	// RateLimit caps requests per second; the worklog of every matching
	// issue is a separate call.
	RateLimit float64
	Logger    *slog.Logger
}

// Client is a Jira adapter implementing model.Adapter.
type Client struct {
	api   *apiclient.Client
	login string
	log   *slog.Logger
}

// NewClient creates a Jira client. Bearer tokens are attached by an oauth2
// transport, passwords by basic auth.
func NewClient(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("source", model.SourceJira)
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}

	var hc *http.Client
	authorize := apiclient.BasicAuth(cfg.Login, cfg.Secret)
	if cfg.Bearer {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Secret, TokenType: "Bearer"})
		hc = oauth2.NewClient(context.Background(), ts)
		authorize = nil
	}
	return &Client{
		api: apiclient.New(apiclient.Config{
			BaseURL:    cfg.URL,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			Burst:      5,
			HTTPClient: hc,
			Authorize:  authorize,
			Logger:     log,
		}),
		login: cfg.Login,
		log:   log,
	}
}

func (c *Client) Source() model.Source { return model.SourceJira }

func (c *Client) Agent() string { return c.login }

type searchRequest struct {
	JQL        string   `json:"jql"`
	Fields     []string `json:"fields"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
}

type searchResponse struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Issues     []struct {
		Key string `json:"key"`
	} `json:"issues"`
}

type worklogResponse struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Worklogs   []worklog `json:"worklogs"`
}

type worklog struct {
	ID     string `json:"id"`
	Author struct {
		Name         string `json:"name"`
		EmailAddress string `json:"emailAddress"`
	} `json:"author"`
	Started          string          `json:"started"`
	Updated          string          `json:"updated"`
	TimeSpentSeconds int64           `json:"timeSpentSeconds"`
	Comment          json.RawMessage `json:"comment"`
}

// FetchEntries returns the login's worklogs started on day, issue by issue in
// search order.
func (c *Client) FetchEntries(ctx context.Context, day time.Time) ([]model.TimeEntry, error) {
	date := day.Format("2006-01-02")
	keys, err := c.searchIssues(ctx, fmt.Sprintf("worklogAuthor = %q AND worklogDate = %q", c.login, date))
	if err != nil {
		return nil, err
	}

	var entries []model.TimeEntry
	for _, key := range keys {
		logs, err := c.worklogs(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, w := range logs {
			if !c.isOwn(w) || !strings.HasPrefix(w.Started, date+"T") {
				continue
			}
			entry, err := c.mapWorklog(key, w)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	c.log.Debug("fetched entries", "day", date, "issues", len(keys), "count", len(entries))
	return entries, nil
}

func (c *Client) isOwn(w worklog) bool {
	return strings.EqualFold(w.Author.Name, c.login) || strings.EqualFold(w.Author.EmailAddress, c.login)
}

func (c *Client) searchIssues(ctx context.Context, jql string) ([]string, error) {
	var keys []string
	for start := 0; ; {
		var page searchResponse
		req := searchRequest{JQL: jql, Fields: []string{"key"}, StartAt: start, MaxResults: pageSize}
		if _, err := c.api.PostJSON(ctx, "/rest/api/2/search", req, &page); err != nil {
			return nil, err
		}
		for _, issue := range page.Issues {
			if issue.Key == "" {
				return nil, fmt.Errorf("%w: search result without issue key", model.ErrMalformedResponse)
			}
			keys = append(keys, issue.Key)
		}
		start += len(page.Issues)
		if len(page.Issues) == 0 || start >= page.Total {
			return keys, nil
		}
	}
}

func (c *Client) worklogs(ctx context.Context, key string) ([]worklog, error) {
	var all []worklog
	path := "/rest/api/2/issue/" + url.PathEscape(key) + "/worklog"
	for start := 0; ; {
		var page worklogResponse
		query := url.Values{"startAt": {strconv.Itoa(start)}, "maxResults": {strconv.Itoa(pageSize)}}
		if _, err := c.api.GetJSON(ctx, path, query, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Worklogs...)
		start += len(page.Worklogs)
		if len(page.Worklogs) == 0 || start >= page.Total {
			return all, nil
		}
	}
}

func (c *Client) mapWorklog(key string, w worklog) (model.TimeEntry, error) {
	started, err := time.Parse(startedLayout, w.Started)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("%w: worklog %s on %s: started %q", model.ErrMalformedResponse, w.ID, key, w.Started)
	}
	updated, _ := time.Parse(startedLayout, w.Updated)
	return model.TimeEntry{
		Source:    model.SourceJira,
		Ticket:    key,
		URL:       c.api.BaseURL() + "/browse/" + key,
		Duration:  time.Duration(w.TimeSpentSeconds) * time.Second,
		Note:      commentText(w.Comment),
		Start:     started,
		Agent:     c.login,
		UpdatedAt: updated,
	}, nil
}

// commentText returns a plain comment. Rich-text (ADF) comments yield "".
func commentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
