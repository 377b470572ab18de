// Package apiclient is the small JSON-over-HTTP layer the service adapters
// share: authentication, timeout, rate limiting and error classification.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Tiliavir/ticket-timer/internal/model"
)

// ErrNotFound marks a 404 response.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s returned status %d", e.URL, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap lets callers match model.ErrServiceUnavailable for every status and
// ErrNotFound for 404.
func (e *StatusError) Unwrap() []error {
	if e.Code == http.StatusNotFound {
		return []error{model.ErrServiceUnavailable, ErrNotFound}
	}
	return []error{model.ErrServiceUnavailable}
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds each request (default 10s).
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// HTTPClient replaces the default client, e.g. an oauth2 client.
	HTTPClient *http.Client
	// Authorize decorates each request, e.g. with basic auth.
	Authorize func(*http.Request)
	Logger    *slog.Logger
}

// Client issues JSON requests against one service.
type Client struct {
	base      string
	http      *http.Client
	limiter   *rate.Limiter
	authorize func(*http.Request)
	log       *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	hc.Timeout = cfg.Timeout

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		http:      hc,
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		authorize: cfg.Authorize,
		log:       log,
	}
}

// BasicAuth returns an Authorize func setting HTTP basic credentials.
func BasicAuth(user, password string) func(*http.Request) {
	return func(r *http.Request) {
		r.SetBasicAuth(user, password)
	}
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base
}

// GetJSON GETs path with query and decodes the body into out. It returns the
// response headers for pagination metadata.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// PostJSON POSTs body encoded as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) (http.Header, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.base+path, data, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrServiceUnavailable, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authorize != nil {
		c.authorize(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrServiceUnavailable, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	c.log.Debug("api request", "method", method, "url", endpoint, "status", resp.StatusCode, "elapsed", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", model.ErrServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.Redacted(), Body: snippet(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %v", model.ErrMalformedResponse, req.URL.Path, err)
		}
	}
	return resp.Header, nil
}

// snippet trims an error body to something printable on one line.
func snippet(data []byte) string {
	s := strings.Join(strings.Fields(string(data)), " ")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
