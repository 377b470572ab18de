package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Tiliavir/ticket-timer/internal/model"
	"github.com/Tiliavir/ticket-timer/internal/timecalc"
)

// Config is the root configuration, stored in ~/.timer/config.toml.
type Config struct {
	Global    GlobalConfig    `toml:"global"`
	Freshdesk FreshdeskConfig `toml:"freshdesk"`
	Jira      JiraConfig      `toml:"jira"`
	Teamwork  TeamworkConfig  `toml:"teamwork"`
	Cache     CacheConfig     `toml:"cache"`

	// Path is the file the config was read from.
	Path string `toml:"-"`
}

// GlobalConfig holds date handling and display options.
type GlobalConfig struct {
	// DateFormat is a strftime-style pattern for literal date arguments.
	DateFormat string `toml:"date_format"`

	WorkdayBegin string `toml:"workday_begin"`
	WorkdayEnd   string `toml:"workday_end"`
	LunchBegin   string `toml:"lunch_begin"`
	LunchEnd     string `toml:"lunch_end"`
	// WorkdayLength ("HH:MM") overrides the begin/end/lunch window when set.
	WorkdayLength string `toml:"workday_length"`

	ProgressBarWidth      int    `toml:"progress_bar_width"`
	Color                 bool   `toml:"color"`
	LiveUntracked         bool   `toml:"live_untracked"`
	UntrackedRoundMinutes int    `toml:"untracked_round_minutes"`
	Timeout               string `toml:"timeout"`
	Strict                bool   `toml:"strict"`

	Window         Window        `toml:"-"`
	Workday        time.Duration `toml:"-"`
	RequestTimeout time.Duration `toml:"-"`
}

// Window is the working day as offsets from midnight.
type Window struct {
	Begin, End           time.Duration
	LunchBegin, LunchEnd time.Duration
}

// Lunch returns the length of the lunch break.
func (w Window) Lunch() time.Duration {
	return w.LunchEnd - w.LunchBegin
}

// Elapsed returns the working time between Begin and at, lunch excluded.
func (w Window) Elapsed(at time.Duration) time.Duration {
	switch {
	case at <= w.Begin:
		return 0
	case at >= w.End:
		return w.End - w.Begin - w.Lunch()
	case at < w.LunchBegin:
		return at - w.Begin
	case at < w.LunchEnd:
		return w.LunchBegin - w.Begin
	default:
		return at - w.Begin - w.Lunch()
	}
}

// Contains reports whether at lies inside [Begin, End].
func (w Window) Contains(at time.Duration) bool {
	return at >= w.Begin && at <= w.End
}

// FreshdeskConfig configures the helpdesk adapter.
type FreshdeskConfig struct {
	URL        string `toml:"url"`
	AgentID    string `toml:"agent_id"`
	APIKey     string `toml:"api_key"`
	Credential string `toml:"credential"`
	// TZShift is the helpdesk account's offset from UTC in hours.
	TZShift int `toml:"tz_shift"`

	Secret string `toml:"-"`
}

// JiraConfig configures the issue tracker adapter.
type JiraConfig struct {
	URL      string `toml:"url"`
	Login    string `toml:"login"`
	Password string `toml:"password"`
	// Token is a personal access token, sent as a bearer token when set.
	Token      string `toml:"token"`
	Credential string `toml:"credential"`

	Secret string `toml:"-"`
	Bearer bool   `toml:"-"`
}

// TeamworkConfig configures the project tool adapter.
type TeamworkConfig struct {
	URL        string `toml:"url"`
	UserID     string `toml:"user_id"`
	APIKey     string `toml:"api_key"`
	Credential string `toml:"credential"`

	Secret string `toml:"-"`
}

// CacheConfig configures the optional local entry cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// MaxAge bounds how long a finished day is served from the cache
	// before it is fetched again. "0s" keeps it forever.
	MaxAge string `toml:"max_age"`

	TTL time.Duration `toml:"-"`
}

const (
	DefaultDateFormat       = "%d.%m.%Y"
	DefaultProgressBarWidth = 45
	DefaultTimeout          = "10s"
	DefaultCacheMaxAge      = "168h"
)

// Default returns a Config pre-filled with built-in defaults.
func Default() Config {
	return Config{
		Global: GlobalConfig{
			DateFormat:       DefaultDateFormat,
			WorkdayBegin:     "09:00",
			WorkdayEnd:       "18:00",
			LunchBegin:       "13:00",
			LunchEnd:         "14:00",
			ProgressBarWidth: DefaultProgressBarWidth,
			Color:            true,
			Timeout:          DefaultTimeout,
		},
		Freshdesk: FreshdeskConfig{Credential: CredentialConfig},
		Jira:      JiraConfig{Credential: CredentialConfig},
		Teamwork:  TeamworkConfig{Credential: CredentialConfig},
		Cache:     CacheConfig{Path: "~/.timer/cache.db", MaxAge: DefaultCacheMaxAge},
	}
}

// DefaultPath returns ~/.timer/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".timer", "config.toml"), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load reads the config at path, fills defaults, validates every value and
// resolves credentials. A missing file yields model.ErrConfigMissing.
func Load(path string) (Config, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: %s", model.ErrConfigMissing, path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes TOML text on top of Default and validates the result.
func Parse(text string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", model.ErrConfigInvalid, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %s", model.ErrConfigInvalid, undecoded[0])
	}
	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func invalid(key string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrConfigInvalid, key, err)
}

// resolve parses derived values and credentials in place.
func (c *Config) resolve() error {
	g := &c.Global
	if _, err := timecalc.Layout(g.DateFormat); err != nil {
		return invalid("global.date_format", err)
	}

	clocks := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"global.workday_begin", g.WorkdayBegin, &g.Window.Begin},
		{"global.workday_end", g.WorkdayEnd, &g.Window.End},
		{"global.lunch_begin", g.LunchBegin, &g.Window.LunchBegin},
		{"global.lunch_end", g.LunchEnd, &g.Window.LunchEnd},
	}
	for _, cl := range clocks {
		d, err := timecalc.ParseClock(cl.val)
		if err != nil {
			return invalid(cl.key, err)
		}
		*cl.dst = d
	}
	w := g.Window
	if w.End <= w.Begin {
		return invalid("global.workday_end", fmt.Errorf("must be after workday_begin"))
	}
	if w.LunchEnd < w.LunchBegin || w.LunchBegin < w.Begin || w.LunchEnd > w.End {
		return invalid("global.lunch_end", fmt.Errorf("lunch must lie inside the workday"))
	}
	g.Workday = w.End - w.Begin - w.Lunch()
	if g.WorkdayLength != "" {
		d, err := timecalc.ParseClock(g.WorkdayLength)
		if err != nil {
			return invalid("global.workday_length", err)
		}
		g.Workday = d
	}

	if g.ProgressBarWidth <= 0 {
		return invalid("global.progress_bar_width", fmt.Errorf("must be positive, got %d", g.ProgressBarWidth))
	}
	if g.UntrackedRoundMinutes < 0 {
		return invalid("global.untracked_round_minutes", fmt.Errorf("must not be negative"))
	}
	timeout, err := time.ParseDuration(g.Timeout)
	if err != nil || timeout <= 0 {
		return invalid("global.timeout", fmt.Errorf("bad duration %q", g.Timeout))
	}
	g.RequestTimeout = timeout

	ttl, err := time.ParseDuration(c.Cache.MaxAge)
	if err != nil || ttl < 0 {
		return invalid("cache.max_age", fmt.Errorf("bad duration %q", c.Cache.MaxAge))
	}
	c.Cache.TTL = ttl

	if !c.Freshdesk.Enabled() && !c.Jira.Enabled() && !c.Teamwork.Enabled() {
		return fmt.Errorf("%w: no service configured, set url in [freshdesk], [jira] or [teamwork]", model.ErrConfigInvalid)
	}
	if err := c.resolveFreshdesk(); err != nil {
		return err
	}
	if err := c.resolveJira(); err != nil {
		return err
	}
	return c.resolveTeamwork()
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return invalid(key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return invalid(key, fmt.Errorf("want an absolute http(s) URL, got %q", raw))
	}
	return nil
}

func (c *Config) resolveFreshdesk() error {
	f := &c.Freshdesk
	if !f.Enabled() {
		return nil
	}
	f.URL = strings.TrimRight(f.URL, "/")
	if err := checkURL("freshdesk.url", f.URL); err != nil {
		return err
	}
	if f.AgentID == "" {
		return invalid("freshdesk.agent_id", fmt.Errorf("required"))
	}
	secret, err := resolveSecret("freshdesk", f.Credential, f.APIKey)
	if err != nil {
		return err
	}
	f.Secret = secret
	return nil
}

func (c *Config) resolveJira() error {
	j := &c.Jira
	if !j.Enabled() {
		return nil
	}
	j.URL = strings.TrimRight(j.URL, "/")
	if err := checkURL("jira.url", j.URL); err != nil {
		return err
	}
	if j.Login == "" {
		return invalid("jira.login", fmt.Errorf("required"))
	}
	inline := j.Password
	if j.Token != "" {
		inline = j.Token
		j.Bearer = true
	}
	secret, err := resolveSecret("jira", j.Credential, inline)
	if err != nil {
		return err
	}
	j.Secret = secret
	return nil
}

func (c *Config) resolveTeamwork() error {
	t := &c.Teamwork
	if !t.Enabled() {
		return nil
	}
	t.URL = strings.TrimRight(t.URL, "/")
	if err := checkURL("teamwork.url", t.URL); err != nil {
		return err
	}
	if t.UserID == "" {
		return invalid("teamwork.user_id", fmt.Errorf("required"))
	}
	secret, err := resolveSecret("teamwork", t.Credential, t.APIKey)
	if err != nil {
		return err
	}
	t.Secret = secret
	return nil
}

// Enabled reports whether the section has a URL.
func (f FreshdeskConfig) Enabled() bool { return f.URL != "" }

// Enabled reports whether the section has a URL.
func (j JiraConfig) Enabled() bool { return j.URL != "" }

// Enabled reports whether the section has a URL.
func (t TeamworkConfig) Enabled() bool { return t.URL != "" }

// CachePath returns the expanded cache database path.
func (c Config) CachePath() (string, error) {
	return ExpandHome(c.Cache.Path)
}
