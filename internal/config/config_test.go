package config_test

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/Tiliavir/ticket-timer/internal/config"
	"github.com/Tiliavir/ticket-timer/internal/model"
)

const sample = `
[global]
date_format = "%d.%m.%Y"
progress_bar_width = 30
timeout = "3s"

[freshdesk]
url = "https://acme.freshdesk.com/"
agent_id = "42"
api_key = "fd-key"
tz_shift = 3

[jira]
url = "https://jira.acme.com"
login = "jdoe"
password = "secret"
`

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Global.Workday != 8*time.Hour {
		t.Errorf("Workday = %v, want 8h", cfg.Global.Workday)
	}
	if cfg.Global.ProgressBarWidth != 30 {
		t.Errorf("ProgressBarWidth = %d, want 30", cfg.Global.ProgressBarWidth)
	}
	if !cfg.Global.Color {
		t.Error("Color should default to true")
	}
	if cfg.Global.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.Global.RequestTimeout)
	}
	if cfg.Freshdesk.URL != "https://acme.freshdesk.com" {
		t.Errorf("Freshdesk.URL = %q, want trailing slash trimmed", cfg.Freshdesk.URL)
	}
	if cfg.Freshdesk.Secret != "fd-key" {
		t.Errorf("Freshdesk.Secret = %q, want %q", cfg.Freshdesk.Secret, "fd-key")
	}
	if cfg.Jira.Secret != "secret" || cfg.Jira.Bearer {
		t.Errorf("Jira secret = %q bearer = %v, want basic auth", cfg.Jira.Secret, cfg.Jira.Bearer)
	}
	if cfg.Teamwork.Enabled() {
		t.Error("Teamwork should be disabled without url")
	}
	if cfg.Cache.TTL != 7*24*time.Hour {
		t.Errorf("Cache.TTL = %v, want 168h", cfg.Cache.TTL)
	}
}

func TestParseWorkdayLengthOverride(t *testing.T) {
	cfg, err := config.Parse(sample + "\n[teamwork]\nurl = \"https://acme.teamwork.com\"\nuser_id = \"7\"\napi_key = \"tw\"\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.Teamwork.Enabled() {
		t.Fatal("Teamwork should be enabled")
	}

	cfg, err = config.Parse(strings.Replace(sample, `timeout = "3s"`, `timeout = "3s"`+"\nworkday_length = \"07:30\"", 1))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Global.Workday != 7*time.Hour+30*time.Minute {
		t.Errorf("Workday = %v, want 7h30m", cfg.Global.Workday)
	}
}

func TestParseJiraToken(t *testing.T) {
	cfg, err := config.Parse(sample + "token = \"pat-123\"\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.Jira.Bearer || cfg.Jira.Secret != "pat-123" {
		t.Errorf("Jira bearer = %v secret = %q, want bearer pat-123", cfg.Jira.Bearer, cfg.Jira.Secret)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
	}{
		{"bad toml", `[global]`, `[global`},
		{"bad date format", `date_format = "%d.%m.%Y"`, `date_format = "%Q"`},
		{"bad width", `progress_bar_width = 30`, `progress_bar_width = 0`},
		{"bad timeout", `timeout = "3s"`, `timeout = "soon"`},
		{"bad url", `url = "https://jira.acme.com"`, `url = "jira.acme.com"`},
		{"missing agent", `agent_id = "42"`, `agent_id = ""`},
		{"unknown key", `tz_shift = 3`, `tz_shift = 3` + "\nshift = 1"},
		{"unknown credential", `api_key = "fd-key"`, `api_key = "fd-key"` + "\ncredential = \"vault\""},
		{"empty secret", `password = "secret"`, `password = ""`},
		{"bad clock", `timeout = "3s"`, `timeout = "3s"` + "\nworkday_begin = \"9am\""},
		{"negative cache age", `tz_shift = 3`, `tz_shift = 3` + "\n\n[cache]\nmax_age = \"-1h\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Replace(sample, tt.from, tt.to, 1)
			_, err := config.Parse(text)
			if !errors.Is(err, model.ErrConfigInvalid) {
				t.Errorf("Parse err = %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestParseNoServices(t *testing.T) {
	_, err := config.Parse("[global]\ncolor = false\n")
	if !errors.Is(err, model.ErrConfigInvalid) {
		t.Errorf("Parse err = %v, want ErrConfigInvalid", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, model.ErrConfigMissing) {
		t.Errorf("Load err = %v, want ErrConfigMissing", err)
	}
}

func TestKeyringCredential(t *testing.T) {
	keyring.MockInit()
	if err := config.StoreSecret("freshdesk", "from-keychain"); err != nil {
		t.Fatalf("StoreSecret: %v", err)
	}
	text := strings.Replace(sample, `api_key = "fd-key"`, `credential = "keyring"`, 1)
	cfg, err := config.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Freshdesk.Secret != "from-keychain" {
		t.Errorf("Freshdesk.Secret = %q, want %q", cfg.Freshdesk.Secret, "from-keychain")
	}

	text = strings.Replace(sample, `password = "secret"`, `credential = "keyring"`, 1)
	if _, err := config.Parse(text); !errors.Is(err, model.ErrConfigInvalid) {
		t.Errorf("Parse with missing keychain entry err = %v, want ErrConfigInvalid", err)
	}
}

func TestWindowElapsed(t *testing.T) {
	w := config.Window{Begin: 9 * time.Hour, End: 18 * time.Hour, LunchBegin: 13 * time.Hour, LunchEnd: 14 * time.Hour}
	tests := []struct {
		at   time.Duration
		want time.Duration
	}{
		{8 * time.Hour, 0},
		{10 * time.Hour, time.Hour},
		{13*time.Hour + 30*time.Minute, 4 * time.Hour},
		{15 * time.Hour, 5 * time.Hour},
		{20 * time.Hour, 8 * time.Hour},
	}
	for _, tt := range tests {
		if got := w.Elapsed(tt.at); got != tt.want {
			t.Errorf("Elapsed(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
	if w.Contains(19 * time.Hour) {
		t.Error("Contains(19h) = true, want false")
	}
}

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	answers := strings.Join([]string{
		"https://acme.freshdesk.com", "42", "fd-key",
		"", // no jira
		"", // no teamwork
		"%Y-%m-%d",
		"08:00",
		"", // keep default end
	}, "\n") + "\n"

	var out strings.Builder
	cfg, err := config.Generate(path, config.NewPrompter(strings.NewReader(answers), &out))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if cfg.Freshdesk.AgentID != "42" || cfg.Jira.Enabled() {
		t.Errorf("generated config = %+v", cfg.Freshdesk)
	}
	if cfg.Global.DateFormat != "%Y-%m-%d" {
		t.Errorf("DateFormat = %q, want %%Y-%%m-%%d", cfg.Global.DateFormat)
	}
	if cfg.Global.Workday != 9*time.Hour {
		t.Errorf("Workday = %v, want 9h (08:00-18:00 minus lunch)", cfg.Global.Workday)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}
	if !strings.Contains(out.String(), "Freshdesk URL") {
		t.Errorf("prompts not echoed: %q", out.String())
	}
}

func TestGenerateRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	// every service left blank, defaults for the rest
	answers := strings.Repeat("\n", 6)

	_, err := config.Generate(path, config.NewPrompter(strings.NewReader(answers), io.Discard))
	if !errors.Is(err, model.ErrConfigInvalid) {
		t.Fatalf("err = %v, want ErrConfigInvalid", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, fs.ErrNotExist) {
		t.Errorf("invalid config left on disk: %v", statErr)
	}
	_, err = config.Load(path)
	if !errors.Is(err, model.ErrConfigMissing) {
		t.Errorf("Load after rejected Generate = %v, want ErrConfigMissing", err)
	}
}

func TestConfirm(t *testing.T) {
	for in, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		var out strings.Builder
		p := config.NewPrompter(strings.NewReader(in), &out)
		if got := p.Confirm("Create?"); got != want {
			t.Errorf("Confirm(%q) = %v, want %v", in, got, want)
		}
	}
}
