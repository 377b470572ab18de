package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zalando/go-keyring"

	"github.com/Tiliavir/ticket-timer/internal/config"
	"github.com/Tiliavir/ticket-timer/internal/model"
)

// fakeServices answers the Freshdesk and Jira endpoints the report uses.
type fakeServices struct {
	*httptest.Server
	jiraDown       bool
	freshdeskCalls atomic.Int32
}

func newFakeServices(t *testing.T) *fakeServices {
	t.Helper()
	f := &fakeServices{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/time_entries", func(w http.ResponseWriter, r *http.Request) {
		f.freshdeskCalls.Add(1)
		w.Write([]byte(`[
			{"id":1,"ticket_id":27525,"billable":false,"note":"Some comment","time_spent":"02:00","executed_at":"2018-09-14T09:00:00Z","updated_at":"2018-09-14T11:00:00Z"},
			{"id":2,"ticket_id":23111,"billable":false,"note":"BUGFIX","time_spent":"00:50","executed_at":"2018-09-14T12:00:00Z","updated_at":"2018-09-14T12:50:00Z"}
		]`))
	})
	mux.HandleFunc("/api/v2/tickets/123/time_entries", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":5,"ticket_id":123,"billable":true,"time_spent":"02:00"},
			{"id":6,"ticket_id":123,"billable":false,"time_spent":"01:00"}
		]`))
	})
	mux.HandleFunc("/rest/api/2/", func(w http.ResponseWriter, r *http.Request) {
		if f.jiraDown {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path == "/rest/api/2/search" {
			w.Write([]byte(`{"startAt":0,"total":1,"issues":[{"key":"DEV-141"}]}`))
			return
		}
		w.Write([]byte(`{"startAt":0,"total":1,"worklogs":[
			{"id":"1","author":{"name":"jdoe"},"started":"2018-09-14T10:00:00.000+0000","timeSpentSeconds":900,"comment":"standup"}
		]}`))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func writeConfig(t *testing.T, srvURL, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	text := fmt.Sprintf(`[global]
workday_length = "08:00"
%s

[freshdesk]
url = %q
agent_id = "7"
api_key = "fd-key"

[jira]
url = %q
login = "jdoe"
password = "secret"
`, extra, srvURL, srvURL)
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func setNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestReportText(t *testing.T) {
	srv := newFakeServices(t)
	path := writeConfig(t, srv.URL, "")
	setNow(t, time.Date(2018, 9, 20, 12, 0, 0, 0, time.Local))

	out, _, err := execute(t, "", "-c", path, "14.09.2018")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{
		"Time records for Fri 14 Sep 2018\n",
		srv.URL + "/a/tickets/23111\n\tFree: 00:50 BUGFIX\n",
		srv.URL + "/browse/DEV-141\n\tFree: 00:15 standup\n",
		"Total tracked time:    03:05\n",
		"- Freshdesk free:      02:50\n",
		"- Jira:                00:15\n",
		"Untracked time: 04:55\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Teamwork") {
		t.Error("unconfigured teamwork must not get totals lines")
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("non-terminal output must not be colored")
	}
}

func TestReportOffset(t *testing.T) {
	srv := newFakeServices(t)
	path := writeConfig(t, srv.URL, "")
	setNow(t, time.Date(2018, 9, 15, 8, 0, 0, 0, time.Local))

	out, _, err := execute(t, "", "-c", path, "1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out, "Time records for Fri 14 Sep 2018\n") {
		t.Errorf("unexpected header:\n%s", out)
	}
}

func TestReportServiceFailure(t *testing.T) {
	srv := newFakeServices(t)
	srv.jiraDown = true
	path := writeConfig(t, srv.URL, "")
	setNow(t, time.Date(2018, 9, 20, 12, 0, 0, 0, time.Local))

	out, _, err := execute(t, "", "-c", path, "14.09.2018")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{
		"Warning: jira unavailable:",
		"Total tracked time:    02:50\n",
		"- Jira:                00:00\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	_, _, err = execute(t, "", "-c", path, "--strict", "14.09.2018")
	if code := exitCode(err); code != exitService {
		t.Errorf("strict exit code = %d (err %v), want %d", code, err, exitService)
	}
}

func TestReportJSON(t *testing.T) {
	srv := newFakeServices(t)
	path := writeConfig(t, srv.URL, "")
	setNow(t, time.Date(2018, 9, 20, 12, 0, 0, 0, time.Local))

	out, _, err := execute(t, "", "-c", path, "--format", "json", "14.09.2018")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, `"tracked": "03:05"`) || !strings.Contains(out, `"date": "2018-09-14"`) {
		t.Errorf("unexpected json:\n%s", out)
	}

	_, _, err = execute(t, "", "-c", path, "--format", "xml")
	if code := exitCode(err); code != exitUsage {
		t.Errorf("unknown format exit code = %d, want %d", code, exitUsage)
	}
}

func TestReportLiveUntracked(t *testing.T) {
	srv := newFakeServices(t)
	path := writeConfig(t, srv.URL, "live_untracked = true\nuntracked_round_minutes = 5")
	// 11:00 on the reported day: two hours of the workday have passed.
	setNow(t, time.Date(2018, 9, 14, 11, 0, 0, 0, time.Local))

	out, _, err := execute(t, "", "-c", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Untracked time by now: 00:00\n") {
		t.Errorf("unexpected trailer:\n%s", out)
	}
}

func TestReportInvalidDate(t *testing.T) {
	srv := newFakeServices(t)
	path := writeConfig(t, srv.URL, "")

	_, stderr, err := execute(t, "", "-c", path, "someday")
	if !errors.Is(err, model.ErrInvalidDateArgument) {
		t.Errorf("err = %v, want ErrInvalidDateArgument", err)
	}
	if exitCode(err) != exitUsage {
		t.Errorf("exit code = %d, want %d", exitCode(err), exitUsage)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("stderr lacks usage:\n%s", stderr)
	}
	if srv.freshdeskCalls.Load() != 0 {
		t.Error("no request may be sent for an invalid date")
	}
}

func TestReportCache(t *testing.T) {
	srv := newFakeServices(t)
	cache := filepath.Join(t.TempDir(), "cache.db")
	path := writeConfig(t, srv.URL, fmt.Sprintf("\n[cache]\nenabled = true\npath = %q", cache))
	setNow(t, time.Date(2018, 9, 20, 12, 0, 0, 0, time.Local))

	for i := 0; i < 2; i++ {
		out, _, err := execute(t, "", "-c", path, "14.09.2018")
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if !strings.Contains(out, "Total tracked time:    03:05\n") {
			t.Errorf("run %d output:\n%s", i, out)
		}
	}
	if got := srv.freshdeskCalls.Load(); got != 1 {
		t.Errorf("freshdesk calls = %d, want 1 with a cached past day", got)
	}

	if _, _, err := execute(t, "", "-c", path, "--refresh", "14.09.2018"); err != nil {
		t.Fatal(err)
	}
	if got := srv.freshdeskCalls.Load(); got != 2 {
		t.Errorf("freshdesk calls = %d, want 2 after --refresh", got)
	}
}

func TestTicket(t *testing.T) {
	srv := newFakeServices(t)
	path := writeConfig(t, srv.URL, "")

	out, _, err := execute(t, "", "-c", path, "-t", "123")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "Time records for ticket #123:\nTotal: 03:00\nBill:  02:00\nFree:  01:00\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}

	_, _, err = execute(t, "", "-c", path, "-t", "404")
	if !errors.Is(err, model.ErrTicketNotFound) || exitCode(err) != exitUsage {
		t.Errorf("err = %v (code %d), want ErrTicketNotFound with code %d", err, exitCode(err), exitUsage)
	}
}

func TestMissingConfigDeclined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.toml")
	_, stderr, err := execute(t, "n\n", "-c", path)
	if !errors.Is(err, model.ErrConfigMissing) || exitCode(err) != exitUsage {
		t.Errorf("err = %v (code %d), want ErrConfigMissing with code %d", err, exitCode(err), exitUsage)
	}
	if !strings.Contains(stderr, "Create one now?") {
		t.Errorf("no prompt on stderr:\n%s", stderr)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("config must not be written when declined")
	}
}

func TestEffectiveWorkday(t *testing.T) {
	g := config.GlobalConfig{
		LiveUntracked: true,
		Workday:       8 * time.Hour,
		Window:        config.Window{Begin: 9 * time.Hour, End: 18 * time.Hour, LunchBegin: 13 * time.Hour, LunchEnd: 14 * time.Hour},
	}
	day := time.Date(2018, 9, 14, 0, 0, 0, 0, time.Local)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	tests := []struct {
		name     string
		live     bool
		at       time.Time
		want     time.Duration
		wantLive bool
	}{
		{"morning", true, at(11, 0), 2 * time.Hour, true},
		{"lunch", true, at(13, 30), 4 * time.Hour, true},
		{"afternoon", true, at(15, 0), 5 * time.Hour, true},
		{"before work", true, at(7, 0), 8 * time.Hour, false},
		{"after work", true, at(19, 0), 8 * time.Hour, false},
		{"other day", true, at(35, 0), 8 * time.Hour, false},
		{"disabled", false, at(11, 0), 8 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := g
			cfg.LiveUntracked = tt.live
			got, live := effectiveWorkday(cfg, day, tt.at)
			if got != tt.want || live != tt.wantLive {
				t.Errorf("effectiveWorkday = %v, %v; want %v, %v", got, live, tt.want, tt.wantLive)
			}
		})
	}
}

func TestSecretSet(t *testing.T) {
	keyring.MockInit()

	out, _, err := execute(t, "pat-123\n", "secret", "set", "jira")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Stored jira secret") {
		t.Errorf("unexpected output %q", out)
	}
	got, err := keyring.Get(config.KeyringService, "jira")
	if err != nil || got != "pat-123" {
		t.Errorf("keyring = %q, %v; want pat-123", got, err)
	}

	if _, _, err := execute(t, "x", "secret", "set", "github"); err == nil {
		t.Error("unknown service accepted")
	}
	if _, _, err := execute(t, "  \n", "secret", "set", "jira"); err == nil {
		t.Error("empty secret accepted")
	}
}
