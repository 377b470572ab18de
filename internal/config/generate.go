package config

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const header = `# timer configuration
#
# A section with an empty url disables that service.
# credential = "keyring" reads the secret from the OS keychain instead of
# api_key / password / token; store it with: timer secret set <service>
# Dates use strftime verbs (%d %m %Y %y %b %a ...).

`

// Prompter asks questions on an input stream and echoes prompts to out.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter returns a Prompter reading answers line by line from in.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Ask prints question and returns the trimmed answer, or def when the answer
// is empty or input is exhausted.
func (p *Prompter) Ask(question, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}
	if !p.in.Scan() {
		fmt.Fprintln(p.out)
		return def
	}
	answer := strings.TrimSpace(p.in.Text())
	if answer == "" {
		return def
	}
	return answer
}

// Confirm asks a yes/no question defaulting to no.
func (p *Prompter) Confirm(question string) bool {
	answer := strings.ToLower(p.Ask(question+" [y/N]", ""))
	return answer == "y" || answer == "yes"
}

// Generate walks the user through the essential settings, writes the file to
// path and returns the loaded result.
func Generate(path string, p *Prompter) (Config, error) {
	cfg := Default()

	fmt.Fprintln(p.out, "Leave a service URL empty to disable it.")
	cfg.Freshdesk.URL = p.Ask("Freshdesk URL (https://company.freshdesk.com)", "")
	if cfg.Freshdesk.URL != "" {
		cfg.Freshdesk.AgentID = p.Ask("Freshdesk agent id", "")
		cfg.Freshdesk.APIKey = p.Ask("Freshdesk API key", "")
	}
	cfg.Jira.URL = p.Ask("Jira URL (https://jira.company.com)", "")
	if cfg.Jira.URL != "" {
		cfg.Jira.Login = p.Ask("Jira login", "")
		cfg.Jira.Password = p.Ask("Jira password", "")
	}
	cfg.Teamwork.URL = p.Ask("Teamwork URL (https://company.teamwork.com)", "")
	if cfg.Teamwork.URL != "" {
		cfg.Teamwork.UserID = p.Ask("Teamwork user id", "")
		cfg.Teamwork.APIKey = p.Ask("Teamwork API key", "")
	}
	cfg.Global.DateFormat = p.Ask("Date format", cfg.Global.DateFormat)
	cfg.Global.WorkdayBegin = p.Ask("Workday begins at", cfg.Global.WorkdayBegin)
	cfg.Global.WorkdayEnd = p.Ask("Workday ends at", cfg.Global.WorkdayEnd)

	// validate before anything lands on disk
	data, err := encode(cfg)
	if err != nil {
		return Config{}, err
	}
	if _, err := Parse(string(data)); err != nil {
		return Config{}, fmt.Errorf("config not written: %w", err)
	}
	if err := write(path, data); err != nil {
		return Config{}, err
	}
	return Load(path)
}

// Write encodes cfg as annotated TOML at path.
func Write(path string, cfg Config) error {
	data, err := encode(cfg)
	if err != nil {
		return err
	}
	return write(path, data)
}

func encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

func write(path string, data []byte) error {
	path, err := ExpandHome(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
