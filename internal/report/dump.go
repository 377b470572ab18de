package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/ticket-timer/internal/model"
	"github.com/Tiliavir/ticket-timer/internal/timecalc"
)

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// View is the serialisable form of a report.
type View struct {
	Date      string        `json:"date" yaml:"date"`
	Entries   []EntryView   `json:"entries" yaml:"entries"`
	Totals    []TotalView   `json:"totals" yaml:"totals"`
	Tracked   string        `json:"tracked" yaml:"tracked"`
	Billable  string        `json:"billable" yaml:"billable"`
	Free      string        `json:"free" yaml:"free"`
	Workday   string        `json:"workday" yaml:"workday"`
	Untracked string        `json:"untracked" yaml:"untracked"`
	Live      bool          `json:"live,omitempty" yaml:"live,omitempty"`
	Failures  []FailureView `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// EntryView is one time entry with its duration as HH:MM and minutes.
type EntryView struct {
	Source   string `json:"source" yaml:"source"`
	Ticket   string `json:"ticket" yaml:"ticket"`
	URL      string `json:"url" yaml:"url"`
	Billable bool   `json:"billable" yaml:"billable"`
	Duration string `json:"duration" yaml:"duration"`
	Minutes  int64  `json:"minutes" yaml:"minutes"`
	Note     string `json:"note,omitempty" yaml:"note,omitempty"`
	Start    string `json:"start,omitempty" yaml:"start,omitempty"`
}

// TotalView is the total of one billing category.
type TotalView struct {
	Category string `json:"category" yaml:"category"`
	Duration string `json:"duration" yaml:"duration"`
	Minutes  int64  `json:"minutes" yaml:"minutes"`
}

// FailureView is a source that could not be fetched.
type FailureView struct {
	Source string `json:"source" yaml:"source"`
	Error  string `json:"error" yaml:"error"`
}

// NewView converts r into its serialisable form. Totals follow the text
// report's totals block order.
func NewView(r model.ReportResult) View {
	v := View{
		Date:      r.Date.Format("2006-01-02"),
		Entries:   []EntryView{},
		Tracked:   timecalc.FormatClock(r.Tracked),
		Billable:  timecalc.FormatClock(r.Billable),
		Free:      timecalc.FormatClock(r.Free),
		Workday:   timecalc.FormatClock(r.Workday),
		Untracked: timecalc.FormatClock(r.Untracked),
		Live:      r.Live,
	}
	for _, e := range r.Entries {
		ev := EntryView{
			Source:   string(e.Source),
			Ticket:   e.Ticket,
			URL:      e.URL,
			Billable: e.Billable && e.Source.SplitsBillable(),
			Duration: timecalc.FormatClock(e.Duration),
			Minutes:  int64(e.Duration / time.Minute),
			Note:     e.Note,
		}
		if !e.Start.IsZero() {
			ev.Start = e.Start.Format(time.RFC3339)
		}
		v.Entries = append(v.Entries, ev)
	}
	for _, c := range totalCategories(r.Sources) {
		d := r.Totals[c]
		v.Totals = append(v.Totals, TotalView{
			Category: c.Label(),
			Duration: timecalc.FormatClock(d),
			Minutes:  int64(d / time.Minute),
		})
	}
	for _, f := range r.Failures {
		v.Failures = append(v.Failures, FailureView{Source: string(f.Source), Error: f.Err.Error()})
	}
	return v
}

// Write renders r in the given format.
func Write(w io.Writer, r model.ReportResult, format string, opts Options) error {
	switch format {
	case "", FormatText:
		return Render(w, r, opts)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewView(r))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewView(r)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}
