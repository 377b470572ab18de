package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Tiliavir/ticket-timer/internal/model"
	"github.com/Tiliavir/ticket-timer/internal/timecalc"
)

// DefaultWidth is the progress bar width used when none is configured.
const DefaultWidth = 45

const (
	headerLayout = "Mon 02 Jan 2006"
	labelWidth   = 23
)

// Options controls text rendering.
type Options struct {
	Width int
	// Color enables ANSI styling. Callers turn it off for non-terminals.
	Color bool
}

type styles struct {
	weekend  lipgloss.Style
	warning  lipgloss.Style
	billable lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		weekend:  r.NewStyle().Foreground(lipgloss.Color("9")),
		warning:  r.NewStyle().Foreground(lipgloss.Color("11")),
		billable: r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// Filled returns the number of filled progress bar cells for tracked out of
// workday, clamped to [0, width]. A non-positive workday fills the bar as
// soon as anything is tracked.
func Filled(width int, tracked, workday time.Duration) int {
	if width <= 0 || tracked <= 0 {
		return 0
	}
	if workday <= 0 {
		return width
	}
	n := int(math.Round(float64(width) * float64(tracked) / float64(workday)))
	return min(max(n, 0), width)
}

// bar draws the progress bar, billable share first.
func bar(r model.ReportResult, width int, st styles) string {
	filled := Filled(width, r.Tracked, r.Workday)
	bill := min(Filled(width, r.Billable, r.Workday), filled)
	var b strings.Builder
	b.WriteByte('[')
	if bill > 0 {
		b.WriteString(st.billable.Render(strings.Repeat("#", bill)))
	}
	b.WriteString(strings.Repeat("#", filled-bill))
	b.WriteString(strings.Repeat(" ", width-filled))
	b.WriteByte(']')
	return b.String()
}

func (o Options) width() int {
	if o.Width <= 0 {
		return DefaultWidth
	}
	return o.Width
}

// Render writes the text report.
func Render(w io.Writer, r model.ReportResult, opts Options) error {
	st := newStyles(w, opts.Color)
	var b strings.Builder

	date := r.Date.Format(headerLayout)
	if timecalc.IsWeekend(r.Date) {
		date = st.weekend.Render(date)
	}
	fmt.Fprintf(&b, "Time records for %s\n\n", date)

	for _, e := range r.Entries {
		kind := "Free"
		if e.Billable && e.Source.SplitsBillable() {
			kind = "Bill"
		}
		line := strings.TrimRight(fmt.Sprintf("\t%s: %s %s", kind, timecalc.FormatClock(e.Duration), e.Note), " ")
		fmt.Fprintf(&b, "%s\n%s\n", e.URL, line)
	}
	for _, f := range r.Failures {
		b.WriteString(st.warning.Render(fmt.Sprintf("Warning: %s unavailable: %v", f.Source, f.Err)))
		b.WriteByte('\n')
	}
	if len(r.Entries) > 0 || len(r.Failures) > 0 {
		b.WriteByte('\n')
	}

	totalLine(&b, "Total tracked time:", r.Tracked)
	for _, c := range totalCategories(r.Sources) {
		totalLine(&b, "- "+c.Label()+":", r.Totals[c])
	}

	fmt.Fprintf(&b, "\nBill to free ratio:\n%s\n\n", bar(r, opts.width(), st))

	trailer := "Untracked time:"
	if r.Live {
		trailer = "Untracked time by now:"
	}
	fmt.Fprintf(&b, "%s %s\n", trailer, timecalc.FormatClock(r.Untracked))

	_, err := io.WriteString(w, b.String())
	return err
}

func totalLine(b *strings.Builder, label string, d time.Duration) {
	fmt.Fprintf(b, "%-*s%s\n", labelWidth, label, timecalc.FormatClock(d))
}

// RenderTicket writes the historical total of one ticket.
func RenderTicket(w io.Writer, t model.TicketTotal) error {
	_, err := fmt.Fprintf(w, "Time records for ticket #%s:\nTotal: %s\nBill:  %s\nFree:  %s\n",
		t.Ticket, timecalc.FormatClock(t.Total()), timecalc.FormatClock(t.Bill), timecalc.FormatClock(t.Free))
	return err
}
