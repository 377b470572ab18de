package model

import "time"

// Source identifies the service a time entry was fetched from.
type Source string

const (
	SourceFreshdesk Source = "freshdesk"
	SourceJira      Source = "jira"
	SourceTeamwork  Source = "teamwork"
)

// Sources lists every known source in report order.
var Sources = []Source{SourceFreshdesk, SourceJira, SourceTeamwork}

// Label returns the human-readable vendor name.
func (s Source) Label() string {
	switch s {
	case SourceFreshdesk:
		return "Freshdesk"
	case SourceJira:
		return "Jira"
	case SourceTeamwork:
		return "Teamwork"
	}
	return string(s)
}

// SplitsBillable reports whether the source distinguishes billable from free
// time. Jira worklogs carry no billing flag and form a single category.
func (s Source) SplitsBillable() bool {
	return s != SourceJira
}

// TimeEntry is one logged time record, normalised from a vendor payload.
type TimeEntry struct {
	Source   Source
	Ticket   string // vendor ticket id or key
	URL      string // browsable link to the ticket
	Billable bool
	Duration time.Duration
	Note     string
	Start    time.Time
	// Agent is the vendor account the entry was logged by.
	Agent     string
	UpdatedAt time.Time
}

// Category is the bucket a time entry is totalled under.
type Category struct {
	Source   Source
	Billable bool
}

// CategoryOf returns the category of e.
func CategoryOf(e TimeEntry) Category {
	if !e.Source.SplitsBillable() {
		return Category{Source: e.Source}
	}
	return Category{Source: e.Source, Billable: e.Billable}
}

// Categories returns the categories a source contributes, billable first.
func Categories(s Source) []Category {
	if !s.SplitsBillable() {
		return []Category{{Source: s}}
	}
	return []Category{{Source: s, Billable: true}, {Source: s, Billable: false}}
}

// Label returns the totals-block label, e.g. "Freshdesk billable".
func (c Category) Label() string {
	if !c.Source.SplitsBillable() {
		return c.Source.Label()
	}
	if c.Billable {
		return c.Source.Label() + " billable"
	}
	return c.Source.Label() + " free"
}

// TicketTotal is the historical time logged against a single ticket.
type TicketTotal struct {
	Ticket string
	Bill   time.Duration
	Free   time.Duration
}

// Total returns billable plus free time.
func (t TicketTotal) Total() time.Duration {
	return t.Bill + t.Free
}
