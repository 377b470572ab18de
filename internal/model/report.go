package model

import "time"

// SourceFailure records an adapter that could not deliver its entries.
type SourceFailure struct {
	Source Source
	Err    error
}

// ReportResult is the aggregated view of one day.
type ReportResult struct {
	Date    time.Time
	Sources []Source // sources that took part, in report order
	Entries []TimeEntry
	Totals  map[Category]time.Duration

	Tracked  time.Duration
	Billable time.Duration
	Free     time.Duration

	// Workday is the effective workday length untracked time is measured against.
	Workday   time.Duration
	Untracked time.Duration
	// Live is set when Workday is the elapsed part of today's workday.
	Live bool

	Failures []SourceFailure
}

// Failed reports whether source s failed during this run.
func (r ReportResult) Failed(s Source) bool {
	for _, f := range r.Failures {
		if f.Source == s {
			return true
		}
	}
	return false
}
