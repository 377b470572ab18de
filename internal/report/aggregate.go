// Package report aggregates fetched time entries into a day report and
// renders it as text, JSON or YAML.
package report

import (
	"time"

	"github.com/Tiliavir/ticket-timer/internal/model"
)

// SourceBatch is the outcome of fetching one source.
type SourceBatch struct {
	Source  model.Source
	Entries []model.TimeEntry
	Err     error
}

// Aggregate builds the report for day from batches given in report order.
// Entries keep the order each adapter returned them in. A batch with an error
// contributes nothing and is recorded as a failure.
func Aggregate(day time.Time, batches []SourceBatch, workday time.Duration) model.ReportResult {
	r := model.ReportResult{
		Date:    day,
		Totals:  make(map[model.Category]time.Duration),
		Workday: workday,
	}
	for _, b := range batches {
		r.Sources = append(r.Sources, b.Source)
		for _, c := range model.Categories(b.Source) {
			if _, ok := r.Totals[c]; !ok {
				r.Totals[c] = 0
			}
		}
		if b.Err != nil {
			r.Failures = append(r.Failures, model.SourceFailure{Source: b.Source, Err: b.Err})
			continue
		}
		for _, e := range b.Entries {
			r.Entries = append(r.Entries, e)
			r.Totals[model.CategoryOf(e)] += e.Duration
			r.Tracked += e.Duration
			if e.Billable && e.Source.SplitsBillable() {
				r.Billable += e.Duration
			} else {
				r.Free += e.Duration
			}
		}
	}
	r.Untracked = max(workday-r.Tracked, 0)
	return r
}

// totalsOrder is the order of the totals block, which differs from the
// entry order.
var totalsOrder = []model.Source{model.SourceFreshdesk, model.SourceTeamwork, model.SourceJira}

// totalCategories returns the categories of the participating sources in
// totals block order.
func totalCategories(sources []model.Source) []model.Category {
	var cats []model.Category
	for _, s := range totalsOrder {
		for _, p := range sources {
			if p == s {
				cats = append(cats, model.Categories(s)...)
				break
			}
		}
	}
	return cats
}
