package model

import (
	"context"
	"time"
)

// Adapter fetches one service's time entries for a day.
type Adapter interface {
	Source() Source
	// Agent is the account whose entries are fetched.
	Agent() string
	// FetchEntries returns the entries started on day (local calendar day),
	// in the order they should be reported.
	FetchEntries(ctx context.Context, day time.Time) ([]TimeEntry, error)
}

// TicketTotaler reports the total time ever logged against one ticket.
type TicketTotaler interface {
	FetchTicketTotal(ctx context.Context, ticketID int) (TicketTotal, error)
}
