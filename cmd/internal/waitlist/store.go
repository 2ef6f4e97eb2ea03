package waitlist

import (
	"context"
	"time"
)

// PersonaStats aggregates entries sharing a persona.
type PersonaStats struct {
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// Stats is the operator-facing summary of the waitlist.
type Stats struct {
	Total            int                     `json:"total"`
	Pending          int                     `json:"pending"`
	Invited          int                     `json:"invited"`
	Joined           int                     `json:"joined"`
	AvgPriorityScore float64                 `json:"avg_priority_score"`
	ByPersona        map[string]PersonaStats `json:"by_persona"`
}

// Store persists waitlist entries.
//
// Insert is insert-if-absent keyed on email and must return ErrEmailExists
// when the address is already registered. Position counts entries with a
// strictly higher priority score plus one, so ties rank at the same
// position.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	GetByEmail(ctx context.Context, email string) (Entry, error)
	Position(ctx context.Context, score float64) (int, error)
	CountPending(ctx context.Context) (int, error)
	TopPending(ctx context.Context, n int) ([]Entry, error)
	MarkInvited(ctx context.Context, email string, at time.Time) error
	MarkJoined(ctx context.Context, email string) error
	Stats(ctx context.Context) (Stats, error)
}
