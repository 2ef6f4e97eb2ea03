package invite

import (
	"context"
	"time"
)

// Counts summarizes ledger state for stats and metrics.
type Counts struct {
	Total  int64
	Active int64
	Used   int64
}

// Store is the persistence boundary for the invite ledger.
//
// Insert must be insert-if-absent: an existing code yields ErrCodeExists and
// never overwrites. Redeem must be a single atomic conditional update — the
// winner of a concurrent race gets the updated invite, every loser gets
// ErrAlreadyUsed (or ErrExpired/ErrNotFound as applicable).
type Store interface {
	Insert(ctx context.Context, inv Invite) error
	Get(ctx context.Context, code string) (Invite, error)
	Redeem(ctx context.Context, code, usedBy string, now time.Time) (Invite, error)
	Count(ctx context.Context) (Counts, error)
}
