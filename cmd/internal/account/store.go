package account

import (
	"context"
	"time"
)

// Store persists accounts.
//
// Insert is insert-if-absent keyed on email and must return ErrEmailExists
// for duplicates. ConsumeReferralCode atomically decrements the available
// counter only while it is positive, returning the remaining balance;
// concurrent callers can never overdraw. TouchActivity bumps the active-day
// counter at most once per calendar day (UTC).
type Store interface {
	Insert(ctx context.Context, a Account) error
	Get(ctx context.Context, email string) (Account, error)
	ConsumeReferralCode(ctx context.Context, email string) (remaining int, err error)
	TouchActivity(ctx context.Context, email string, now time.Time) (activeDays int, err error)
}
