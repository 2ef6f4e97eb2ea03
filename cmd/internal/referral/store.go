package referral

import (
	"context"
	"time"
)

// Store persists referrals and reward-claim markers.
//
// ClaimTier is insert-if-absent keyed on (inviter, tier) and must return
// ErrAlreadyClaimed when the tier was claimed before; this keeps reward
// issuance single-shot under concurrent claims.
type Store interface {
	Insert(ctx context.Context, r Referral) error
	ListByInviter(ctx context.Context, inviter string) ([]Referral, error)
	ClaimTier(ctx context.Context, inviter, tier string, at time.Time) error
	ClaimedTiers(ctx context.Context, inviter string) (map[string]bool, error)
}
