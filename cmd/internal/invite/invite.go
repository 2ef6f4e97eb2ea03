// Package invite is the single-use invite code ledger: generation, batch
// issuance, validation, and exactly-once redemption.
package invite

import "time"

// DefaultTTL is the invite lifetime when the caller does not override it.
const DefaultTTL = 7 * 24 * time.Hour

// Invite statuses.
const (
	StatusActive  = "active"
	StatusUsed    = "used"
	StatusExpired = "expired"
)

// Invite is one ledger row.
type Invite struct {
	Code      string
	BatchID   string
	IssuedTo  string
	Status    string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedBy    *string
	UsedAt    *time.Time
}

// IsValid reports whether the invite can still be redeemed at now.
// A set UsedAt invalidates the code regardless of status or expiry.
func (i Invite) IsValid(now time.Time) bool {
	if i.Status != StatusActive {
		return false
	}
	if i.UsedAt != nil {
		return false
	}
	return now.Before(i.ExpiresAt)
}

// NewInvite builds an active invite with the default expiry.
func NewInvite(code, batchID, issuedTo string, now time.Time) Invite {
	return Invite{
		Code:      code,
		BatchID:   batchID,
		IssuedTo:  issuedTo,
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(DefaultTTL),
	}
}
