package referral

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Lifecycle of a tracked referral.
const (
	StatusPending  = "pending"
	StatusRedeemed = "redeemed"
	StatusActive   = "active"
)

// Referral records one invite shared by an existing member.
type Referral struct {
	ID           string    `json:"id"`
	InviterEmail string    `json:"inviter_email"`
	InvitedEmail string    `json:"invited_email"`
	InviteCode   string    `json:"invite_code,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewReferral builds a pending referral with a sortable identifier.
func NewReferral(inviter, invited, code string, now time.Time) Referral {
	return Referral{
		ID:           ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		InviterEmail: inviter,
		InvitedEmail: invited,
		InviteCode:   code,
		Status:       StatusPending,
		CreatedAt:    now.UTC(),
	}
}
