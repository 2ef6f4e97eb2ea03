package account

import "time"

// TierTrial is the tier granted on redemption. Paid tiers are managed by
// the billing collaborator, not here.
const TierTrial = "trial"

// Referral program thresholds.
const (
	MinTrialDays      = 14
	MinActiveDays     = 10
	InitialCodeGrant  = 3
	TrialLengthInDays = 14
)

// Account tracks a member for referral eligibility purposes.
type Account struct {
	Email                  string     `json:"email"`
	Tier                   string     `json:"tier"`
	CreatedAt              time.Time  `json:"created_at"`
	TrialStartedAt         time.Time  `json:"trial_started_at"`
	ActiveDaysCount        int        `json:"active_days_count"`
	LastActiveAt           *time.Time `json:"last_active_at,omitempty"`
	ReferralCodesEarned    int        `json:"referral_codes_earned"`
	ReferralCodesAvailable int        `json:"referral_codes_available"`
	PasswordHash           string     `json:"-"`
}

// NewAccount builds a trial account with the initial referral code grant.
func NewAccount(email, passwordHash string, now time.Time) Account {
	now = now.UTC()
	return Account{
		Email:                  email,
		Tier:                   TierTrial,
		CreatedAt:              now,
		TrialStartedAt:         now,
		ReferralCodesEarned:    InitialCodeGrant,
		ReferralCodesAvailable: InitialCodeGrant,
		PasswordHash:           passwordHash,
	}
}

// Eligibility describes a member's standing against the referral
// program requirements.
type Eligibility struct {
	Eligible       bool `json:"eligible"`
	DaysSinceTrial int  `json:"days_since_trial"`
	ActiveDays     int  `json:"active_days"`
	CodesAvailable int  `json:"codes_available"`
}

// EligibilityAt evaluates the referral requirements at a point in time:
// at least MinTrialDays since the trial started, at least MinActiveDays of
// recorded activity, and codes left to spend.
func (a Account) EligibilityAt(now time.Time) Eligibility {
	days := int(now.UTC().Sub(a.TrialStartedAt) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return Eligibility{
		Eligible: days >= MinTrialDays &&
			a.ActiveDaysCount >= MinActiveDays &&
			a.ReferralCodesAvailable > 0,
		DaysSinceTrial: days,
		ActiveDays:     a.ActiveDaysCount,
		CodesAvailable: a.ReferralCodesAvailable,
	}
}
