package referral

import "time"

// DefaultQualityWindowDays is the recency window for quality scoring.
const DefaultQualityWindowDays = 30

// Reward tier types.
const (
	RewardInviteCodes  = "invite_codes"
	RewardPremium      = "premium"
	RewardQualityBonus = "quality_bonus"
)

// Tier identifiers, stable across releases so claims can be tracked.
const (
	TierMilestone3   = "milestone_3"
	TierMilestone10  = "milestone_10"
	TierMilestone25  = "milestone_25"
	TierQualityBonus = "quality_bonus"
)

// Reward is one unlocked referral reward.
type Reward struct {
	Tier     string `json:"tier"`
	Type     string `json:"type"`
	Amount   int    `json:"amount,omitempty"`
	Duration string `json:"duration,omitempty"`
	Reason   string `json:"reason"`
}

// QualityScore computes a recency-weighted quality score in [0, 1].
// Referrals older than windowDays are excluded outright; each counted
// referral contributes 1 − age/window and the score is the mean of those
// weights. No referrals, or none in-window, scores zero.
func QualityScore(referrals []Referral, windowDays int, now time.Time) float64 {
	if len(referrals) == 0 || windowDays <= 0 {
		return 0
	}

	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	var sum float64
	counted := 0
	for _, r := range referrals {
		if !r.CreatedAt.After(cutoff) {
			continue
		}
		ageDays := int(now.Sub(r.CreatedAt).Hours() / 24)
		sum += 1 - float64(ageDays)/float64(windowDays)
		counted++
	}
	if counted == 0 {
		return 0
	}

	score := sum / float64(counted)
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// CalculateRewards returns the union of all satisfied tiers. Tiers are
// cumulative: crossing a later milestone keeps the earlier entries.
func CalculateRewards(referredCount int, qualityScore float64) []Reward {
	var rewards []Reward

	if referredCount >= 3 {
		rewards = append(rewards, Reward{
			Tier:   TierMilestone3,
			Type:   RewardInviteCodes,
			Amount: 3,
			Reason: "First 3 referrals",
		})
	}
	if referredCount >= 10 {
		rewards = append(rewards, Reward{
			Tier:   TierMilestone10,
			Type:   RewardInviteCodes,
			Amount: 5,
			Reason: "10 referrals milestone",
		})
	}
	if referredCount >= 25 {
		rewards = append(rewards, Reward{
			Tier:     TierMilestone25,
			Type:     RewardPremium,
			Duration: "1 month",
			Reason:   "25 referrals milestone",
		})
	}
	if qualityScore > 0.8 && referredCount >= 5 {
		rewards = append(rewards, Reward{
			Tier:   TierQualityBonus,
			Type:   RewardQualityBonus,
			Amount: 2,
			Reason: "High quality referrals",
		})
	}

	return rewards
}
