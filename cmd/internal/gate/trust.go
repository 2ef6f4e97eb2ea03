package gate

// Trust score penalty thresholds. Each penalty applies only past its
// threshold and scales linearly with the overshoot.
const (
	churnPenaltyThreshold      = 0.15
	churnPenaltyWeight         = 2.0
	fraudPenaltyThreshold      = 0.05
	fraudPenaltyWeight         = 3.0
	engagementPenaltyThreshold = 0.5
)

// TrustScore derives the platform trust score from the snapshot.
// The result is always in [0,1]; out-of-range inputs are absorbed by the
// final clamp rather than rejected. No rounding happens here — presentation
// layers round for display.
func TrustScore(s Snapshot) float64 {
	score := 1.0

	if s.ChurnRate > churnPenaltyThreshold {
		score -= (s.ChurnRate - churnPenaltyThreshold) * churnPenaltyWeight
	}
	if s.FraudRate > fraudPenaltyThreshold {
		score -= (s.FraudRate - fraudPenaltyThreshold) * fraudPenaltyWeight
	}
	if s.EngagementRate < engagementPenaltyThreshold {
		score -= engagementPenaltyThreshold - s.EngagementRate
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
