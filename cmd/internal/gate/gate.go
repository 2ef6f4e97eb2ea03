package gate

import "fmt"

// HealthStatus labels.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Thresholds are the pause cutoffs for the admission gate.
type Thresholds struct {
	TrustScore float64
	ChurnRate  float64
}

// DefaultThresholds returns the standard pause cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{TrustScore: 0.7, ChurnRate: 0.2}
}

// Validate rejects thresholds outside [0,1]. Called once at startup so a
// misconfigured gate fails before serving, never per request.
func (t Thresholds) Validate() error {
	if t.TrustScore < 0 || t.TrustScore > 1 {
		return fmt.Errorf("gate: trust score threshold %v out of [0,1]", t.TrustScore)
	}
	if t.ChurnRate < 0 || t.ChurnRate > 1 {
		return fmt.Errorf("gate: churn rate threshold %v out of [0,1]", t.ChurnRate)
	}
	return nil
}

// ShouldPauseInvites reports whether invite issuance must be paused: the
// trust score fell under its threshold, or churn climbed over its own.
func ShouldPauseInvites(trustScore, churnRate float64, t Thresholds) bool {
	if trustScore < t.TrustScore {
		return true
	}
	if churnRate > t.ChurnRate {
		return true
	}
	return false
}

// HealthStatusFor classifies the snapshot into healthy/warning/critical.
// The trust score is recomputed from the snapshot; this function never
// trusts a cached score.
func HealthStatusFor(s Snapshot) string {
	score := TrustScore(s)
	switch {
	case score >= 0.8 && s.ChurnRate < 0.1:
		return HealthHealthy
	case score >= 0.7 && s.ChurnRate < 0.15:
		return HealthWarning
	default:
		return HealthCritical
	}
}

// Evaluation is the full admission decision over a snapshot.
type Evaluation struct {
	InvitesAllowed bool
	TrustScore     float64
	Snapshot       Snapshot
	Alerts         []Alert
}

// Evaluate recomputes the trust score, the pause decision, and the alert set
// from the given snapshot. Pure; safe for concurrent use.
func Evaluate(s Snapshot, t Thresholds) Evaluation {
	score := TrustScore(s)
	return Evaluation{
		InvitesAllowed: !ShouldPauseInvites(score, s.ChurnRate, t),
		TrustScore:     score,
		Snapshot:       s,
		Alerts:         CheckThresholds(s, score),
	}
}
