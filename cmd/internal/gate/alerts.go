package gate

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is one threshold violation. Alerts are regenerated on every
// evaluation; deduplication and rate limiting belong to the delivery side.
type Alert struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckThresholds evaluates the independent alert rules against the snapshot
// and the already-computed trust score. Rules fire independently; the result
// order follows the rule declaration order below.
func CheckThresholds(s Snapshot, trustScore float64) []Alert {
	now := time.Now().UTC()
	var alerts []Alert

	add := func(severity, message, metric string, value, threshold float64) {
		alerts = append(alerts, Alert{
			ID:        newAlertID(now),
			Severity:  severity,
			Message:   message,
			Metric:    metric,
			Value:     value,
			Threshold: threshold,
			Timestamp: now,
		})
	}

	switch {
	case s.ChurnRate > 0.2:
		add(SeverityCritical, "Churn rate exceeds critical threshold", "churn_rate", s.ChurnRate, 0.2)
	case s.ChurnRate > 0.15:
		add(SeverityWarning, "Churn rate exceeds warning threshold", "churn_rate", s.ChurnRate, 0.15)
	}

	switch {
	case trustScore < 0.7:
		add(SeverityCritical, "Trust score below critical threshold", "trust_score", trustScore, 0.7)
	case trustScore < 0.8:
		add(SeverityWarning, "Trust score below warning threshold", "trust_score", trustScore, 0.8)
	}

	if s.FraudRate > 0.05 {
		add(SeverityCritical, "Fraud rate exceeds threshold", "fraud_rate", s.FraudRate, 0.05)
	}

	return alerts
}

func newAlertID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
