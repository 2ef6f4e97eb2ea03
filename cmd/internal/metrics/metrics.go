// Package metrics holds the Prometheus collectors shared by the vobee
// endpoint packages. One Metrics value is constructed at startup and passed
// into the handlers that move the counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	WaitlistJoins    prometheus.Counter
	InvitesGenerated prometheus.Counter
	InvitesRedeemed  prometheus.Counter
	ReferralsTracked prometheus.Counter
	GateEvaluations  *prometheus.CounterVec
	TrustScore       prometheus.Gauge
	WaitlistPending  prometheus.Gauge
}

// New builds and registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		WaitlistJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vobee_waitlist_joins_total",
			Help: "Accepted waitlist signups.",
		}),
		InvitesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vobee_invites_generated_total",
			Help: "Invite codes minted.",
		}),
		InvitesRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vobee_invites_redeemed_total",
			Help: "Invite codes redeemed exactly once.",
		}),
		ReferralsTracked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vobee_referrals_tracked_total",
			Help: "Referral events recorded.",
		}),
		GateEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vobee_gate_evaluations_total",
			Help: "Admission gate evaluations by outcome.",
		}, []string{"outcome"}),
		TrustScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vobee_trust_score",
			Help: "Last computed platform trust score.",
		}),
		WaitlistPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vobee_waitlist_pending",
			Help: "Waitlist entries still pending.",
		}),
	}

	reg.MustRegister(
		m.WaitlistJoins,
		m.InvitesGenerated,
		m.InvitesRedeemed,
		m.ReferralsTracked,
		m.GateEvaluations,
		m.TrustScore,
		m.WaitlistPending,
	)
	return m
}

// Handler returns the /metrics scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGateEvaluation moves the evaluation counters and the score gauge.
func (m *Metrics) RecordGateEvaluation(invitesAllowed bool, trustScore float64) {
	if m == nil {
		return
	}
	outcome := "paused"
	if invitesAllowed {
		outcome = "allowed"
	}
	m.GateEvaluations.WithLabelValues(outcome).Inc()
	m.TrustScore.Set(trustScore)
}
