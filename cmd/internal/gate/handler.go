package gate

import (
	"log/slog"
	"math"
	"net/http"

	"vobee/cmd/internal/api"
)

const maxMetricsBodyBytes = 4 << 10

// Feed receives every gate evaluation for out-of-band delivery (the ops
// websocket feed). Implementations must not block.
type Feed interface {
	Publish(ev Evaluation)
}

// NopFeed discards evaluations.
type NopFeed struct{}

func (NopFeed) Publish(Evaluation) {}

// Handler exposes the quality-gate HTTP endpoints over the snapshot store.
type Handler struct {
	log        *slog.Logger
	snapshots  *SnapshotStore
	thresholds Thresholds
	feed       Feed
}

// NewHandler constructs a gate Handler. Thresholds must already be validated.
func NewHandler(log *slog.Logger, snapshots *SnapshotStore, thresholds Thresholds, feed Feed) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if feed == nil {
		feed = NopFeed{}
	}
	return &Handler{log: log, snapshots: snapshots, thresholds: thresholds, feed: feed}
}

// Register wires the quality endpoints onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/quality/trust-score", h.handleTrustScore)
	mux.HandleFunc("/api/quality/evaluate-gate", h.handleEvaluateGate)
	mux.HandleFunc("/api/quality/metrics", h.handleUpdateMetrics)
	mux.HandleFunc("/api/quality/alerts", h.handleAlerts)
}

// Evaluate runs the gate against the latest snapshot. Exposed for the
// issuance path, which must re-evaluate rather than reuse a stored flag.
func (h *Handler) Evaluate() Evaluation {
	return Evaluate(h.snapshots.Current(), h.thresholds)
}

type trustScoreResponse struct {
	TrustScore     float64 `json:"trust_score"`
	ChurnRate      float64 `json:"churn_rate"`
	FraudRate      float64 `json:"fraud_rate"`
	EngagementRate float64 `json:"engagement_rate"`
	InvitesPaused  bool    `json:"invites_paused"`
	HealthStatus   string  `json:"health_status"`
}

func (h *Handler) handleTrustScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s := h.snapshots.Current()
	score := TrustScore(s)

	api.WriteJSON(w, http.StatusOK, trustScoreResponse{
		TrustScore:     round2(score),
		ChurnRate:      s.ChurnRate,
		FraudRate:      s.FraudRate,
		EngagementRate: s.EngagementRate,
		InvitesPaused:  ShouldPauseInvites(score, s.ChurnRate, h.thresholds),
		HealthStatus:   HealthStatusFor(s),
	})
}

type evaluateGateResponse struct {
	InvitesAllowed bool     `json:"invites_allowed"`
	TrustScore     float64  `json:"trust_score"`
	Metrics        Snapshot `json:"metrics"`
	Alerts         []Alert  `json:"alerts"`
}

func (h *Handler) handleEvaluateGate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ev := h.Evaluate()
	h.feed.Publish(ev)

	api.WriteJSON(w, http.StatusOK, evaluateGateResponse{
		InvitesAllowed: ev.InvitesAllowed,
		TrustScore:     round2(ev.TrustScore),
		Metrics:        ev.Snapshot,
		Alerts:         alertsOrEmpty(ev.Alerts),
	})
}

type updateMetricsResponse struct {
	Status  string   `json:"status"`
	Metrics Snapshot `json:"metrics"`
}

func (h *Handler) handleUpdateMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var upd SnapshotUpdate
	if err := api.DecodeJSON(w, r, maxMetricsBodyBytes, &upd); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if upd.Empty() {
		api.WriteError(w, http.StatusBadRequest, "empty_update", "no metric fields supplied")
		return
	}

	merged := h.snapshots.Merge(upd)
	h.log.Info("gate.metrics.updated",
		"churn_rate", merged.ChurnRate,
		"fraud_rate", merged.FraudRate,
		"engagement_rate", merged.EngagementRate,
	)

	api.WriteJSON(w, http.StatusOK, updateMetricsResponse{Status: "success", Metrics: merged})
}

type alertsResponse struct {
	Alerts []Alert `json:"alerts"`
	Count  int     `json:"count"`
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s := h.snapshots.Current()
	alerts := CheckThresholds(s, TrustScore(s))
	api.WriteJSON(w, http.StatusOK, alertsResponse{Alerts: alertsOrEmpty(alerts), Count: len(alerts)})
}

func alertsOrEmpty(a []Alert) []Alert {
	if a == nil {
		return []Alert{}
	}
	return a
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
