package waitlist

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vobee/cmd/internal/api"
	"vobee/cmd/internal/gate"
	"vobee/cmd/internal/metrics"
)

const maxJoinBodyBytes = 8 << 10

// GateEvaluator re-runs the admission gate before a release.
type GateEvaluator interface {
	Evaluate() gate.Evaluation
}

// Handler wires the waitlist HTTP endpoints.
type Handler struct {
	log     *slog.Logger
	svc     *Service
	admin   api.AdminAuth
	gate    GateEvaluator
	issuer  CodeIssuer
	limiter *api.RateLimiter
	stats   *metrics.Metrics
}

// NewHandler constructs a waitlist Handler.
func NewHandler(log *slog.Logger, svc *Service, admin api.AdminAuth, gateEval GateEvaluator, issuer CodeIssuer, stats *metrics.Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:     log,
		svc:     svc,
		admin:   admin,
		gate:    gateEval,
		issuer:  issuer,
		limiter: api.NewRateLimiter(10, time.Minute),
		stats:   stats,
	}
}

// Register wires waitlist routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/waitlist/join", h.handleJoin)
	mux.HandleFunc("GET /api/waitlist/stats", h.handleStats)
	mux.HandleFunc("POST /api/invites/release-batch", h.handleReleaseBatch)
}

type joinRequest struct {
	Email   string `json:"email"`
	UseCase string `json:"use_case"`
	Persona string `json:"persona"`
}

type joinResponse struct {
	Success       bool    `json:"success"`
	Position      int     `json:"position"`
	TotalWaiting  int     `json:"total_waiting"`
	EstimatedWait string  `json:"estimated_wait"`
	PriorityScore float64 `json:"priority_score"`
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(api.ClientIP(r)) {
		api.WriteError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later")
		return
	}

	var req joinRequest
	if err := api.DecodeJSON(w, r, maxJoinBodyBytes, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	res, err := h.svc.Join(r.Context(), req.Email, req.UseCase, req.Persona)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			api.WriteError(w, http.StatusConflict, "email_exists", "email already on waitlist")
		case errors.Is(err, ErrDisposableEmail):
			api.WriteError(w, http.StatusBadRequest, "disposable_email", "disposable email addresses are not allowed")
		case errors.Is(err, ErrInvalidInput):
			api.WriteError(w, http.StatusBadRequest, "invalid_input", "missing or invalid signup fields")
		default:
			h.log.Error("waitlist.join.fail", "err", err)
			api.WriteError(w, http.StatusInternalServerError, "join_failed", "failed to join waitlist")
		}
		return
	}

	if h.stats != nil {
		h.stats.WaitlistJoins.Inc()
	}

	api.WriteJSON(w, http.StatusCreated, joinResponse{
		Success:       true,
		Position:      res.Position,
		TotalWaiting:  res.TotalWaiting,
		EstimatedWait: res.EstimatedWait,
		PriorityScore: res.PriorityScore,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if !h.admin.Check(w, r) {
		return
	}

	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.log.Error("waitlist.stats.fail", "err", err)
		api.WriteError(w, http.StatusInternalServerError, "stats_failed", "failed to get stats")
		return
	}
	if h.stats != nil {
		h.stats.WaitlistPending.Set(float64(st.Pending))
	}
	api.WriteJSON(w, http.StatusOK, st)
}

type releaseRequest struct {
	BatchSize int `json:"batch_size"`
}

type releaseResponse struct {
	Success   bool             `json:"success"`
	BatchID   string           `json:"batch_id"`
	Generated int              `json:"generated"`
	Codes     []ReleasedInvite `json:"codes"`
}

func (h *Handler) handleReleaseBatch(w http.ResponseWriter, r *http.Request) {
	if !h.admin.Check(w, r) {
		return
	}

	req := releaseRequest{BatchSize: 50}
	if r.ContentLength != 0 {
		if err := api.DecodeJSON(w, r, maxJoinBodyBytes, &req); err != nil {
			api.WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}
	}
	if req.BatchSize <= 0 || req.BatchSize > 1000 {
		api.WriteError(w, http.StatusBadRequest, "invalid_batch_size", "batch_size must be between 1 and 1000")
		return
	}

	// The gate is re-evaluated at release time; a stale pause flag must
	// never gate a fresh batch.
	if h.gate != nil {
		eval := h.gate.Evaluate()
		if !eval.InvitesAllowed {
			h.log.Warn("waitlist.release.paused",
				"trust_score", eval.TrustScore,
				"churn_rate", eval.Snapshot.ChurnRate,
			)
			api.WriteError(w, http.StatusLocked, "invites_paused", "invite generation paused due to quality gates")
			return
		}
	}

	batchID, released, err := h.svc.ReleaseBatch(r.Context(), req.BatchSize, h.issuer)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			api.WriteError(w, http.StatusNotFound, "no_pending", "no pending users in waitlist")
			return
		}
		h.log.Error("waitlist.release.fail", "batch_id", batchID, "err", err)
		api.WriteError(w, http.StatusInternalServerError, "release_failed", "failed to release batch")
		return
	}

	if h.stats != nil {
		h.stats.InvitesGenerated.Add(float64(len(released)))
	}

	api.WriteJSON(w, http.StatusCreated, releaseResponse{
		Success:   true,
		BatchID:   batchID,
		Generated: len(released),
		Codes:     released,
	})
}
