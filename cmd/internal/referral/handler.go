package referral

import (
	"errors"
	"log/slog"
	"net/http"

	"vobee/cmd/internal/api"
	"vobee/cmd/internal/metrics"
)

const maxReferralBodyBytes = 4 << 10

// Handler wires the referral HTTP endpoints.
type Handler struct {
	log    *slog.Logger
	svc    *Service
	issuer CodeIssuer
	stats  *metrics.Metrics
}

// NewHandler constructs a referral Handler.
func NewHandler(log *slog.Logger, svc *Service, issuer CodeIssuer, stats *metrics.Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, issuer: issuer, stats: stats}
}

// Register wires referral routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/referrals/share", h.handleShare)
	mux.HandleFunc("GET /api/referrals/{email}/quality", h.handleQuality)
	mux.HandleFunc("POST /api/referrals/{email}/claim", h.handleClaim)
}

type shareRequest struct {
	InviterEmail   string `json:"inviter_email"`
	RecipientEmail string `json:"recipient_email"`
	InviteCode     string `json:"invite_code"`
}

type shareResponse struct {
	Status     string `json:"status"`
	ReferralID string `json:"referral_id"`
	Message    string `json:"message"`
}

func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := api.DecodeJSON(w, r, maxReferralBodyBytes, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	ref, err := h.svc.Track(r.Context(), req.InviterEmail, req.RecipientEmail, req.InviteCode)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			api.WriteError(w, http.StatusBadRequest, "invalid_input", "inviter_email and recipient_email are required and must differ")
			return
		}
		h.log.Error("referral.share.fail", "err", err)
		api.WriteError(w, http.StatusInternalServerError, "track_failed", "failed to track referral")
		return
	}

	if h.stats != nil {
		h.stats.ReferralsTracked.Inc()
	}

	api.WriteJSON(w, http.StatusCreated, shareResponse{
		Status:     "success",
		ReferralID: ref.ID,
		Message:    "Referral tracked successfully",
	})
}

func (h *Handler) handleQuality(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.QualityFor(r.Context(), r.PathValue("email"))
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			api.WriteError(w, http.StatusBadRequest, "invalid_input", "a valid email is required")
			return
		}
		h.log.Error("referral.quality.fail", "err", err)
		api.WriteError(w, http.StatusInternalServerError, "quality_failed", "failed to get quality metrics")
		return
	}
	api.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ClaimRewards(r.Context(), r.PathValue("email"), h.issuer)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			api.WriteError(w, http.StatusBadRequest, "invalid_input", "a valid email is required")
			return
		}
		h.log.Error("referral.claim.fail", "err", err)
		api.WriteError(w, http.StatusInternalServerError, "claim_failed", "failed to claim rewards")
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}
