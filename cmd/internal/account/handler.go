package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"vobee/cmd/internal/api"
	"vobee/cmd/internal/referral"
)

const maxAccountBodyBytes = 4 << 10

// QualitySource supplies referral history metrics for stats reporting.
type QualitySource interface {
	QualityFor(ctx context.Context, email string) (referral.QualityReport, error)
}

// Handler wires the account-facing referral endpoints.
type Handler struct {
	log     *slog.Logger
	svc     *Service
	issuer  CodeIssuer
	quality QualitySource
}

// NewHandler constructs an account Handler.
func NewHandler(log *slog.Logger, svc *Service, issuer CodeIssuer, quality QualitySource) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, issuer: issuer, quality: quality}
}

// Register wires account routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/referrals/generate", h.handleGenerate)
	mux.HandleFunc("GET /api/referrals/stats/{email}", h.handleStats)
	mux.HandleFunc("POST /api/accounts/{email}/activity", h.handleActivity)
}

type generateRequest struct {
	Email string `json:"email"`
}

type generateResponse struct {
	Success        bool      `json:"success"`
	Code           string    `json:"code"`
	ExpiresAt      time.Time `json:"expires_at"`
	CodesRemaining int       `json:"codes_remaining"`
}

type requirementsPayload struct {
	DaysSinceTrial string `json:"days_since_trial"`
	ActiveDays     string `json:"active_days"`
	CodesAvailable int    `json:"codes_available"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := api.DecodeJSON(w, r, maxAccountBodyBytes, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if req.Email == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_input", "email is required")
		return
	}

	gen, err := h.svc.GenerateReferralCode(r.Context(), req.Email, h.issuer)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			api.WriteError(w, http.StatusNotFound, "user_not_found", "user not found")
		case errors.Is(err, ErrNotEligible):
			h.writeNotEligible(w, r, req.Email)
		case errors.Is(err, ErrInvalidInput):
			api.WriteError(w, http.StatusBadRequest, "invalid_input", "email is required")
		default:
			h.log.Error("account.referral.generate.fail", "err", err)
			api.WriteError(w, http.StatusInternalServerError, "generate_failed", "failed to generate referral code")
		}
		return
	}

	api.WriteJSON(w, http.StatusCreated, generateResponse{
		Success:        true,
		Code:           gen.Code,
		ExpiresAt:      gen.ExpiresAt,
		CodesRemaining: gen.CodesRemaining,
	})
}

// writeNotEligible reports which requirement is unmet, mirroring the
// generate response the product's client expects on a 403.
func (h *Handler) writeNotEligible(w http.ResponseWriter, r *http.Request, email string) {
	el, err := h.svc.EligibilityFor(r.Context(), email)
	if err != nil {
		api.WriteError(w, http.StatusForbidden, "not_eligible", "not eligible for referral codes")
		return
	}
	api.WriteJSON(w, http.StatusForbidden, struct {
		Error        string              `json:"error"`
		Requirements requirementsPayload `json:"requirements"`
	}{
		Error: "Not eligible for referral codes",
		Requirements: requirementsPayload{
			DaysSinceTrial: fmt.Sprintf("%d/%d", el.DaysSinceTrial, MinTrialDays),
			ActiveDays:     fmt.Sprintf("%d/%d", el.ActiveDays, MinActiveDays),
			CodesAvailable: el.CodesAvailable,
		},
	})
}

type statsResponse struct {
	CodesEarned          int     `json:"codes_earned"`
	CodesAvailable       int     `json:"codes_available"`
	ReferralCount        int     `json:"referral_count"`
	ReferralQualityScore float64 `json:"referral_quality_score"`
	IsEligible           bool    `json:"is_eligible"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")

	a, err := h.svc.Get(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			api.WriteError(w, http.StatusNotFound, "user_not_found", "user not found")
			return
		}
		h.log.Error("account.referral.stats.fail", "err", err)
		api.WriteError(w, http.StatusInternalServerError, "stats_failed", "failed to get referral stats")
		return
	}

	resp := statsResponse{
		CodesEarned:    a.ReferralCodesEarned,
		CodesAvailable: a.ReferralCodesAvailable,
		IsEligible:     a.EligibilityAt(h.svc.nowF()).Eligible,
	}
	if h.quality != nil {
		report, err := h.quality.QualityFor(r.Context(), email)
		if err != nil {
			h.log.Warn("account.referral.stats.quality.fail", "err", err)
		} else {
			resp.ReferralCount = report.ReferredCount
			resp.ReferralQualityScore = report.QualityScore
		}
	}

	api.WriteJSON(w, http.StatusOK, resp)
}

type activityResponse struct {
	ActiveDays int `json:"active_days"`
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	days, err := h.svc.RecordActivity(r.Context(), r.PathValue("email"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			api.WriteError(w, http.StatusNotFound, "user_not_found", "user not found")
			return
		}
		h.log.Error("account.activity.fail", "err", err)
		api.WriteError(w, http.StatusInternalServerError, "activity_failed", "failed to record activity")
		return
	}
	api.WriteJSON(w, http.StatusOK, activityResponse{ActiveDays: days})
}
