package invite

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vobee/cmd/internal/api"
	"vobee/cmd/internal/metrics"
)

const maxInviteBodyBytes = 4 << 10

// AccountCreator provisions an account when a redemption succeeds. An error
// matching ErrEmailTaken signals the email already owns an account.
type AccountCreator interface {
	CreateFromInvite(ctx context.Context, email, password string) error
}

// NoopAccountCreator is used when account provisioning is disabled.
type NoopAccountCreator struct{}

func (NoopAccountCreator) CreateFromInvite(context.Context, string, string) error { return nil }

// Handler wires the invite ledger HTTP endpoints.
type Handler struct {
	log      *slog.Logger
	svc      *Service
	admin    api.AdminAuth
	accounts AccountCreator
	stats    *metrics.Metrics
}

// NewHandler constructs an invite Handler.
func NewHandler(log *slog.Logger, svc *Service, admin api.AdminAuth, accounts AccountCreator, stats *metrics.Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if accounts == nil {
		accounts = NoopAccountCreator{}
	}
	return &Handler{log: log, svc: svc, admin: admin, accounts: accounts, stats: stats}
}

// Register wires invite routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/invites/generate", h.handleGenerate)
	mux.HandleFunc("/api/invites/redeem", h.handleRedeem)
	mux.HandleFunc("GET /api/invites/{code}/status", h.handleStatus)
	mux.HandleFunc("GET /api/invites/{code}/validate", h.handleValidate)
}

type generateRequest struct {
	BatchSize int    `json:"batch_size"`
	BatchID   string `json:"batch_id"`
}

type generateResponse struct {
	Status    string   `json:"status"`
	BatchID   string   `json:"batch_id"`
	Generated int      `json:"generated"`
	Codes     []string `json:"codes"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.admin.Check(w, r) {
		return
	}

	var req generateRequest
	if err := api.DecodeJSON(w, r, maxInviteBodyBytes, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.BatchSize <= 0 || req.BatchSize > MaxBatchSize {
		api.WriteError(w, http.StatusBadRequest, "invalid_batch_size", "batch_size must be 1-1000")
		return
	}

	batchID, invites, err := h.svc.GenerateBatch(r.Context(), req.BatchSize, strings.TrimSpace(req.BatchID))
	if err != nil {
		h.log.Error("invite.generate.fail", "err", err)
		api.WriteError(w, http.StatusInternalServerError, "generation_failed", "failed to generate codes")
		return
	}

	codes := make([]string, len(invites))
	for i, inv := range invites {
		codes[i] = inv.Code
	}
	if h.stats != nil {
		h.stats.InvitesGenerated.Add(float64(len(codes)))
	}
	h.log.Info("invite.batch.generated", "batch_id", batchID, "count", len(codes))

	api.WriteJSON(w, http.StatusCreated, generateResponse{
		Status:    "success",
		BatchID:   batchID,
		Generated: len(codes),
		Codes:     codes,
	})
}

type redeemRequest struct {
	Code     string `json:"code"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type redeemResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Email   string `json:"email"`
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req redeemRequest
	if err := api.DecodeJSON(w, r, maxInviteBodyBytes, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	code := NormalizeCode(req.Code)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if code == "" || email == "" {
		api.WriteError(w, http.StatusBadRequest, "missing_fields", "code and email are required")
		return
	}
	if len(req.Password) < 8 {
		api.WriteError(w, http.StatusBadRequest, "weak_password", "password must be at least 8 characters")
		return
	}

	inv, err := h.svc.Redeem(r.Context(), code, email)
	if err != nil {
		h.writeRedeemError(w, code, err)
		return
	}

	if err := h.accounts.CreateFromInvite(r.Context(), email, req.Password); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			api.WriteError(w, http.StatusConflict, "email_exists", "email already has an account")
			return
		}
		// The code is burned; surface the provisioning failure loudly.
		h.log.Error("invite.redeem.account.fail", "code", code, "err", err)
		api.WriteError(w, http.StatusInternalServerError, "account_failed", "failed to provision account")
		return
	}

	if h.stats != nil {
		h.stats.InvitesRedeemed.Inc()
	}
	h.log.Info("invite.redeemed", "code", inv.Code, "batch_id", inv.BatchID)

	api.WriteJSON(w, http.StatusOK, redeemResponse{
		Status:  "success",
		Message: "Invite code redeemed successfully",
		Email:   email,
	})
}

func (h *Handler) writeRedeemError(w http.ResponseWriter, code string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "code_not_found", "invalid code")
	case errors.Is(err, ErrAlreadyUsed):
		api.WriteError(w, http.StatusConflict, "code_used", "code already used")
	case errors.Is(err, ErrExpired):
		api.WriteError(w, http.StatusGone, "code_expired", "code expired")
	case errors.Is(err, ErrInvalidInput):
		api.WriteError(w, http.StatusBadRequest, "invalid_input", "invalid code or email")
	default:
		h.log.Error("invite.redeem.fail", "code", code, "err", err)
		api.WriteError(w, http.StatusInternalServerError, "redeem_failed", "failed to redeem code")
	}
}

type statusResponse struct {
	Valid     bool      `json:"valid"`
	Status    string    `json:"status"`
	Used      bool      `json:"used"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Status(r.Context(), r.PathValue("code"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			api.WriteError(w, http.StatusNotFound, "code_not_found", "code not found")
			return
		}
		h.log.Error("invite.status.fail", "err", err)
		api.WriteError(w, http.StatusInternalServerError, "status_failed", "failed to get status")
		return
	}

	api.WriteJSON(w, http.StatusOK, statusResponse{
		Valid:     inv.IsValid(h.svc.Now()),
		Status:    inv.Status,
		Used:      inv.UsedAt != nil,
		ExpiresAt: inv.ExpiresAt,
	})
}

type validateResponse struct {
	Valid     bool      `json:"valid"`
	IssuedTo  string    `json:"issued_to,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	valid, inv, err := h.svc.Validate(r.Context(), r.PathValue("code"))
	if err != nil {
		h.log.Error("invite.validate.fail", "err", err)
		api.WriteError(w, http.StatusInternalServerError, "validate_failed", "failed to validate code")
		return
	}
	if inv.Code == "" {
		api.WriteError(w, http.StatusNotFound, "code_not_found", "code not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, validateResponse{
		Valid:     valid,
		IssuedTo:  inv.IssuedTo,
		ExpiresAt: inv.ExpiresAt,
	})
}
