package waitlist

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vobee/cmd/internal/invite"
)

const minUseCaseChars = 20

// CodeIssuer mints invite codes for released entries.
type CodeIssuer interface {
	Issue(ctx context.Context, batchID, issuedTo string) (invite.Invite, error)
}

// JoinResult is returned to a successful signup.
type JoinResult struct {
	Position      int     `json:"position"`
	TotalWaiting  int     `json:"total_waiting"`
	EstimatedWait string  `json:"estimated_wait"`
	PriorityScore float64 `json:"priority_score"`
}

// ReleasedInvite records one code issued during a batch release.
type ReleasedInvite struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service implements waitlist operations over a Store.
type Service struct {
	log    *slog.Logger
	store  Store
	emails EmailSender
	nowF   func() time.Time
}

// Option configures Service.
type Option func(*Service) error

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(f func() time.Time) Option {
	return func(s *Service) error {
		if f == nil {
			return ErrInvalidInput
		}
		s.nowF = f
		return nil
	}
}

// WithEmailSender overrides the default no-op email sender.
func WithEmailSender(sender EmailSender) Option {
	return func(s *Service) error {
		if sender == nil {
			return ErrInvalidInput
		}
		s.emails = sender
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log == nil {
			return ErrInvalidInput
		}
		s.log = log
		return nil
	}
}

// NewService constructs a waitlist Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{
		log:    slog.Default(),
		store:  store,
		emails: NoopEmailSender{},
		nowF:   time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Join validates and registers a signup, then reports its queue position.
func (s *Service) Join(ctx context.Context, email, useCase, persona string) (JoinResult, error) {
	if s == nil || s.store == nil {
		return JoinResult{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return JoinResult{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	useCase = SanitizeUseCase(useCase)
	persona = strings.ToLower(strings.TrimSpace(persona))

	if email == "" || useCase == "" || persona == "" {
		return JoinResult{}, ErrInvalidInput
	}
	if !ValidateEmailFormat(email) {
		return JoinResult{}, ErrInvalidInput
	}
	if len(useCase) < minUseCaseChars {
		return JoinResult{}, ErrInvalidInput
	}
	if !ValidPersona(persona) {
		return JoinResult{}, ErrInvalidInput
	}

	scored := CalculatePriorityScore(persona, useCase, email)
	if !scored.DomainValid {
		return JoinResult{}, ErrDisposableEmail
	}

	now := s.nowF().UTC()
	if err := s.store.Insert(ctx, NewEntry(email, useCase, persona, scored.Score, now)); err != nil {
		return JoinResult{}, err
	}

	position, err := s.store.Position(ctx, scored.Score)
	if err != nil {
		return JoinResult{}, err
	}
	totalWaiting, err := s.store.CountPending(ctx)
	if err != nil {
		return JoinResult{}, err
	}

	res := JoinResult{
		Position:      position,
		TotalWaiting:  totalWaiting,
		EstimatedWait: EstimateWaitTime(position),
		PriorityScore: scored.Score,
	}

	// Confirmation delivery never blocks the signup.
	if err := s.emails.SendWaitlistConfirmation(ctx, ConfirmationMessage{
		Email:         email,
		Position:      res.Position,
		TotalWaiting:  res.TotalWaiting,
		EstimatedWait: res.EstimatedWait,
	}); err != nil {
		s.log.Warn("waitlist.join.email.fail", "email", email, "err", err)
	}

	s.log.Info("waitlist.joined",
		"email", email,
		"position", res.Position,
		"score", res.PriorityScore,
	)
	return res, nil
}

// Stats returns the operator summary.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.store == nil {
		return Stats{}, ErrInvalidInput
	}
	return s.store.Stats(ctx)
}

// MarkJoined records that an invitee redeemed their code.
func (s *Service) MarkJoined(ctx context.Context, email string) error {
	if s == nil || s.store == nil {
		return ErrInvalidInput
	}
	return s.store.MarkJoined(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// ReleaseBatch issues codes to the top n pending entries and promotes them
// to invited. Entries whose email domain no longer passes validation are
// skipped rather than failing the whole batch.
func (s *Service) ReleaseBatch(ctx context.Context, n int, issuer CodeIssuer) (string, []ReleasedInvite, error) {
	if s == nil || s.store == nil || issuer == nil {
		return "", nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if n <= 0 {
		return "", nil, ErrInvalidInput
	}

	top, err := s.store.TopPending(ctx, n)
	if err != nil {
		return "", nil, err
	}
	if len(top) == 0 {
		return "", nil, ErrNotFound
	}

	now := s.nowF().UTC()
	batchID := invite.NewBatchID(now)
	var released []ReleasedInvite
	for _, e := range top {
		if !ValidateEmailDomain(e.Email) {
			s.log.Warn("waitlist.release.skip", "email_hash", e.EmailHash, "reason", "domain")
			continue
		}

		inv, err := issuer.Issue(ctx, batchID, e.Email)
		if err != nil {
			return batchID, released, err
		}
		if err := s.store.MarkInvited(ctx, e.Email, now); err != nil {
			return batchID, released, err
		}

		if err := s.emails.SendInviteReady(ctx, InviteReadyMessage{
			Email:     e.Email,
			Code:      inv.Code,
			ExpiresAt: inv.ExpiresAt.Format("2006-01-02 15:04 UTC"),
		}); err != nil {
			s.log.Warn("waitlist.release.email.fail", "email", e.Email, "err", err)
		}

		released = append(released, ReleasedInvite{
			Email:     e.Email,
			Code:      inv.Code,
			ExpiresAt: inv.ExpiresAt,
		})
	}

	s.log.Info("waitlist.batch.released", "batch_id", batchID, "released", len(released))
	return batchID, released, nil
}
