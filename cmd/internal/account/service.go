package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vobee/cmd/internal/invite"
	"vobee/cmd/security/password"
)

// WaitlistMarker moves a waitlist entry to joined once its holder gets an
// account. Redemption works the same whether or not the member ever sat on
// the waitlist.
type WaitlistMarker interface {
	MarkJoined(ctx context.Context, email string) error
}

// NoopWaitlistMarker is used when the waitlist is not wired in.
type NoopWaitlistMarker struct{}

func (NoopWaitlistMarker) MarkJoined(context.Context, string) error { return nil }

// CodeIssuer mints personal referral codes through the invite ledger.
type CodeIssuer interface {
	Issue(ctx context.Context, batchID, issuedTo string) (invite.Invite, error)
}

// referralBatchID tags personal referral codes in the ledger.
const referralBatchID = "REFERRAL"

// GeneratedCode is the result of spending a referral code allowance.
type GeneratedCode struct {
	Code           string    `json:"code"`
	ExpiresAt      time.Time `json:"expires_at"`
	CodesRemaining int       `json:"codes_remaining"`
}

// Service implements account provisioning and the referral code allowance.
type Service struct {
	log       *slog.Logger
	store     Store
	waitlist  WaitlistMarker
	passwords password.Config
	nowF      func() time.Time
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

// WithWaitlistMarker wires the waitlist join-back.
func WithWaitlistMarker(m WaitlistMarker) Option {
	return func(s *Service) error {
		if m == nil {
			return ErrInvalidInput
		}
		s.waitlist = m
		return nil
	}
}

// WithPasswordConfig overrides the password policy and hashing cost.
func WithPasswordConfig(cfg password.Config) Option {
	return func(s *Service) error {
		s.passwords = cfg
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

// NewService constructs an account Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{
		log:       slog.Default(),
		store:     store,
		waitlist:  NoopWaitlistMarker{},
		passwords: password.DefaultConfig(),
		nowF:      time.Now,
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

// CreateFromInvite provisions a trial account after a successful code
// redemption. Satisfies the redemption path's account-creation contract.
func (s *Service) CreateFromInvite(ctx context.Context, email, pw string) error {
	if s == nil || s.store == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrInvalidInput
	}
	if err := s.passwords.Validate(pw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	hash, err := s.passwords.Hash(pw)
	if err != nil {
		return err
	}

	if err := s.store.Insert(ctx, NewAccount(email, hash, s.nowF())); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return fmt.Errorf("%w: %w", invite.ErrEmailTaken, err)
		}
		return err
	}

	if err := s.waitlist.MarkJoined(ctx, email); err != nil {
		// The account exists; losing the waitlist status update is not
		// worth failing the signup over.
		s.log.Warn("account.waitlist.markjoined.fail", "email", email, "err", err)
	}

	s.log.Info("account.created", "email", email, "tier", TierTrial)
	return nil
}

// VerifyPassword checks a login attempt against the stored hash.
func (s *Service) VerifyPassword(ctx context.Context, email, pw string) (bool, error) {
	if s == nil || s.store == nil {
		return false, ErrInvalidInput
	}

	a, err := s.store.Get(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, err
	}
	return s.passwords.Verify(a.PasswordHash, pw)
}

// EligibilityFor reports a member's referral program standing.
func (s *Service) EligibilityFor(ctx context.Context, email string) (Eligibility, error) {
	if s == nil || s.store == nil {
		return Eligibility{}, ErrInvalidInput
	}

	a, err := s.store.Get(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return Eligibility{}, err
	}
	return a.EligibilityAt(s.nowF()), nil
}

// GenerateReferralCode spends one code from the member's allowance and
// mints a personal invite code in the ledger.
func (s *Service) GenerateReferralCode(ctx context.Context, email string, issuer CodeIssuer) (GeneratedCode, error) {
	if s == nil || s.store == nil || issuer == nil {
		return GeneratedCode{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return GeneratedCode{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return GeneratedCode{}, ErrInvalidInput
	}

	a, err := s.store.Get(ctx, email)
	if err != nil {
		return GeneratedCode{}, err
	}
	if !a.EligibilityAt(s.nowF()).Eligible {
		return GeneratedCode{}, ErrNotEligible
	}

	remaining, err := s.store.ConsumeReferralCode(ctx, email)
	if err != nil {
		return GeneratedCode{}, err
	}

	inv, err := issuer.Issue(ctx, referralBatchID, email)
	if err != nil {
		return GeneratedCode{}, err
	}

	s.log.Info("account.referral.code", "email", email, "remaining", remaining)
	return GeneratedCode{
		Code:           inv.Code,
		ExpiresAt:      inv.ExpiresAt,
		CodesRemaining: remaining,
	}, nil
}

// RecordActivity counts today toward the member's active days.
func (s *Service) RecordActivity(ctx context.Context, email string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrInvalidInput
	}
	return s.store.TouchActivity(ctx, strings.ToLower(strings.TrimSpace(email)), s.nowF())
}

// Get fetches an account by email.
func (s *Service) Get(ctx context.Context, email string) (Account, error) {
	if s == nil || s.store == nil {
		return Account{}, ErrInvalidInput
	}
	return s.store.Get(ctx, strings.ToLower(strings.TrimSpace(email)))
}
