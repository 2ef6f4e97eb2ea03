package invite

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// maxCollisionRetries bounds per-code regeneration when an insert hits
	// an existing code. Collisions are astronomically unlikely at 48 bits
	// of entropy, so exhausting this is a generation fault, not bad luck.
	maxCollisionRetries = 5

	// MaxBatchSize caps one generation request.
	MaxBatchSize = 1000
)

// ErrBatchExhausted is returned when a code could not be inserted within the
// retry budget.
var ErrBatchExhausted = errors.New("invite code generation retries exhausted")

// Service manages the invite ledger on top of a Store.
type Service struct {
	store Store
	nowF  func() time.Time
}

// Option configures the Service.
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

// NewService constructs a Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{store: store, nowF: func() time.Time { return time.Now().UTC() }}
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

// Issue mints and persists one invite, optionally addressed to an email.
// On a code collision only the colliding code is regenerated.
func (s *Service) Issue(ctx context.Context, batchID, issuedTo string) (Invite, error) {
	if s == nil || s.store == nil {
		return Invite{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}

	now := s.nowF()
	for attempt := 0; attempt < maxCollisionRetries; attempt++ {
		code, err := NewCode()
		if err != nil {
			return Invite{}, err
		}
		inv := NewInvite(code, batchID, issuedTo, now)
		err = s.store.Insert(ctx, inv)
		if err == nil {
			return inv, nil
		}
		if errors.Is(err, ErrCodeExists) {
			continue
		}
		return Invite{}, err
	}
	return Invite{}, ErrBatchExhausted
}

// GenerateBatch mints n invites sharing one batch ID.
func (s *Service) GenerateBatch(ctx context.Context, n int, batchID string) (string, []Invite, error) {
	if s == nil || s.store == nil {
		return "", nil, ErrInvalidInput
	}
	if n <= 0 || n > MaxBatchSize {
		return "", nil, fmt.Errorf("%w: batch size %d not in 1..%d", ErrInvalidInput, n, MaxBatchSize)
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	if batchID == "" {
		batchID = NewBatchID(s.nowF())
	}

	out := make([]Invite, 0, n)
	for i := 0; i < n; i++ {
		inv, err := s.Issue(ctx, batchID, "")
		if err != nil {
			return batchID, out, err
		}
		out = append(out, inv)
	}
	return batchID, out, nil
}

// Redeem marks the code used exactly once. Losers of a redemption race get
// ErrAlreadyUsed; expired and unknown codes report ErrExpired / ErrNotFound.
func (s *Service) Redeem(ctx context.Context, code, email string) (Invite, error) {
	if s == nil || s.store == nil {
		return Invite{}, ErrInvalidInput
	}
	return s.store.Redeem(ctx, code, email, s.nowF())
}

// Validate reports whether the code can be redeemed right now, and the
// invite itself for context when it exists.
func (s *Service) Validate(ctx context.Context, code string) (bool, Invite, error) {
	if s == nil || s.store == nil {
		return false, Invite{}, ErrInvalidInput
	}
	inv, err := s.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, Invite{}, nil
		}
		return false, Invite{}, err
	}
	return inv.IsValid(s.nowF()), inv, nil
}

// Status fetches the invite for status reporting.
func (s *Service) Status(ctx context.Context, code string) (Invite, error) {
	if s == nil || s.store == nil {
		return Invite{}, ErrInvalidInput
	}
	return s.store.Get(ctx, code)
}

// Counts returns ledger totals.
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	if s == nil || s.store == nil {
		return Counts{}, ErrInvalidInput
	}
	return s.store.Count(ctx)
}

// Now exposes the service clock so collaborating services share one notion
// of time in tests.
func (s *Service) Now() time.Time {
	return s.nowF()
}
