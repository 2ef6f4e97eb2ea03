package account

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and single-node runs.
// It mirrors the semantics of PostgresStore.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]Account)}
}

func (s *MemoryStore) Insert(ctx context.Context, a Account) error {
	if s == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Email == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.Email]; exists {
		return ErrEmailExists
	}
	s.accounts[a.Email] = a
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, email string) (Account, error) {
	if s == nil {
		return Account{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) ConsumeReferralCode(ctx context.Context, email string) (int, error) {
	if s == nil {
		return 0, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok {
		return 0, ErrNotFound
	}
	if a.ReferralCodesAvailable <= 0 {
		return 0, ErrNotEligible
	}
	a.ReferralCodesAvailable--
	s.accounts[email] = a
	return a.ReferralCodesAvailable, nil
}

func (s *MemoryStore) TouchActivity(ctx context.Context, email string, now time.Time) (int, error) {
	if s == nil {
		return 0, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok {
		return 0, ErrNotFound
	}
	if a.LastActiveAt == nil || a.LastActiveAt.UTC().Truncate(24*time.Hour).Before(now.Truncate(24*time.Hour)) {
		a.ActiveDaysCount++
	}
	a.LastActiveAt = &now
	s.accounts[email] = a
	return a.ActiveDaysCount, nil
}
