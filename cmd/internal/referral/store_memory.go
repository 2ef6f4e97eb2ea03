package referral

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and single-node runs.
// It mirrors the semantics of PostgresStore.
type MemoryStore struct {
	mu        sync.Mutex
	referrals []Referral
	claims    map[string]map[string]bool
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string]map[string]bool)}
}

func (s *MemoryStore) Insert(ctx context.Context, r Referral) error {
	if s == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" || r.InviterEmail == "" || r.InvitedEmail == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.referrals = append(s.referrals, r)
	return nil
}

func (s *MemoryStore) ListByInviter(ctx context.Context, inviter string) ([]Referral, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Referral
	for _, r := range s.referrals {
		if r.InviterEmail == inviter {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ClaimTier(ctx context.Context, inviter, tier string, _ time.Time) error {
	if s == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if inviter == "" || tier == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tiers := s.claims[inviter]
	if tiers == nil {
		tiers = make(map[string]bool)
		s.claims[inviter] = tiers
	}
	if tiers[tier] {
		return ErrAlreadyClaimed
	}
	tiers[tier] = true
	return nil
}

func (s *MemoryStore) ClaimedTiers(ctx context.Context, inviter string) (map[string]bool, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.claims[inviter]))
	for tier := range s.claims[inviter] {
		out[tier] = true
	}
	return out, nil
}
