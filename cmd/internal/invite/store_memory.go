package invite

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the dev-mode ledger used when no database is configured.
// It mirrors the PostgresStore semantics: insert-if-absent, and redemption
// as one atomic check-and-set under the store lock.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]Invite
}

// NewMemoryStore constructs an in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]Invite)}
}

// Insert adds a row unless the code already exists.
func (s *MemoryStore) Insert(ctx context.Context, inv Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !CodePattern.MatchString(inv.Code) {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.codes[inv.Code]; exists {
		return ErrCodeExists
	}
	s.codes[inv.Code] = inv
	return nil
}

// Get fetches an invite by code.
func (s *MemoryStore) Get(ctx context.Context, code string) (Invite, error) {
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	code = NormalizeCode(code)
	if code == "" {
		return Invite{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.codes[code]
	if !ok {
		return Invite{}, ErrNotFound
	}
	return inv, nil
}

// Redeem performs the conditional used-fields update atomically.
func (s *MemoryStore) Redeem(ctx context.Context, code, usedBy string, now time.Time) (Invite, error) {
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	code = NormalizeCode(code)
	if code == "" || strings.TrimSpace(usedBy) == "" {
		return Invite{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.codes[code]
	if !ok {
		return Invite{}, ErrNotFound
	}
	if inv.UsedAt != nil || inv.Status == StatusUsed {
		return Invite{}, ErrAlreadyUsed
	}
	if !now.Before(inv.ExpiresAt) || inv.Status == StatusExpired {
		return Invite{}, ErrExpired
	}
	if inv.Status != StatusActive {
		return Invite{}, ErrAlreadyUsed
	}

	used := now
	inv.UsedBy = &usedBy
	inv.UsedAt = &used
	inv.Status = StatusUsed
	s.codes[code] = inv
	return inv, nil
}

// Count returns ledger totals.
func (s *MemoryStore) Count(ctx context.Context) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var c Counts
	for _, inv := range s.codes {
		c.Total++
		switch inv.Status {
		case StatusActive:
			c.Active++
		case StatusUsed:
			c.Used++
		}
	}
	return c, nil
}
