package waitlist

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and single-node runs.
// It mirrors the semantics of PostgresStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Insert(ctx context.Context, e Entry) error {
	if s == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Email == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.Email]; exists {
		return ErrEmailExists
	}
	s.entries[e.Email] = e
	return nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (Entry, error) {
	if s == nil {
		return Entry{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[email]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) Position(ctx context.Context, score float64) (int, error) {
	if s == nil {
		return 0, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ahead := 0
	for _, e := range s.entries {
		if e.PriorityScore > score {
			ahead++
		}
	}
	return ahead + 1, nil
}

func (s *MemoryStore) CountPending(ctx context.Context) (int, error) {
	if s == nil {
		return 0, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TopPending(ctx context.Context, n int) ([]Entry, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []Entry
	for _, e := range s.entries {
		if e.Status == StatusPending {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].PriorityScore != pending[j].PriorityScore {
			return pending[i].PriorityScore > pending[j].PriorityScore
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > n {
		pending = pending[:n]
	}
	return pending, nil
}

func (s *MemoryStore) MarkInvited(ctx context.Context, email string, at time.Time) error {
	if s == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[email]
	if !ok || e.Status != StatusPending {
		return ErrNotFound
	}
	e.Status = StatusInvited
	e.InvitedAt = &at
	s.entries[email] = e
	return nil
}

func (s *MemoryStore) MarkJoined(ctx context.Context, email string) error {
	if s == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[email]
	if !ok {
		return nil
	}
	e.Status = StatusJoined
	s.entries[email] = e
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	if s == nil {
		return Stats{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{ByPersona: make(map[string]PersonaStats)}
	sums := make(map[string]float64)
	var total float64
	for _, e := range s.entries {
		st.Total++
		total += e.PriorityScore
		switch e.Status {
		case StatusPending:
			st.Pending++
		case StatusInvited:
			st.Invited++
		case StatusJoined:
			st.Joined++
		}
		ps := st.ByPersona[e.Persona]
		ps.Count++
		st.ByPersona[e.Persona] = ps
		sums[e.Persona] += e.PriorityScore
	}
	if st.Total > 0 {
		st.AvgPriorityScore = total / float64(st.Total)
	}
	for persona, ps := range st.ByPersona {
		ps.AvgScore = sums[persona] / float64(ps.Count)
		st.ByPersona[persona] = ps
	}
	return st, nil
}
