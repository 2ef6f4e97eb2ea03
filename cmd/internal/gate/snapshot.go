// Package gate implements the growth admission controls: the platform trust
// score, the invite pause decision, and threshold alerting over the current
// metric snapshot.
package gate

import "sync"

// Snapshot is the current platform metric state. Rates are expected in [0,1]
// but slightly out-of-range values are tolerated; scoring clamps instead of
// failing.
type Snapshot struct {
	ChurnRate       float64 `json:"churn_rate"`
	FraudRate       float64 `json:"fraud_rate"`
	EngagementRate  float64 `json:"engagement_rate"`
	ActiveUsers     int64   `json:"active_users"`
	NewSignupsToday int64   `json:"new_signups_today"`
}

// DefaultSnapshot is the seed state used until the first metrics push
// arrives. Mid-range values: gate open, no alerts firing.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		ChurnRate:       0.12,
		FraudRate:       0.02,
		EngagementRate:  0.75,
		ActiveUsers:     1000,
		NewSignupsToday: 25,
	}
}

// SnapshotUpdate is a partial metrics update. Nil fields are left untouched.
type SnapshotUpdate struct {
	ChurnRate       *float64 `json:"churn_rate"`
	FraudRate       *float64 `json:"fraud_rate"`
	EngagementRate  *float64 `json:"engagement_rate"`
	ActiveUsers     *int64   `json:"active_users"`
	NewSignupsToday *int64   `json:"new_signups_today"`
}

// Empty reports whether the update carries no fields at all.
func (u SnapshotUpdate) Empty() bool {
	return u.ChurnRate == nil && u.FraudRate == nil && u.EngagementRate == nil &&
		u.ActiveUsers == nil && u.NewSignupsToday == nil
}

// SnapshotStore holds the single current snapshot. One external writer,
// many readers; readers see the latest completed merge.
type SnapshotStore struct {
	mu  sync.RWMutex
	cur Snapshot
}

// NewSnapshotStore returns a store seeded with the given snapshot.
func NewSnapshotStore(initial Snapshot) *SnapshotStore {
	return &SnapshotStore{cur: initial}
}

// Current returns a copy of the latest snapshot.
func (s *SnapshotStore) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Merge applies a partial update field-by-field and returns the result.
func (s *SnapshotStore) Merge(u SnapshotUpdate) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ChurnRate != nil {
		s.cur.ChurnRate = *u.ChurnRate
	}
	if u.FraudRate != nil {
		s.cur.FraudRate = *u.FraudRate
	}
	if u.EngagementRate != nil {
		s.cur.EngagementRate = *u.EngagementRate
	}
	if u.ActiveUsers != nil {
		s.cur.ActiveUsers = *u.ActiveUsers
	}
	if u.NewSignupsToday != nil {
		s.cur.NewSignupsToday = *u.NewSignupsToday
	}
	return s.cur
}
