// Package alertfeed streams admission gate evaluations to operator
// dashboards over WebSocket. The hub is a broadcast-only fanout: the
// gate publishes, subscribers listen, nobody sends commands upstream.
package alertfeed

import (
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"vobee/cmd/internal/gate"
)

// Event is the wire format pushed to every subscriber.
type Event struct {
	Type           string       `json:"type"`
	ID             string       `json:"id"`
	TS             time.Time    `json:"ts"`
	InvitesAllowed bool         `json:"invites_allowed"`
	TrustScore     float64      `json:"trust_score"`
	Health         string       `json:"health"`
	Alerts         []gate.Alert `json:"alerts"`
}

const eventTypeEvaluation = "gate.evaluation"

// subscriber is one connected feed session.
//
// Concurrency guarantees mirror the broadcast rules:
// - send is never closed by the hub, so Publish cannot panic.
// - done signals the session goroutines to stop; close is idempotent.
type subscriber struct {
	id   string
	send chan Event

	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Hub owns subscriber membership and fans evaluations out to it.
// It retains the most recent event so a fresh subscriber sees the
// current gate state without waiting for the next evaluation.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]*subscriber
	last *Event
}

// NewHub constructs an empty hub. A nil logger gets a no-op default.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:  log,
		subs: make(map[string]*subscriber),
	}
}

// Publish converts the evaluation into an event and broadcasts it.
// Non-blocking: a subscriber whose queue is full misses the event.
// Implements the delivery sink the gate handler expects.
func (h *Hub) Publish(ev gate.Evaluation) {
	if h == nil {
		return
	}

	now := time.Now().UTC()
	event := Event{
		Type:           eventTypeEvaluation,
		ID:             ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		TS:             now,
		InvitesAllowed: ev.InvitesAllowed,
		TrustScore:     ev.TrustScore,
		Health:         gate.HealthStatusFor(ev.Snapshot),
		Alerts:         ev.Alerts,
	}

	h.mu.Lock()
	h.last = &event
	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	dropped := 0
	for _, s := range subs {
		select {
		case <-s.done:
			continue
		default:
		}

		select {
		case s.send <- event:
		default:
			dropped++
		}
	}

	if dropped > 0 {
		h.log.Warn("alertfeed.publish.dropped", "event_id", event.ID, "subscribers", len(subs), "dropped", dropped)
	}
}

// Subscribers reports the current membership size.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// subscribe registers a new session. The retained event, if any, is
// pre-queued so the session starts with the current gate state.
func (h *Hub) subscribe(queueSize int) *subscriber {
	if queueSize <= 0 {
		queueSize = wsDefaultSendQueueSize
	}

	s := &subscriber{
		id:   ulid.MustNew(ulid.Now(), rand.Reader).String(),
		send: make(chan Event, queueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.last != nil {
		s.send <- *h.last
	}
	h.subs[s.id] = s
	h.mu.Unlock()

	h.log.Info("alertfeed.subscriber.join", "subscriber_id", s.id)
	return s
}

// unsubscribe removes the session from membership and signals its
// goroutines to stop. Removal happens before close so a concurrent
// Publish never targets a torn-down session.
func (h *Hub) unsubscribe(s *subscriber) {
	if s == nil {
		return
	}

	h.mu.Lock()
	delete(h.subs, s.id)
	h.mu.Unlock()

	s.close()
	h.log.Info("alertfeed.subscriber.leave", "subscriber_id", s.id)
}
