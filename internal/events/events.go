// Package events publishes contact lifecycle events for downstream
// consumers (activity feeds, analytics). Publishing is fire-and-forget:
// a broker outage must never fail a contact operation, so failures are
// logged and dropped.
package events

import (
	"context"
	"sync"
	"time"

	id "twym/pkg/domain"
)

// Type enumerates lifecycle event kinds.
type Type string

const (
	ContactCreated      Type = "contact.created"
	ContactDeleted      Type = "contact.deleted"
	ContactRestored     Type = "contact.restored"
	SubmissionConverted Type = "submission.converted"
)

// Event is one lifecycle occurrence for a contact.
type Event struct {
	Type      Type         `json:"type"`
	OwnerID   id.UserID    `json:"owner_id"`
	ContactID id.ContactID `json:"contact_id"`
	Channel   string       `json:"channel,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Publisher emits lifecycle events. Implementations must not block the
// caller on broker I/O and must not return errors into the request path.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// MemorySink records events in memory for tests and for dev mode without a
// broker.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a snapshot of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}
