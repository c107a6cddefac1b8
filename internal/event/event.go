package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSessionChanged Type = "session.changed"
	TypeSessionExpired Type = "session.expired"
	TypeLoggedIn       Type = "session.logged_in"
	TypeLoggedOut      Type = "session.logged_out"
)

type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
	ContextID string      `json:"-"` // Browser context the event belongs to
}

// New stamps an event with a fresh ID and the current time.
func New(eventType Type, contextID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ContextID: contextID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
