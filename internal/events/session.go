// Package events defines typed event payloads published on the pubsub brokers.
package events

import "time"

// SessionEventType represents session-specific event types.
type SessionEventType string

// Session event type constants.
const (
	SessionEventCreated  SessionEventType = "created"
	SessionEventUpdated  SessionEventType = "updated"
	SessionEventDeleted  SessionEventType = "deleted"
	SessionEventSwitched SessionEventType = "switched"
	SessionEventClosed   SessionEventType = "closed"
)

// SessionEvent represents a session lifecycle event.
type SessionEvent struct {
	SessionID string
	Title     string
	Type      SessionEventType
	Timestamp time.Time
}

// NewSessionCreatedEvent creates a session created event.
func NewSessionCreatedEvent(id, title string) SessionEvent {
	return SessionEvent{
		SessionID: id,
		Title:     title,
		Type:      SessionEventCreated,
		Timestamp: time.Now(),
	}
}

// NewSessionUpdatedEvent creates a session updated event.
func NewSessionUpdatedEvent(id, title string) SessionEvent {
	return SessionEvent{
		SessionID: id,
		Title:     title,
		Type:      SessionEventUpdated,
		Timestamp: time.Now(),
	}
}

// NewSessionSwitchedEvent creates a session switched event.
func NewSessionSwitchedEvent(id string) SessionEvent {
	return SessionEvent{
		SessionID: id,
		Type:      SessionEventSwitched,
		Timestamp: time.Now(),
	}
}

// NewSessionClosedEvent creates a session tab closed event.
func NewSessionClosedEvent(id string) SessionEvent {
	return SessionEvent{
		SessionID: id,
		Type:      SessionEventClosed,
		Timestamp: time.Now(),
	}
}

// NewSessionDeletedEvent creates a session deleted event.
func NewSessionDeletedEvent(id string) SessionEvent {
	return SessionEvent{
		SessionID: id,
		Type:      SessionEventDeleted,
		Timestamp: time.Now(),
	}
}
