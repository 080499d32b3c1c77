// Package message provides server-side message persistence.
package message

import (
	"context"
	"time"
)

// Role values for persisted messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a persisted chat message.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Files     []string
	CreatedAt time.Time
}

// Store defines the interface for message persistence.
type Store interface {
	// Create inserts a new message. The ID must already be set.
	Create(ctx context.Context, m *Message) error

	// Get retrieves a message by ID.
	Get(ctx context.Context, id string) (*Message, error)

	// ListBySession returns a session's messages in chronological order.
	ListBySession(ctx context.Context, sessionID string) ([]*Message, error)

	// Delete removes a message by ID.
	Delete(ctx context.Context, id string) error

	// DeleteBySession removes all messages for a session.
	DeleteBySession(ctx context.Context, sessionID string) error
}
