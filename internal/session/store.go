// Package session provides server-side session management with persistence.
package session

import (
	"context"
	"time"
)

// Session is a conversation session as persisted by the server.
type Session struct {
	ID           string
	Title        string
	Model        string
	ClientType   string
	Temperature  float64
	IsClosed     bool
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Patch is a partial session update. Nil fields are left untouched.
type Patch struct {
	Title       *string
	Model       *string
	Temperature *float64
}

// Store defines the interface for session persistence.
type Store interface {
	// Create inserts a new session. The ID must already be set.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by ID with its message count.
	Get(ctx context.Context, id string) (*Session, error)

	// List returns open sessions ordered by updated_at descending.
	List(ctx context.Context) ([]*Session, error)

	// ListAll returns every session, closed ones included.
	ListAll(ctx context.Context) ([]*Session, error)

	// Update applies a partial update to a session.
	Update(ctx context.Context, id string, p Patch) error

	// SetClosed marks a session closed or reopened.
	SetClosed(ctx context.Context, id string, closed bool) error

	// Touch bumps the session's updated_at timestamp.
	Touch(ctx context.Context, id string) error

	// Delete removes a session and, via cascade, its messages.
	Delete(ctx context.Context, id string) error
}
