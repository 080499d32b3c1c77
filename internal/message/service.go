package message

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Service manages message persistence.
type Service struct {
	store Store
}

// NewService creates a new message service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Append persists a new message and returns it with its generated ID.
func (s *Service) Append(ctx context.Context, sessionID, role, content string, files []string) (*Message, error) {
	m := &Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Files:     files,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// History returns a session's messages oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]*Message, error) {
	return s.store.ListBySession(ctx, sessionID)
}

// Delete removes a message. Deleting a message that is already gone is not
// an error; retried deletes must converge.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Clear removes all messages for a session, keeping the session itself.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.store.DeleteBySession(ctx, sessionID)
}
