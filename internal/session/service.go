package session

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/avoronov/converse/internal/events"
	"github.com/avoronov/converse/internal/pubsub"
)

// CreateParams describes a session to create. A zero ID gets a fresh UUID.
type CreateParams struct {
	ID          string
	Title       string
	Model       string
	ClientType  string
	Temperature float64
}

// Service manages sessions with pub/sub event publishing.
type Service struct {
	store  Store
	broker *pubsub.Broker[events.SessionEvent]
}

// NewService creates a new session service. The broker may be nil.
func NewService(store Store, broker *pubsub.Broker[events.SessionEvent]) *Service {
	return &Service{store: store, broker: broker}
}

// Create creates a new session.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Session, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Title == "" {
		p.Title = "New Chat"
	}

	sess := &Session{
		ID:          p.ID,
		Title:       p.Title,
		Model:       p.Model,
		ClientType:  p.ClientType,
		Temperature: p.Temperature,
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.publish(pubsub.EventCreated, events.NewSessionCreatedEvent(sess.ID, sess.Title))
	return sess, nil
}

// EnsureExists returns the session with the given ID, creating it when a
// message arrives for a session never persisted. The returned bool reports
// whether a session was created.
func (s *Service) EnsureExists(ctx context.Context, p CreateParams) (*Session, bool, error) {
	sess, err := s.store.Get(ctx, p.ID)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	sess, err = s.Create(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Get retrieves a session by ID.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// List returns open sessions, most recently updated first.
func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.store.List(ctx)
}

// ListAll returns every session including closed ones.
func (s *Service) ListAll(ctx context.Context) ([]*Session, error) {
	return s.store.ListAll(ctx)
}

// Update applies a partial update to a session.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*Session, error) {
	if err := s.store.Update(ctx, id, p); err != nil {
		return nil, err
	}

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(pubsub.EventUpdated, events.NewSessionUpdatedEvent(sess.ID, sess.Title))
	return sess, nil
}

// Close marks a session closed. Closed sessions keep their history and can
// be reopened.
func (s *Service) Close(ctx context.Context, id string) error {
	if err := s.store.SetClosed(ctx, id, true); err != nil {
		return err
	}
	s.publish(pubsub.EventUpdated, events.NewSessionClosedEvent(id))
	return nil
}

// Reopen clears a session's closed flag.
func (s *Service) Reopen(ctx context.Context, id string) error {
	return s.store.SetClosed(ctx, id, false)
}

// Delete removes a session and its messages.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(pubsub.EventDeleted, events.NewSessionDeletedEvent(id))
	return nil
}

// Touch bumps the session's recency for listing order.
func (s *Service) Touch(ctx context.Context, id string) error {
	return s.store.Touch(ctx, id)
}

// AutoTitle derives a title from the first user message when the session
// still carries the placeholder title. Returns the session's current title.
func (s *Service) AutoTitle(ctx context.Context, sess *Session, firstMessage string) (string, error) {
	if sess.Title != "New Chat" {
		return sess.Title, nil
	}

	title := TitleFromMessage(firstMessage)
	if title == "" {
		return sess.Title, nil
	}
	if err := s.store.Update(ctx, sess.ID, Patch{Title: &title}); err != nil {
		return "", err
	}
	sess.Title = title
	return title, nil
}

// TitleFromMessage builds a session title from the first five words of the
// message, appending an ellipsis when truncated.
func TitleFromMessage(message string) string {
	words := strings.Fields(message)
	if len(words) == 0 {
		return ""
	}
	if len(words) <= 5 {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:5], " ") + "..."
}

func (s *Service) publish(eventType pubsub.EventType, event events.SessionEvent) {
	if s.broker != nil {
		s.broker.Publish(eventType, event)
	}
}
