// Package state holds the client-side view of sessions, open tabs and
// message lists. It is mutated only by the orchestrator's reconciliation
// step and by direct user actions.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avoronov/converse/internal/api"
	"github.com/avoronov/converse/internal/events"
	"github.com/avoronov/converse/internal/pubsub"
)

// Store errors.
var (
	ErrUnknownSession = errors.New("unknown session")
	ErrPendingSend    = errors.New("a send is already pending for this session")
)

// Session is the client-side view of a session.
type Session struct {
	ID           string
	Title        string
	Model        string
	Temperature  float64
	MessageCount int
	IsClosed     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FromAPI converts a server session to the client view.
func FromAPI(s api.Session) Session {
	return Session{
		ID:           s.ID,
		Title:        s.Title,
		Model:        s.Model,
		Temperature:  s.Temperature,
		MessageCount: s.MessageCount,
		IsClosed:     s.IsClosed,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// EntryState tags a message entry as optimistic or server-confirmed.
type EntryState string

// Entry states. Server responses always win over a temporary entry in the
// same logical slot.
const (
	EntryTemporary EntryState = "temporary"
	EntryConfirmed EntryState = "confirmed"
)

// Entry is one message slot in a session's list.
type Entry struct {
	State   EntryState
	Message api.Message
}

// Store tracks all known sessions, the subset with open tabs, the active
// session, and per-session message lists.
//
// Invariants, preserved by every mutation:
//   - every ID in the open-tab set references a known session
//   - the active session ID, if non-empty, is a member of the open-tab set
type Store struct {
	mu       sync.RWMutex
	broker   *pubsub.Broker[events.SessionEvent]
	sessions []*Session
	openTabs []string
	active   string
	messages map[string][]Entry

	defaultModel       string
	defaultTemperature float64
}

// NewStore creates an empty store. The defaults are used when the store must
// synthesize a replacement session after the last tab closes. The broker may
// be nil.
func NewStore(broker *pubsub.Broker[events.SessionEvent], defaultModel string, defaultTemperature float64) *Store {
	return &Store{
		broker:             broker,
		messages:           make(map[string][]Entry),
		defaultModel:       defaultModel,
		defaultTemperature: defaultTemperature,
	}
}

// Sessions returns all known sessions, most recent first.
func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = *sess
	}
	return out
}

// Get returns a session by ID.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sess := s.find(id); sess != nil {
		return *sess, true
	}
	return Session{}, false
}

// OpenTabs returns the ordered open-tab set.
func (s *Store) OpenTabs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.openTabs...)
}

// ActiveID returns the active session ID, or "" when no session is active.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Register inserts a session at the head of the list (or updates it in
// place), opens its tab, and makes it active. Used both for optimistic
// client-side session creation and for sessions materialized by the server.
func (s *Store) Register(sess Session) {
	s.mu.Lock()
	s.upsertHead(sess)
	s.ensureTab(sess.ID)
	s.active = sess.ID
	s.mu.Unlock()

	s.publish(pubsub.EventCreated, events.NewSessionCreatedEvent(sess.ID, sess.Title))
}

// NewLocalSession synthesizes a session client-side with a fresh UUID and
// registers it as active. The server materializes it lazily on first message
// receipt; no create call is issued here.
func (s *Store) NewLocalSession() Session {
	sess := Session{
		ID:          uuid.New().String(),
		Title:       "New Chat",
		Model:       s.defaultModel,
		Temperature: s.defaultTemperature,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	s.Register(sess)
	return sess
}

// Select makes an existing session active, opening its tab if needed.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	if s.find(id) == nil {
		s.mu.Unlock()
		return ErrUnknownSession
	}
	s.ensureTab(id)
	s.active = id
	s.mu.Unlock()

	s.publish(pubsub.EventUpdated, events.NewSessionSwitchedEvent(id))
	return nil
}

// CloseTab removes a session from the open-tab set only; the session stays
// in history. Closing the active session deterministically picks a
// successor.
func (s *Store) CloseTab(id string) {
	s.mu.Lock()
	s.removeTab(id)
	if s.active == id {
		s.promoteSuccessor()
	}
	s.mu.Unlock()

	s.publish(pubsub.EventUpdated, events.NewSessionClosedEvent(id))
}

// Remove deletes a session from both the session list and the open-tab set,
// along with its message list. The caller is responsible for the server-side
// delete.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	for i, sess := range s.sessions {
		if sess.ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	s.removeTab(id)
	delete(s.messages, id)
	if s.active == id {
		s.promoteSuccessor()
	}
	s.mu.Unlock()

	s.publish(pubsub.EventDeleted, events.NewSessionDeletedEvent(id))
}

// Messages returns a copy of the message list for a session.
func (s *Store) Messages(sessionID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Entry(nil), s.messages[sessionID]...)
}

// HasTemporary reports whether a temporary entry exists for the session.
func (s *Store) HasTemporary(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.messages[sessionID] {
		if entry.State == EntryTemporary {
			return true
		}
	}
	return false
}

// AppendTemporary appends an optimistic user message. At most one temporary
// entry may exist per session; a second is rejected.
func (s *Store) AppendTemporary(sessionID, tempID, content string, files []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.messages[sessionID] {
		if entry.State == EntryTemporary {
			return ErrPendingSend
		}
	}

	s.messages[sessionID] = append(s.messages[sessionID], Entry{
		State: EntryTemporary,
		Message: api.Message{
			ID:        tempID,
			SessionID: sessionID,
			Role:      "user",
			Content:   content,
			Files:     files,
			Timestamp: time.Now(),
		},
	})
	return nil
}

// RemoveMessage removes a message by its exact ID, keyed by session ID so a
// reconciliation result landing after the user switched sessions still
// applies to the right list.
func (s *Store) RemoveMessage(sessionID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.messages[sessionID]
	for i, entry := range entries {
		if entry.Message.ID == messageID {
			s.messages[sessionID] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Confirm reconciles a successful send: the temporary entry is removed by
// its exact generated ID and replaced with exactly the two server messages,
// and the authoritative session is upserted at the head of the list.
func (s *Store) Confirm(sessionID, tempID string, user, assistant api.Message, session Session) {
	s.mu.Lock()

	entries := s.messages[sessionID]
	for i, entry := range entries {
		if entry.Message.ID == tempID {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	entries = append(entries,
		Entry{State: EntryConfirmed, Message: user},
		Entry{State: EntryConfirmed, Message: assistant},
	)
	s.messages[sessionID] = entries

	s.upsertHead(session)
	s.ensureTab(session.ID)
	s.mu.Unlock()

	s.publish(pubsub.EventUpdated, events.SessionEvent{
		SessionID: session.ID,
		Title:     session.Title,
		Type:      events.SessionEventUpdated,
		Timestamp: time.Now(),
	})
}

// locked helpers

func (s *Store) find(id string) *Session {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func (s *Store) upsertHead(sess Session) {
	for i, existing := range s.sessions {
		if existing.ID == sess.ID {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	s.sessions = append([]*Session{&sess}, s.sessions...)
}

func (s *Store) ensureTab(id string) {
	for _, tab := range s.openTabs {
		if tab == id {
			return
		}
	}
	s.openTabs = append(s.openTabs, id)
}

func (s *Store) removeTab(id string) {
	for i, tab := range s.openTabs {
		if tab == id {
			s.openTabs = append(s.openTabs[:i], s.openTabs[i+1:]...)
			return
		}
	}
}

// promoteSuccessor repairs the active-session invariant after a removal:
// prefer the next remaining open tab; with none left, synthesize a fresh
// session so the UI is never tab-less.
func (s *Store) promoteSuccessor() {
	if len(s.openTabs) > 0 {
		s.active = s.openTabs[0]
		return
	}

	sess := Session{
		ID:          uuid.New().String(),
		Title:       "New Chat",
		Model:       s.defaultModel,
		Temperature: s.defaultTemperature,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	s.upsertHead(sess)
	s.openTabs = append(s.openTabs, sess.ID)
	s.active = sess.ID
}

func (s *Store) publish(eventType pubsub.EventType, event events.SessionEvent) {
	if s.broker != nil {
		s.broker.Publish(eventType, event)
	}
}
