package message

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avoronov/converse/internal/db"
)

// ErrNotFound is returned when a message is not found.
var ErrNotFound = errors.New("message not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new SQLite-backed message store.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Create inserts a new message. File references are stored as a JSON array.
func (s *SQLiteStore) Create(ctx context.Context, m *Message) error {
	now := time.Now().UnixMilli()
	m.CreatedAt = time.UnixMilli(now)

	files, err := json.Marshal(filesOrEmpty(m.Files))
	if err != nil {
		return fmt.Errorf("encoding file references: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, files, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Role, m.Content, string(files), now)
	if err != nil {
		return fmt.Errorf("creating message: %w", err)
	}
	return nil
}

// Get retrieves a message by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, role, content, files, created_at FROM messages WHERE id = ?`, id)

	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return m, nil
}

// ListBySession returns a session's messages oldest first.
func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, files, created_at FROM messages
		 WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Delete removes a message by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBySession removes all messages for a session.
func (s *SQLiteStore) DeleteBySession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting session messages: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var files string
	var createdAt int64

	if err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &files, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(files), &m.Files); err != nil {
		return nil, fmt.Errorf("decoding file references: %w", err)
	}
	m.CreatedAt = time.UnixMilli(createdAt)
	return &m, nil
}

func filesOrEmpty(files []string) []string {
	if files == nil {
		return []string{}
	}
	return files
}
