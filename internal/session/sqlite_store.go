package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avoronov/converse/internal/db"
)

// ErrNotFound is returned when a session is not found.
var ErrNotFound = errors.New("session not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new SQLite-backed session store.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

const sessionColumns = `s.id, s.title, s.model, s.client_type, s.temperature, s.is_closed, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id) AS message_count`

// Create inserts a new session.
func (s *SQLiteStore) Create(ctx context.Context, sess *Session) error {
	now := time.Now().UnixMilli()
	sess.CreatedAt = time.UnixMilli(now)
	sess.UpdatedAt = time.UnixMilli(now)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, model, client_type, temperature, is_closed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Title, sess.Model, sess.ClientType, sess.Temperature, boolToInt(sess.IsClosed), now, now)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// List returns open sessions ordered by updated_at descending.
func (s *SQLiteStore) List(ctx context.Context) ([]*Session, error) {
	return s.list(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.is_closed = 0 ORDER BY s.updated_at DESC`)
}

// ListAll returns every session, closed ones included.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*Session, error) {
	return s.list(ctx, `SELECT `+sessionColumns+` FROM sessions s ORDER BY s.updated_at DESC`)
}

func (s *SQLiteStore) list(ctx context.Context, query string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Update applies a partial update. Only non-nil fields change.
func (s *SQLiteStore) Update(ctx context.Context, id string, p Patch) error {
	var sets []string
	var args []any

	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Model != nil {
		sets = append(sets, "model = ?")
		args = append(args, *p.Model)
	}
	if p.Temperature != nil {
		sets = append(sets, "temperature = ?")
		args = append(args, *p.Temperature)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), id)

	result, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return requireRow(result)
}

// SetClosed marks a session closed or reopened.
func (s *SQLiteStore) SetClosed(ctx context.Context, id string, closed bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_closed = ?, updated_at = ? WHERE id = ?`,
		boolToInt(closed), time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("setting session closed state: %w", err)
	}
	return requireRow(result)
}

// Touch bumps updated_at so the session sorts to the head of listings.
func (s *SQLiteStore) Touch(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return requireRow(result)
}

// Delete removes a session by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return requireRow(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var isClosed int
	var createdAt, updatedAt int64

	err := row.Scan(&sess.ID, &sess.Title, &sess.Model, &sess.ClientType, &sess.Temperature,
		&isClosed, &createdAt, &updatedAt, &sess.MessageCount)
	if err != nil {
		return nil, err
	}

	sess.IsClosed = isClosed != 0
	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.UpdatedAt = time.UnixMilli(updatedAt)
	return &sess, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
