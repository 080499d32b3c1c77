package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avoronov/converse/internal/db"
)

// ErrNotFound is returned when an upload record is not found.
var ErrNotFound = errors.New("file not found")

// Store defines the interface for upload record persistence.
type Store interface {
	// Create inserts a new upload record.
	Create(ctx context.Context, f *FileUpload) error

	// Get retrieves an upload record by ID.
	Get(ctx context.Context, id string) (*FileUpload, error)

	// List retrieves all upload records, newest first.
	List(ctx context.Context) ([]FileUpload, error)

	// SetStatus updates the upload status.
	SetStatus(ctx context.Context, id, status string) error

	// SetProcessingStatus updates the post-upload processing status.
	SetProcessingStatus(ctx context.Context, id, status string) error

	// Delete removes an upload record.
	Delete(ctx context.Context, id string) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new SQLite-backed upload store.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Create inserts a new upload record.
func (s *SQLiteStore) Create(ctx context.Context, f *FileUpload) error {
	now := time.Now().UnixMilli()
	f.CreatedAt = time.UnixMilli(now)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_uploads (id, original_filename, stored_filename, file_path, file_size, mime_type, status, processing_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OriginalFilename, f.StoredFilename, f.Path, f.Size, f.MimeType, f.Status, f.ProcessingStatus, now)
	if err != nil {
		return fmt.Errorf("creating upload record: %w", err)
	}
	return nil
}

// Get retrieves an upload record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*FileUpload, error) {
	var f FileUpload
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, original_filename, stored_filename, file_path, file_size, mime_type, status, processing_status, created_at
		FROM file_uploads WHERE id = ?`, id).
		Scan(&f.ID, &f.OriginalFilename, &f.StoredFilename, &f.Path, &f.Size, &f.MimeType, &f.Status, &f.ProcessingStatus, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting upload record: %w", err)
	}

	f.CreatedAt = time.UnixMilli(createdAt)
	return &f, nil
}

// List retrieves all upload records, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]FileUpload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_filename, stored_filename, file_path, file_size, mime_type, status, processing_status, created_at
		FROM file_uploads ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing upload records: %w", err)
	}
	defer rows.Close()

	var uploads []FileUpload
	for rows.Next() {
		var f FileUpload
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.OriginalFilename, &f.StoredFilename, &f.Path, &f.Size, &f.MimeType, &f.Status, &f.ProcessingStatus, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning upload record: %w", err)
		}
		f.CreatedAt = time.UnixMilli(createdAt)
		uploads = append(uploads, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating upload records: %w", err)
	}
	return uploads, nil
}

// SetStatus updates the upload status.
func (s *SQLiteStore) SetStatus(ctx context.Context, id, status string) error {
	return s.setColumn(ctx, id, "status", status)
}

// SetProcessingStatus updates the post-upload processing status.
func (s *SQLiteStore) SetProcessingStatus(ctx context.Context, id, status string) error {
	return s.setColumn(ctx, id, "processing_status", status)
}

// Delete removes an upload record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM file_uploads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting upload record: %w", err)
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

func (s *SQLiteStore) setColumn(ctx context.Context, id, column, value string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE file_uploads SET `+column+` = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("updating %s: %w", column, err)
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
