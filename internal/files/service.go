package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/avoronov/converse/internal/events"
	"github.com/avoronov/converse/internal/pubsub"
)

// Service handles uploads end to end: disk write, record creation, and
// asynchronous post-upload processing. A file becomes referenceable only
// after processing completes, which clients observe through status polling.
type Service struct {
	store   Store
	storage *Storage
	broker  *pubsub.Broker[events.FileEvent]
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewService creates a file service. The broker may be nil.
func NewService(store Store, storage *Storage, broker *pubsub.Broker[events.FileEvent], logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, storage: storage, broker: broker, logger: logger}
}

// Upload stores the content and returns the new record with processing still
// pending. Processing continues in the background.
func (s *Service) Upload(ctx context.Context, filename string, content io.Reader) (*FileUpload, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}

	id := uuid.New().String()
	stored, path, size, err := s.storage.Save(id, filename, content)
	if err != nil {
		return nil, err
	}

	f := &FileUpload{
		ID:               id,
		OriginalFilename: filename,
		StoredFilename:   stored,
		Path:             path,
		Size:             size,
		MimeType:         DetectMimeType(filename),
		Status:           StatusReady,
		ProcessingStatus: ProcessingPending,
	}
	if err := s.store.Create(ctx, f); err != nil {
		if rmErr := s.storage.Remove(stored); rmErr != nil {
			s.logger.Warn("orphaned upload left on disk", "file", stored, "error", rmErr)
		}
		return nil, err
	}

	s.wg.Add(1)
	go s.process(f.ID, f.Path)

	return f, nil
}

// Status returns the upload record for status polling.
func (s *Service) Status(ctx context.Context, id string) (*FileUpload, error) {
	return s.store.Get(ctx, id)
}

// List returns all upload records, newest first.
func (s *Service) List(ctx context.Context) ([]FileUpload, error) {
	return s.store.List(ctx)
}

// Delete removes the record and the stored content. The record goes first so
// a crash cannot leave a record pointing at a missing file unnoticed.
func (s *Service) Delete(ctx context.Context, id string) error {
	f, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.storage.Remove(f.StoredFilename); err != nil {
		s.logger.Warn("orphaned upload left on disk", "file", f.StoredFilename, "error", err)
	}
	return nil
}

// Wait blocks until all in-flight processing goroutines finish. Used on
// shutdown and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

// process verifies the stored file is intact and marks processing terminal.
// Runs detached from the request context: the upload response has already
// been sent when this completes.
func (s *Service) process(id, path string) {
	defer s.wg.Done()
	ctx := context.Background()

	if err := verifyStored(path); err != nil {
		s.logger.Error("file processing failed", "file_id", id, "error", err)
		if err := s.store.SetProcessingStatus(ctx, id, ProcessingFailed); err != nil {
			s.logger.Error("failed to record processing failure", "file_id", id, "error", err)
		}
		s.publish(pubsub.EventFailed, events.NewFileFailedEvent(id, path, "processing failed"))
		return
	}

	if err := s.store.SetProcessingStatus(ctx, id, ProcessingCompleted); err != nil {
		s.logger.Error("failed to record processing completion", "file_id", id, "error", err)
		return
	}
	s.publish(pubsub.EventCompleted, events.NewFileReadyEvent(id, path))
}

// verifyStored checks the file landed on disk readable and non-empty.
func verifyStored(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("stored file is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	if _, err := f.Read(buf); err != nil && err != io.EOF {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

func (s *Service) publish(eventType pubsub.EventType, event events.FileEvent) {
	if s.broker != nil {
		s.broker.Publish(eventType, event)
	}
}
