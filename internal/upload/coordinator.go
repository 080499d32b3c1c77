// Package upload coordinates file uploads and readiness polling against the
// persistence boundary.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avoronov/converse/internal/api"
	"github.com/avoronov/converse/internal/events"
	"github.com/avoronov/converse/internal/pubsub"
)

// Polling and retry policy. Intervals are deliberately flat: predictable
// cadence for the UI, 120 s wall-clock ceiling for readiness.
const (
	DefaultPollInterval   = 4 * time.Second
	DefaultMaxPolls       = 30
	DefaultRetryDelay     = 2 * time.Second
	DefaultHealthInterval = 10 * time.Second
)

// Boundary is the subset of the API client the coordinator needs.
type Boundary interface {
	UploadFile(ctx context.Context, filename string, content io.Reader) (*api.UploadResult, error)
	GetFileStatus(ctx context.Context, id string) (*api.FileStatus, error)
}

// Attachment is a named, re-openable content source. Re-opening matters: the
// one permitted retry re-reads the content from the start.
type Attachment struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// FromPath builds an attachment backed by a file on disk.
func FromPath(path string) Attachment {
	return Attachment{
		Filename: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path) //nolint:gosec // User-supplied path.
		},
	}
}

// Coordinator uploads files and polls their status until they are usable,
// terminally failed, or the polling budget is exhausted.
type Coordinator struct {
	boundary Boundary
	broker   *pubsub.Broker[events.FileEvent]

	pollInterval   time.Duration
	maxPolls       int
	retryDelay     time.Duration
	healthInterval time.Duration

	mu      sync.Mutex
	pending map[string]string // file ID -> original filename
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPollInterval overrides the status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.pollInterval = d }
}

// WithMaxPolls overrides the readiness polling budget.
func WithMaxPolls(n int) Option {
	return func(c *Coordinator) { c.maxPolls = n }
}

// WithRetryDelay overrides the delay before the single upload retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.retryDelay = d }
}

// WithHealthInterval overrides the background watcher cadence.
func WithHealthInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.healthInterval = d }
}

// NewCoordinator creates a coordinator publishing file events on broker.
// The broker may be nil.
func NewCoordinator(boundary Boundary, broker *pubsub.Broker[events.FileEvent], opts ...Option) *Coordinator {
	c := &Coordinator{
		boundary:       boundary,
		broker:         broker,
		pollInterval:   DefaultPollInterval,
		maxPolls:       DefaultMaxPolls,
		retryDelay:     DefaultRetryDelay,
		healthInterval: DefaultHealthInterval,
		pending:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload posts the attachment and returns its server file ID. A transport
// failure triggers exactly one retry after a fixed delay; a second failure is
// returned to the caller naming the file. The ID is recorded in the pending
// set immediately so the background watcher can track it even if the caller
// abandons the flow.
func (c *Coordinator) Upload(ctx context.Context, att Attachment) (string, error) {
	result, err := c.uploadOnce(ctx, att)
	if err != nil {
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		result, err = c.uploadOnce(ctx, att)
		if err != nil {
			return "", fmt.Errorf("uploading %q: %w", att.Filename, err)
		}
	}

	c.track(result.ID, att.Filename)
	c.publish(pubsub.EventCreated, events.NewFileUploadedEvent(result.ID, att.Filename))

	return result.ID, nil
}

func (c *Coordinator) uploadOnce(ctx context.Context, att Attachment) (*api.UploadResult, error) {
	content, err := att.Open()
	if err != nil {
		return nil, fmt.Errorf("opening attachment: %w", err)
	}
	defer content.Close() //nolint:errcheck // Best-effort close.

	return c.boundary.UploadFile(ctx, att.Filename, content)
}

// AwaitReady polls the file's status on a fixed interval until it is usable,
// terminally failed, or the budget is exhausted. Poll errors are transient:
// they consume budget but do not abort. Exhaustion is not a hard failure:
// the caller keeps the file attached; ready=false only informs the warning.
func (c *Coordinator) AwaitReady(ctx context.Context, fileID string) (ready bool, err error) {
	filename := c.filenameFor(fileID)

	for attempt := 0; attempt < c.maxPolls; attempt++ {
		status, pollErr := c.boundary.GetFileStatus(ctx, fileID)
		if pollErr == nil {
			if status.Usable() {
				c.untrack(fileID)
				c.publish(pubsub.EventCompleted, events.NewFileReadyEvent(fileID, filename))
				return true, nil
			}
			if status.Terminal() {
				c.untrack(fileID)
				c.publish(pubsub.EventFailed, events.NewFileFailedEvent(fileID, filename, "processing failed"))
				return false, nil
			}
		} else if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// A failed poll counts toward the same budget; it does not reset it.

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	// Budget exhausted. The file stays attached and tracked; the background
	// watcher surfaces late readiness.
	c.publish(pubsub.EventWarning, events.NewFileStalledEvent(fileID, filename))
	return false, nil
}

// Pending returns the IDs of files still awaiting a terminal status.
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	return ids
}

// RunWatcher periodically re-checks every pending file, independent of any
// send operation, so late-arriving readiness is surfaced even after the
// initial send completed. It blocks until ctx is cancelled.
func (c *Coordinator) RunWatcher(ctx context.Context) {
	ticker := time.NewTicker(c.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkPending(ctx)
		}
	}
}

func (c *Coordinator) checkPending(ctx context.Context) {
	for _, id := range c.Pending() {
		status, err := c.boundary.GetFileStatus(ctx, id)
		if err != nil {
			continue
		}

		filename := c.filenameFor(id)
		switch {
		case status.Usable():
			c.untrack(id)
			c.publish(pubsub.EventCompleted, events.FileEvent{
				FileID:    id,
				Filename:  filename,
				Type:      events.FileEventLateReady,
				Timestamp: time.Now(),
			})
		case status.Terminal():
			c.untrack(id)
			c.publish(pubsub.EventFailed, events.FileEvent{
				FileID:    id,
				Filename:  filename,
				Type:      events.FileEventLateFailed,
				Timestamp: time.Now(),
			})
		}
	}
}

func (c *Coordinator) track(id, filename string) {
	c.mu.Lock()
	c.pending[id] = filename
	c.mu.Unlock()
}

func (c *Coordinator) untrack(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Coordinator) filenameFor(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[id]
}

func (c *Coordinator) publish(eventType pubsub.EventType, event events.FileEvent) {
	if c.broker != nil {
		c.broker.Publish(eventType, event)
	}
}
