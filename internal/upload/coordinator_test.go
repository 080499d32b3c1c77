package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avoronov/converse/internal/api"
	"github.com/avoronov/converse/internal/events"
	"github.com/avoronov/converse/internal/pubsub"
)

// fakeBoundary is a scriptable Boundary implementation.
type fakeBoundary struct {
	mu          sync.Mutex
	uploadCalls int
	uploadErrs  []error // consumed per call; nil means success
	statusCalls int
	status      func(call int) (*api.FileStatus, error)
}

func (f *fakeBoundary) UploadFile(_ context.Context, filename string, content io.Reader) (*api.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := io.ReadAll(content); err != nil {
		return nil, err
	}

	call := f.uploadCalls
	f.uploadCalls++
	if call < len(f.uploadErrs) && f.uploadErrs[call] != nil {
		return nil, f.uploadErrs[call]
	}
	return &api.UploadResult{ID: fmt.Sprintf("file-%d", call), OriginalFilename: filename}, nil
}

func (f *fakeBoundary) GetFileStatus(_ context.Context, id string) (*api.FileStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.statusCalls
	f.statusCalls++
	if f.status != nil {
		status, err := f.status(call)
		if status != nil {
			status.ID = id
		}
		return status, err
	}
	return &api.FileStatus{ID: id, Status: api.FileStatusReady, ProcessingStatus: api.ProcessingCompleted}, nil
}

func (f *fakeBoundary) counts() (uploads, polls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadCalls, f.statusCalls
}

func attachment(name, content string) Attachment {
	return Attachment{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func fastCoordinator(boundary Boundary, broker *pubsub.Broker[events.FileEvent], opts ...Option) *Coordinator {
	base := []Option{
		WithPollInterval(time.Millisecond),
		WithRetryDelay(time.Millisecond),
		WithHealthInterval(5 * time.Millisecond),
	}
	return NewCoordinator(boundary, broker, append(base, opts...)...)
}

func TestCoordinatorUpload(t *testing.T) {
	t.Run("success records the file as pending", func(t *testing.T) {
		boundary := &fakeBoundary{}
		coord := fastCoordinator(boundary, nil)

		id, err := coord.Upload(context.Background(), attachment("notes.txt", "hello"))
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if id != "file-0" {
			t.Errorf("id = %q, want file-0", id)
		}

		pending := coord.Pending()
		if len(pending) != 1 || pending[0] != "file-0" {
			t.Errorf("Pending() = %v, want [file-0]", pending)
		}
	})

	t.Run("transport failure retries exactly once", func(t *testing.T) {
		boundary := &fakeBoundary{uploadErrs: []error{errors.New("connection reset")}}
		coord := fastCoordinator(boundary, nil)

		id, err := coord.Upload(context.Background(), attachment("notes.txt", "hello"))
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if id != "file-1" {
			t.Errorf("id = %q, want file-1", id)
		}

		uploads, _ := boundary.counts()
		if uploads != 2 {
			t.Errorf("upload calls = %d, want 2", uploads)
		}
	})

	t.Run("second failure surfaces an error naming the file", func(t *testing.T) {
		boundary := &fakeBoundary{uploadErrs: []error{errors.New("reset"), errors.New("reset again")}}
		coord := fastCoordinator(boundary, nil)

		_, err := coord.Upload(context.Background(), attachment("report.pdf", "x"))
		if err == nil {
			t.Fatal("Upload() error = nil, want error")
		}
		if !strings.Contains(err.Error(), "report.pdf") {
			t.Errorf("error %q does not name the file", err)
		}

		uploads, _ := boundary.counts()
		if uploads != 2 {
			t.Errorf("upload calls = %d, want 2 (no third attempt)", uploads)
		}
	})
}

func TestCoordinatorAwaitReady(t *testing.T) {
	t.Run("reports ready once usable", func(t *testing.T) {
		boundary := &fakeBoundary{
			status: func(call int) (*api.FileStatus, error) {
				if call < 2 {
					return &api.FileStatus{Status: api.FileStatusUploading, ProcessingStatus: api.ProcessingPending}, nil
				}
				return &api.FileStatus{Status: api.FileStatusReady, ProcessingStatus: api.ProcessingCompleted}, nil
			},
		}
		coord := fastCoordinator(boundary, nil)

		id, err := coord.Upload(context.Background(), attachment("a.txt", "x"))
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}

		ready, err := coord.AwaitReady(context.Background(), id)
		if err != nil {
			t.Fatalf("AwaitReady() error = %v", err)
		}
		if !ready {
			t.Error("ready = false, want true")
		}
		if len(coord.Pending()) != 0 {
			t.Errorf("Pending() = %v, want empty after readiness", coord.Pending())
		}
	})

	t.Run("budget exhaustion polls exactly the budget and keeps the file pending", func(t *testing.T) {
		boundary := &fakeBoundary{
			status: func(int) (*api.FileStatus, error) {
				return &api.FileStatus{Status: api.FileStatusUploading, ProcessingStatus: api.ProcessingPending}, nil
			},
		}
		coord := fastCoordinator(boundary, nil, WithMaxPolls(30))

		id, err := coord.Upload(context.Background(), attachment("slow.pdf", "x"))
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}

		ready, err := coord.AwaitReady(context.Background(), id)
		if err != nil {
			t.Fatalf("AwaitReady() error = %v", err)
		}
		if ready {
			t.Error("ready = true, want false on exhaustion")
		}

		_, polls := boundary.counts()
		if polls != 30 {
			t.Errorf("status polls = %d, want 30", polls)
		}
		if len(coord.Pending()) != 1 {
			t.Errorf("Pending() = %v, want the stalled file still tracked", coord.Pending())
		}
	})

	t.Run("poll errors consume the same budget", func(t *testing.T) {
		boundary := &fakeBoundary{
			status: func(int) (*api.FileStatus, error) {
				return nil, errors.New("transient")
			},
		}
		coord := fastCoordinator(boundary, nil, WithMaxPolls(5))

		id, err := coord.Upload(context.Background(), attachment("a.txt", "x"))
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}

		ready, err := coord.AwaitReady(context.Background(), id)
		if err != nil {
			t.Fatalf("AwaitReady() error = %v", err)
		}
		if ready {
			t.Error("ready = true, want false")
		}

		_, polls := boundary.counts()
		if polls != 5 {
			t.Errorf("status polls = %d, want 5", polls)
		}
	})

	t.Run("terminal processing failure stops polling", func(t *testing.T) {
		boundary := &fakeBoundary{
			status: func(int) (*api.FileStatus, error) {
				return &api.FileStatus{Status: api.FileStatusReady, ProcessingStatus: api.ProcessingFailed}, nil
			},
		}
		broker := pubsub.NewBroker[events.FileEvent]("files")
		defer broker.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sub := broker.Subscribe(ctx)

		coord := fastCoordinator(boundary, broker, WithMaxPolls(30))

		id, err := coord.Upload(context.Background(), attachment("bad.pdf", "x"))
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		drainOne(t, sub) // uploaded event

		ready, err := coord.AwaitReady(context.Background(), id)
		if err != nil {
			t.Fatalf("AwaitReady() error = %v", err)
		}
		if ready {
			t.Error("ready = true, want false for failed processing")
		}

		_, polls := boundary.counts()
		if polls != 1 {
			t.Errorf("status polls = %d, want 1 (terminal on first poll)", polls)
		}

		event := drainOne(t, sub)
		if event.Payload.Type != events.FileEventFailed {
			t.Errorf("event type = %q, want %q", event.Payload.Type, events.FileEventFailed)
		}
	})
}

func TestCoordinatorWatcher(t *testing.T) {
	t.Run("surfaces late readiness for stalled files", func(t *testing.T) {
		var becameReady bool
		boundary := &fakeBoundary{
			status: func(call int) (*api.FileStatus, error) {
				if becameReady {
					return &api.FileStatus{Status: api.FileStatusReady, ProcessingStatus: api.ProcessingCompleted}, nil
				}
				return &api.FileStatus{Status: api.FileStatusUploading, ProcessingStatus: api.ProcessingPending}, nil
			},
		}
		broker := pubsub.NewBroker[events.FileEvent]("files")
		defer broker.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sub := broker.Subscribe(ctx)

		coord := fastCoordinator(boundary, broker, WithMaxPolls(2))

		id, err := coord.Upload(ctx, attachment("late.pdf", "x"))
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		drainOne(t, sub) // uploaded

		if ready, _ := coord.AwaitReady(ctx, id); ready {
			t.Fatal("expected exhaustion before readiness")
		}
		drainOne(t, sub) // stalled warning

		boundary.mu.Lock()
		becameReady = true
		boundary.mu.Unlock()

		go coord.RunWatcher(ctx)

		deadline := time.After(time.Second)
		for {
			select {
			case event := <-sub:
				if event.Payload.Type == events.FileEventLateReady {
					if len(coord.Pending()) != 0 {
						t.Errorf("Pending() = %v, want empty after late readiness", coord.Pending())
					}
					return
				}
			case <-deadline:
				t.Fatal("timeout waiting for late-ready event")
			}
		}
	})
}

func drainOne(t *testing.T, sub <-chan pubsub.Event[events.FileEvent]) pubsub.Event[events.FileEvent] {
	t.Helper()

	select {
	case event := <-sub:
		return event
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return pubsub.Event[events.FileEvent]{}
	}
}
