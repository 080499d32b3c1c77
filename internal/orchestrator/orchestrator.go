// Package orchestrator drives the message-send pipeline: validation, lazy
// session creation, attachment upload, submission, and reconciliation of the
// optimistic local state against the server's authoritative reply.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avoronov/converse/internal/api"
	"github.com/avoronov/converse/internal/config"
	"github.com/avoronov/converse/internal/debug"
	"github.com/avoronov/converse/internal/events"
	"github.com/avoronov/converse/internal/provider"
	"github.com/avoronov/converse/internal/pubsub"
	"github.com/avoronov/converse/internal/state"
	"github.com/avoronov/converse/internal/upload"
)

// Validation errors. They are raised before any network call.
var (
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrSessionBusy  = errors.New("a send is already in flight for this session")
)

// Boundary is the subset of the API client the orchestrator submits to.
type Boundary interface {
	SendMessage(ctx context.Context, sessionID string, req api.SendRequest) (*api.SendResult, error)
}

// Request is one send operation. Config is an immutable snapshot resolved by
// the caller once per send.
type Request struct {
	SessionID   string // empty: use the active session, creating one lazily
	Text        string
	Attachments []upload.Attachment
	SearchMode  bool
	Config      config.Snapshot
}

// Result is the reconciled outcome of a successful send.
type Result struct {
	SessionID        string
	Provider         provider.Tag
	UserMessage      api.Message
	AssistantMessage api.Message
	Session          api.Session
	// DroppedFiles names attachments excluded after a failed upload and its
	// single retry. Their failure did not abort the send.
	DroppedFiles []string
}

// Draft carries the original input back to the caller after a failed send so
// the compose box is not silently emptied.
type Draft struct {
	Text        string
	Attachments []upload.Attachment
}

// SendError is a failed send after rollback. Toast is the single
// user-visible notification for the failure.
type SendError struct {
	Cause error
	Toast string
	Draft Draft
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Cause)
}

func (e *SendError) Unwrap() error {
	return e.Cause
}

// Orchestrator coordinates send operations. Only the orchestrator mutates
// the session store's message lists.
type Orchestrator struct {
	boundary Boundary
	uploads  *upload.Coordinator
	store    *state.Store
	broker   *pubsub.Broker[events.SendEvent]

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates an orchestrator. The broker may be nil.
func New(boundary Boundary, uploads *upload.Coordinator, store *state.Store, broker *pubsub.Broker[events.SendEvent]) *Orchestrator {
	return &Orchestrator{
		boundary: boundary,
		uploads:  uploads,
		store:    store,
		broker:   broker,
		inFlight: make(map[string]bool),
	}
}

// Busy reports whether a send is in flight for the session.
func (o *Orchestrator) Busy(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight[sessionID]
}

// Send runs one send operation through the pipeline. On failure the
// temporary message is removed and the returned *SendError carries the
// original draft.
func (o *Orchestrator) Send(ctx context.Context, req Request) (*Result, error) {
	// VALIDATING: search mode permits an empty body since the query may be
	// carried entirely by attachments.
	text := strings.TrimSpace(req.Text)
	if text == "" && !req.SearchMode {
		return nil, ErrEmptyMessage
	}

	// SESSION_ENSURE: register a synthesized session as active and sole tab
	// before any network call; the server materializes it on first message.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = o.store.ActiveID()
	}
	if sessionID == "" {
		sessionID = o.store.NewLocalSession().ID
	}

	model := req.Config.Model
	temperature := req.Config.Temperature
	if sess, ok := o.store.Get(sessionID); ok {
		if sess.Model != "" {
			model = sess.Model
		}
		temperature = sess.Temperature
	}

	if !o.acquire(sessionID) {
		return nil, ErrSessionBusy
	}
	defer o.release(sessionID)

	tempID := fmt.Sprintf("temp_%d", time.Now().UnixMilli())
	if err := o.store.AppendTemporary(sessionID, tempID, text, nil); err != nil {
		return nil, ErrSessionBusy
	}

	o.publish(pubsub.EventProgress, events.NewSendStartedEvent(sessionID))
	debug.Log("[orchestrator] send started: session=%s files=%d search=%v", sessionID, len(req.Attachments), req.SearchMode)

	// UPLOADING_FILES: strict input order so index-based file references in
	// the composed message stay stable. A file failing upload and its one
	// retry is dropped from the batch; the others proceed.
	var fileIDs []string
	var dropped []string
	for _, att := range req.Attachments {
		fileID, err := o.uploads.Upload(ctx, att)
		if err != nil {
			if ctx.Err() != nil {
				return nil, o.rollback(sessionID, tempID, req, ctx.Err())
			}
			dropped = append(dropped, att.Filename)
			o.publish(pubsub.EventFailed, events.SendEvent{
				SessionID: sessionID,
				Type:      events.SendEventFailed,
				Toast:     fmt.Sprintf("Failed to upload %q. It was not attached.", att.Filename),
				Level:     events.ToastError,
				Timestamp: time.Now(),
			})
			continue
		}

		// Readiness exhaustion is a warning, not a failure: the ID stays in
		// the outgoing set and the background watcher reports late arrival.
		if _, err := o.uploads.AwaitReady(ctx, fileID); err != nil {
			return nil, o.rollback(sessionID, tempID, req, err)
		}
		fileIDs = append(fileIDs, fileID)
	}

	// SUBMITTING: model and temperature ride along on every message so
	// server-side auto-creation sees correct parameters.
	result, err := o.boundary.SendMessage(ctx, sessionID, api.SendRequest{
		Message:     text,
		Files:       fileIDs,
		SearchMode:  req.SearchMode,
		Model:       model,
		Temperature: temperature,
	})
	if err != nil {
		return nil, o.rollback(sessionID, tempID, req, err)
	}
	if result.UserMessage.ID == "" || result.AssistantMessage.ID == "" {
		return nil, o.rollback(sessionID, tempID, req, errors.New("malformed server response"))
	}

	// RECONCILING: mirror server truth, keyed by session ID so a reply
	// arriving after the user switched tabs lands in the right list.
	o.store.Confirm(sessionID, tempID, result.UserMessage, result.AssistantMessage, state.FromAPI(result.Session))
	o.publish(pubsub.EventCompleted, events.NewSendCompletedEvent(sessionID))

	return &Result{
		SessionID:        sessionID,
		Provider:         provider.Resolve(model, req.Config),
		UserMessage:      result.UserMessage,
		AssistantMessage: result.AssistantMessage,
		Session:          result.Session,
		DroppedFiles:     dropped,
	}, nil
}

// rollback removes the temporary message and wraps the cause with the draft
// and a cause-specific toast.
func (o *Orchestrator) rollback(sessionID, tempID string, req Request, cause error) error {
	o.store.RemoveMessage(sessionID, tempID)
	debug.Error("orchestrator", cause, "send rolled back")

	toast := toastFor(cause)
	o.publish(pubsub.EventFailed, events.NewSendFailedEvent(sessionID, toast))

	return &SendError{
		Cause: cause,
		Toast: toast,
		Draft: Draft{Text: req.Text, Attachments: req.Attachments},
	}
}

// toastFor differentiates the user-visible message by failure cause. This is
// UX wording only; every cause follows the same rollback path.
func toastFor(err error) string {
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return "Your session expired. Please sign in again."
	case errors.Is(err, api.ErrNotConfigured):
		return "Provider not configured. Add your API keys in settings."
	case api.IsTimeout(err):
		return "The request timed out. Please try again."
	default:
		return "Failed to send message. Please try again."
	}
}

func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inFlight[sessionID] {
		return false
	}
	o.inFlight[sessionID] = true
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	delete(o.inFlight, sessionID)
	o.mu.Unlock()
}

func (o *Orchestrator) publish(eventType pubsub.EventType, event events.SendEvent) {
	if o.broker != nil {
		o.broker.Publish(eventType, event)
	}
}
