package events

import "time"

// SendEventType represents send pipeline event types.
type SendEventType string

// Send event type constants.
const (
	SendEventStarted   SendEventType = "started"
	SendEventCompleted SendEventType = "completed"
	SendEventFailed    SendEventType = "failed"
)

// ToastLevel classifies a user-visible notification.
type ToastLevel string

// Toast level constants.
const (
	ToastInfo    ToastLevel = "info"
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

// SendEvent represents a send pipeline lifecycle event. Terminal failures
// carry exactly one toast so the UI never silently swallows them.
type SendEvent struct {
	SessionID string
	Type      SendEventType
	Toast     string
	Level     ToastLevel
	Timestamp time.Time
}

// NewSendStartedEvent creates an event marking the start of a send.
func NewSendStartedEvent(sessionID string) SendEvent {
	return SendEvent{
		SessionID: sessionID,
		Type:      SendEventStarted,
		Timestamp: time.Now(),
	}
}

// NewSendCompletedEvent creates an event marking a reconciled send.
func NewSendCompletedEvent(sessionID string) SendEvent {
	return SendEvent{
		SessionID: sessionID,
		Type:      SendEventCompleted,
		Timestamp: time.Now(),
	}
}

// NewSendFailedEvent creates an event carrying the failure toast.
func NewSendFailedEvent(sessionID, toast string) SendEvent {
	return SendEvent{
		SessionID: sessionID,
		Type:      SendEventFailed,
		Toast:     toast,
		Level:     ToastError,
		Timestamp: time.Now(),
	}
}
