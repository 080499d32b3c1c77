package events

import "time"

// FileEventType represents file upload lifecycle event types.
type FileEventType string

// File event type constants.
const (
	FileEventUploaded   FileEventType = "uploaded"
	FileEventReady      FileEventType = "ready"
	FileEventFailed     FileEventType = "failed"
	FileEventStalled    FileEventType = "stalled"
	FileEventLateReady  FileEventType = "late_ready"
	FileEventLateFailed FileEventType = "late_failed"
)

// FileEvent represents a file upload lifecycle event.
type FileEvent struct {
	FileID    string
	Filename  string
	Type      FileEventType
	Err       string
	Timestamp time.Time
}

// NewFileUploadedEvent creates an event for a freshly uploaded file.
func NewFileUploadedEvent(fileID, filename string) FileEvent {
	return FileEvent{
		FileID:    fileID,
		Filename:  filename,
		Type:      FileEventUploaded,
		Timestamp: time.Now(),
	}
}

// NewFileReadyEvent creates an event for a file that reached terminal readiness.
func NewFileReadyEvent(fileID, filename string) FileEvent {
	return FileEvent{
		FileID:    fileID,
		Filename:  filename,
		Type:      FileEventReady,
		Timestamp: time.Now(),
	}
}

// NewFileFailedEvent creates an event for a file whose upload or processing failed.
func NewFileFailedEvent(fileID, filename, errMsg string) FileEvent {
	return FileEvent{
		FileID:    fileID,
		Filename:  filename,
		Type:      FileEventFailed,
		Err:       errMsg,
		Timestamp: time.Now(),
	}
}

// NewFileStalledEvent creates an event for a file whose readiness polling
// budget was exhausted without reaching a terminal state.
func NewFileStalledEvent(fileID, filename string) FileEvent {
	return FileEvent{
		FileID:    fileID,
		Filename:  filename,
		Type:      FileEventStalled,
		Timestamp: time.Now(),
	}
}
