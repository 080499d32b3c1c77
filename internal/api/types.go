// Package api provides the HTTP client for the persistence/provider boundary.
package api

import "time"

// Session is the server representation of a conversation session.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	ClientType   string    `json:"client_type,omitempty"`
	Temperature  float64   `json:"temperature"`
	MessageCount int       `json:"message_count"`
	IsClosed     bool      `json:"is_closed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is the server representation of a persisted chat message.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Files     []string  `json:"files"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateSessionRequest is the body for POST /sessions.
type CreateSessionRequest struct {
	Title       string   `json:"title,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// SendRequest is the body for POST /sessions/{id}/messages. Model and
// temperature ride along on every message so the server can auto-create the
// session with correct parameters even when the client-side session object
// was never persisted.
type SendRequest struct {
	Message     string   `json:"message"`
	Files       []string `json:"files,omitempty"`
	SearchMode  bool     `json:"search_mode"`
	Model       string   `json:"model"`
	Temperature float64  `json:"temperature"`
}

// SendResult is the authoritative reply to a send: the persisted user
// message, the generated assistant message, and the (possibly auto-created)
// session.
type SendResult struct {
	UserMessage      Message `json:"user_message"`
	AssistantMessage Message `json:"assistant_message"`
	Session          Session `json:"session"`
}

// SessionPatch is the body for PUT /sessions/{id}. Nil fields are left
// untouched by the server.
type SessionPatch struct {
	Title       *string  `json:"title,omitempty"`
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// UploadResult is the reply to POST /files/upload.
type UploadResult struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"original_filename"`
}

// File status values reported by GET /files/{id}/status.
const (
	FileStatusUploading = "uploading"
	FileStatusReady     = "ready"
	FileStatusFailed    = "failed"

	ProcessingPending   = "pending"
	ProcessingCompleted = "completed"
	ProcessingFailed    = "failed"
)

// FileStatus is the reply to GET /files/{id}/status.
type FileStatus struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	ProcessingStatus string `json:"processing_status"`
	OriginalFilename string `json:"original_filename"`
}

// Usable reports whether the file can be referenced from a prompt: the
// upload must be ready and server-side processing complete.
func (fs *FileStatus) Usable() bool {
	return fs.Status == FileStatusReady && fs.ProcessingStatus == ProcessingCompleted
}

// Terminal reports whether the file reached a state that will not change
// without another upload.
func (fs *FileStatus) Terminal() bool {
	if fs.Status == FileStatusFailed || fs.ProcessingStatus == ProcessingFailed {
		return true
	}
	return fs.Usable()
}
