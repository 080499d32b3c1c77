// Package files provides server-side file upload persistence, disk storage,
// and asynchronous post-upload processing.
package files

import "time"

// MaxUploadSize is the largest accepted upload in bytes.
const MaxUploadSize = 20 << 20 // 20 MB

// Upload status values. Status tracks the upload itself; ProcessingStatus
// tracks post-upload processing. Clients may only reference a file once both
// are terminal-successful.
const (
	StatusUploading = "uploading"
	StatusReady     = "ready"
	StatusFailed    = "failed"

	ProcessingPending   = "pending"
	ProcessingCompleted = "completed"
	ProcessingFailed    = "failed"
)

// FileUpload is a persisted upload record.
type FileUpload struct {
	ID               string
	OriginalFilename string
	StoredFilename   string
	Path             string
	Size             int64
	MimeType         string
	Status           string
	ProcessingStatus string
	CreatedAt        time.Time
}
