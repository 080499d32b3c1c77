package files

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned when an upload exceeds MaxUploadSize.
var ErrTooLarge = fmt.Errorf("file exceeds %d MB limit", MaxUploadSize>>20)

// Storage writes upload content to a directory on disk.
type Storage struct {
	dir string
}

// NewStorage creates a disk storage rooted at dir.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Save writes content to disk under a collision-free name derived from the
// upload ID and the sanitized original filename. It returns the stored
// filename, the absolute path, and the byte count.
func (s *Storage) Save(id, originalFilename string, content io.Reader) (stored, path string, size int64, err error) {
	stored = id + "_" + SanitizeFilename(originalFilename)
	path = filepath.Join(s.dir, stored)

	dst, err := os.Create(path)
	if err != nil {
		return "", "", 0, fmt.Errorf("creating file: %w", err)
	}

	// Read one byte past the limit so an oversized stream is detected
	// without buffering it whole.
	size, err = io.Copy(dst, io.LimitReader(content, MaxUploadSize+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", "", 0, fmt.Errorf("writing file: %w", err)
	}
	if size > MaxUploadSize {
		os.Remove(path)
		return "", "", 0, ErrTooLarge
	}

	return stored, path, size, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Storage) Remove(storedFilename string) error {
	err := os.Remove(filepath.Join(s.dir, storedFilename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

// SanitizeFilename strips path components and replaces characters that are
// unsafe in a filename.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.TrimSpace(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := b.String()
	if out == "" || strings.Trim(out, "._") == "" {
		out = "upload"
	}
	return out
}

// mimeFallbacks covers extensions the platform MIME database commonly lacks.
var mimeFallbacks = map[string]string{
	".md":   "text/markdown",
	".go":   "text/x-go",
	".py":   "text/x-python",
	".json": "application/json",
	".csv":  "text/csv",
	".log":  "text/plain",
}

// DetectMimeType resolves a MIME type from the filename extension, falling
// back to application/octet-stream.
func DetectMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	if mt, ok := mimeFallbacks[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
