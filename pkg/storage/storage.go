// Package storage archives downloaded bulletin documents.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no archived file has the requested ID.
var ErrNotFound = errors.New("file not found")

// FileInfo contains metadata about an archived file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Group       string    `json:"group"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	SHA256      string    `json:"sha256"`
	Path        string    `json:"path"` // relative to the archive root
	CreatedAt   time.Time `json:"created_at"`
}

// Archive stores documents in named groups (for bulletins, the month they
// were published in).
type Archive interface {
	// Put stores a document and returns its metadata
	Put(ctx context.Context, group, filename, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for an archived document
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Info returns metadata without opening the document
	Info(ctx context.Context, id uuid.UUID) (*FileInfo, error)

	// List returns every archived document, newest first
	List(ctx context.Context) ([]*FileInfo, error)

	// Delete removes a document and its metadata
	Delete(ctx context.Context, id uuid.UUID) error
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeNone  StorageType = "none"
)

// Config holds storage configuration
type Config struct {
	Type      StorageType
	LocalPath string
}

// New creates an Archive based on configuration. StorageTypeNone returns a
// nil Archive and callers skip archiving.
func New(cfg *Config) (Archive, error) {
	switch cfg.Type {
	case StorageTypeNone:
		return nil, nil
	case StorageTypeLocal:
		fallthrough
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}
