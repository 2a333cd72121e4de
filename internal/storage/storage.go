// Package storage holds the pluggable file drivers and the Service that layers
// optional encryption on top of them.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"docvault/internal/apperror"
)

// Driver-level failures, translated from each backend's native errors.
var (
	ErrFileNotFound      = apperror.ErrFileNotFound
	ErrFileAlreadyExists = apperror.ErrFileAlreadyExists
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Driver is a storage backend addressed by opaque keys.
// Implementations must be safe for concurrent use and must stream rather than buffer whole files.
type Driver interface {
	// Put stores the content of r under key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens a streaming reader over the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
}

var errEncryptionDisabled = errors.New("file is encrypted but no encryption layer is configured")
