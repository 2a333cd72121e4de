package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// filesystemStorage stores objects as files below a root directory. Keys map to
// relative paths; "/" separated segments become sub directories.
type filesystemStorage struct {
	root string
}

// NewFilesystem creates a filesystem driver rooted at root, creating the directory if missing.
func NewFilesystem(root string) (Driver, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem storage root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &filesystemStorage{root: root}, nil
}

func (f *filesystemStorage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(f.root, clean), nil
}

// Put writes to a temp file next to the destination, fsyncs it and renames it into place.
// The temp file is removed on every failure path.
func (f *filesystemStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	fullPath, err := f.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	if _, err := os.Stat(fullPath); err == nil {
		return ObjectInfo{}, ErrFileAlreadyExists.WithCause(fmt.Errorf("key %s", key))
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return ObjectInfo{}, fmt.Errorf("create directory for %s: %w", key, err)
	}

	tmpPath := fullPath + "." + uuid.NewString() + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}

	size, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ObjectInfo{}, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("rename temp file: %w", err)
	}

	return ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  opt.ContentType,
		LastModified: time.Now().UTC(),
		Metadata:     opt.Metadata,
	}, nil
}

func (f *filesystemStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := f.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound.WithCause(err)
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return file, nil
}

func (f *filesystemStorage) Delete(_ context.Context, key string) error {
	fullPath, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrFileNotFound.WithCause(err)
		}
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// contextReader stops a copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
