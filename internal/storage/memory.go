package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"
)

// MemoryStorage keeps objects in process memory. It backs tests and local development.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// NewMemory creates an empty in-memory driver.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memoryObject)}
}

var _ Driver = (*MemoryStorage)(nil)

func (m *MemoryStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	m.mu.RLock()
	_, exists := m.objects[key]
	m.mu.RUnlock()
	if exists {
		return ObjectInfo{}, ErrFileAlreadyExists
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, contextReader{ctx: ctx, r: r}); err != nil {
		return ObjectInfo{}, err
	}

	now := time.Now().UTC()
	m.mu.Lock()
	// A concurrent Put may have stored the key while r was being read.
	if _, exists := m.objects[key]; exists {
		m.mu.Unlock()
		return ObjectInfo{}, ErrFileAlreadyExists
	}
	m.objects[key] = memoryObject{data: buf.Bytes(), contentType: opt.ContentType, modified: now}
	m.mu.Unlock()

	return ObjectInfo{
		Key:          key,
		Size:         int64(buf.Len()),
		ContentType:  opt.ContentType,
		LastModified: now,
		Metadata:     opt.Metadata,
	}, nil
}

func (m *MemoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrFileNotFound
	}
	delete(m.objects, key)
	return nil
}

// Keys returns the stored keys in lexical order.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bytes returns a copy of the raw stored bytes for key.
func (m *MemoryStorage) Bytes(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}
