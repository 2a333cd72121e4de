package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"docvault/internal/storage"
)

// MockDriver is a testify mock of storage.Driver. Put drains the reader so the
// pipeline stages wrapped around it run exactly as they would against a real backend.
type MockDriver struct {
	mock.Mock
}

var _ storage.Driver = (*MockDriver)(nil)

func (m *MockDriver) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	n, readErr := io.Copy(io.Discard, r)
	if readErr != nil {
		return storage.ObjectInfo{}, readErr
	}
	args := m.Called(ctx, key, opt)
	if f, ok := args.Get(0).(func(string, int64) storage.ObjectInfo); ok {
		return f(key, n), args.Error(1)
	}
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockDriver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockDriver) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
