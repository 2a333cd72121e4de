package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvault/internal/events"
)

type MockEmitter struct {
	mock.Mock
}

var _ events.Emitter = (*MockEmitter)(nil)

func (m *MockEmitter) Emit(ctx context.Context, name string, payload any) {
	m.Called(ctx, name, payload)
}
