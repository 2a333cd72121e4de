package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvault/internal/tasks"
)

type MockScheduler struct {
	mock.Mock
}

var _ tasks.Scheduler = (*MockScheduler)(nil)

func (m *MockScheduler) ScheduleJob(ctx context.Context, name string, data any) error {
	return m.Called(ctx, name, data).Error(0)
}
