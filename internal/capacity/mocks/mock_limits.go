package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvault/internal/capacity"
)

type MockLimitsProvider struct {
	mock.Mock
}

func (m *MockLimitsProvider) GetOrganizationStorageLimits(ctx context.Context, organizationID string) (capacity.Limits, error) {
	args := m.Called(ctx, organizationID)
	return args.Get(0).(capacity.Limits), args.Error(1)
}
