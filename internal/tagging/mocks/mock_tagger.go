package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvault/internal/model"
)

// MockTagger mocks the rule application used after documents are created or extracted.
type MockTagger struct {
	mock.Mock
}

func (m *MockTagger) ApplyTaggingRules(ctx context.Context, doc *model.Document) ([]string, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
