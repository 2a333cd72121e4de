package mocks

import (
	"context"

	"docvault/internal/model"
	"docvault/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

var _ service.DocumentService = (*MockDocumentService)(nil)

func docOrNil(args mock.Arguments) (*model.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func listOrNil(args mock.Arguments) (*service.DocumentListResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func sweepOrNil(args mock.Arguments) (*service.SweepResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SweepResult), args.Error(1)
}

// CreateDocument records the input without its reader so expectations can match on the metadata.
func (m *MockDocumentService) CreateDocument(ctx context.Context, in service.CreateDocumentInput) (*model.Document, error) {
	in.Reader = nil
	return docOrNil(m.Called(ctx, in))
}

func (m *MockDocumentService) ExtractAndSaveContent(ctx context.Context, organizationID, documentID string, ocrLanguages []string) (*model.Document, error) {
	return docOrNil(m.Called(ctx, organizationID, documentID, ocrLanguages))
}

func (m *MockDocumentService) GetDocument(ctx context.Context, organizationID, documentID string) (*model.Document, error) {
	return docOrNil(m.Called(ctx, organizationID, documentID))
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, organizationID string, limit, offset int) (*service.DocumentListResult, error) {
	return listOrNil(m.Called(ctx, organizationID, limit, offset))
}

func (m *MockDocumentService) ListDeletedDocuments(ctx context.Context, organizationID string, limit, offset int) (*service.DocumentListResult, error) {
	return listOrNil(m.Called(ctx, organizationID, limit, offset))
}

func (m *MockDocumentService) GetDocumentFile(ctx context.Context, organizationID, documentID string) (*service.DocumentFile, error) {
	args := m.Called(ctx, organizationID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentFile), args.Error(1)
}

func (m *MockDocumentService) UpdateDocument(ctx context.Context, organizationID, documentID string, upd model.DocumentUpdate) (*model.Document, error) {
	return docOrNil(m.Called(ctx, organizationID, documentID, upd))
}

func (m *MockDocumentService) TrashDocument(ctx context.Context, organizationID, documentID string, userID *string) (*model.Document, error) {
	return docOrNil(m.Called(ctx, organizationID, documentID, userID))
}

func (m *MockDocumentService) RestoreDocument(ctx context.Context, organizationID, documentID string) (*model.Document, error) {
	return docOrNil(m.Called(ctx, organizationID, documentID))
}

func (m *MockDocumentService) HardDeleteDocument(ctx context.Context, organizationID, documentID string) error {
	return m.Called(ctx, organizationID, documentID).Error(0)
}

func (m *MockDocumentService) EmptyTrash(ctx context.Context, organizationID string) (*service.SweepResult, error) {
	return sweepOrNil(m.Called(ctx, organizationID))
}

func (m *MockDocumentService) DeleteExpiredDocuments(ctx context.Context, retentionDays int) (*service.SweepResult, error) {
	return sweepOrNil(m.Called(ctx, retentionDays))
}

func (m *MockDocumentService) GetOrganizationStats(ctx context.Context, organizationID string) (*model.OrganizationStats, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrganizationStats), args.Error(1)
}

func (m *MockDocumentService) ScheduleTaggingRule(ctx context.Context, organizationID, taggingRuleID string) error {
	return m.Called(ctx, organizationID, taggingRuleID).Error(0)
}
