package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"docvault/internal/model"
	"docvault/internal/repository"
)

type MockDocumentRepository struct {
	mock.Mock
}

var _ repository.DocumentRepository = (*MockDocumentRepository)(nil)

func documentOrNil(args mock.Arguments) (*model.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	return documentOrNil(m.Called(ctx, doc))
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, organizationID, id string) (*model.Document, error) {
	return documentOrNil(m.Called(ctx, organizationID, id))
}

func (m *MockDocumentRepository) GetBySha256Hash(ctx context.Context, organizationID, hash string) (*model.Document, error) {
	return documentOrNil(m.Called(ctx, organizationID, hash))
}

func (m *MockDocumentRepository) List(ctx context.Context, organizationID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, organizationID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) ListDeleted(ctx context.Context, organizationID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, organizationID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) GetDeletedDocuments(ctx context.Context, organizationID string) ([]model.Document, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, organizationID, id string, upd model.DocumentUpdate) (*model.Document, error) {
	return documentOrNil(m.Called(ctx, organizationID, id, upd))
}

func (m *MockDocumentRepository) Trash(ctx context.Context, organizationID, id string, userID *string, at time.Time) (*model.Document, error) {
	return documentOrNil(m.Called(ctx, organizationID, id, userID, at))
}

func (m *MockDocumentRepository) Restore(ctx context.Context, organizationID, id string, in model.RestoreInput) (*model.Document, error) {
	return documentOrNil(m.Called(ctx, organizationID, id, in))
}

func (m *MockDocumentRepository) Delete(ctx context.Context, organizationID, id string) error {
	args := m.Called(ctx, organizationID, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetOrganizationStats(ctx context.Context, organizationID string) (*model.OrganizationStats, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrganizationStats), args.Error(1)
}

func (m *MockDocumentRepository) GetExpiredDeletedDocuments(ctx context.Context, before time.Time) ([]model.Document, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentRepository) IterateOrganizationDocuments(ctx context.Context, organizationID string, pageSize int, fn func(page []model.Document) error) error {
	args := m.Called(ctx, organizationID, pageSize, fn)
	return args.Error(0)
}

type MockTagRepository struct {
	mock.Mock
}

var _ repository.TagRepository = (*MockTagRepository)(nil)

func (m *MockTagRepository) GetByID(ctx context.Context, organizationID, id string) (*model.Tag, error) {
	args := m.Called(ctx, organizationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tag), args.Error(1)
}

func (m *MockTagRepository) AddTagToDocument(ctx context.Context, documentID, tagID string) (bool, error) {
	args := m.Called(ctx, documentID, tagID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTagRepository) RemoveAllTagsFromDocument(ctx context.Context, documentID string) error {
	return m.Called(ctx, documentID).Error(0)
}

func (m *MockTagRepository) ListDocumentTags(ctx context.Context, documentID string) ([]model.Tag, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Tag), args.Error(1)
}
