package repository

import (
	"context"
	"errors"
	"time"

	"docvault/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the organization-scoped lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint, such as
	// a second document with the same (organization, content hash).
	ErrConflict = errors.New("record conflicts with an existing one")
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here: strictly persistence operations. Every lookup and mutation
// is scoped to an organization.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	// A uniqueness violation on (organization, hash) is reported as ErrConflict.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// GetByID returns the document, trashed or not.
	GetByID(ctx context.Context, organizationID, id string) (*model.Document, error)

	// GetBySha256Hash returns the document with the given content hash, including trashed rows.
	GetBySha256Hash(ctx context.Context, organizationID, hash string) (*model.Document, error)

	// List returns non-deleted documents, newest first.
	List(ctx context.Context, organizationID string, pq PageQuery) (*PageResult[model.Document], error)

	// ListDeleted returns trashed documents, most recently trashed first.
	ListDeleted(ctx context.Context, organizationID string, pq PageQuery) (*PageResult[model.Document], error)

	// GetDeletedDocuments returns every trashed document of the organization.
	GetDeletedDocuments(ctx context.Context, organizationID string) ([]model.Document, error)

	// Update applies a partial update and returns the resulting row.
	Update(ctx context.Context, organizationID, id string, upd model.DocumentUpdate) (*model.Document, error)

	// Trash flags the document deleted by userID at the given time.
	Trash(ctx context.Context, organizationID, id string, userID *string, at time.Time) (*model.Document, error)

	// Restore clears the delete flags. Non-empty fields of in replace the stored names and creator.
	Restore(ctx context.Context, organizationID, id string, in model.RestoreInput) (*model.Document, error)

	// Delete removes the row. Tag links and activity entries cascade.
	Delete(ctx context.Context, organizationID, id string) error

	// GetOrganizationStats returns live counts and sizes split by deleted and non-deleted.
	GetOrganizationStats(ctx context.Context, organizationID string) (*model.OrganizationStats, error)

	// GetExpiredDeletedDocuments returns documents of any organization trashed before the cutoff.
	GetExpiredDeletedDocuments(ctx context.Context, before time.Time) ([]model.Document, error)

	// IterateOrganizationDocuments walks non-deleted documents in ascending creation order,
	// handing fn one page at a time. Returning an error from fn stops the walk.
	IterateOrganizationDocuments(ctx context.Context, organizationID string, pageSize int, fn func(page []model.Document) error) error
}

// TagRepository manages tags and their association with documents.
type TagRepository interface {
	GetByID(ctx context.Context, organizationID, id string) (*model.Tag, error)

	// AddTagToDocument links a tag to a document and reports whether a new link was created.
	// Linking an already linked tag is a no-op that returns false.
	AddTagToDocument(ctx context.Context, documentID, tagID string) (bool, error)

	RemoveAllTagsFromDocument(ctx context.Context, documentID string) error

	ListDocumentTags(ctx context.Context, documentID string) ([]model.Tag, error)
}

// TaggingRuleRepository reads tagging rules with their conditions and actions.
type TaggingRuleRepository interface {
	ListByOrganization(ctx context.Context, organizationID string, enabledOnly bool) ([]model.TaggingRule, error)
	GetByID(ctx context.Context, organizationID, id string) (*model.TaggingRule, error)
}

// ActivityRepository appends document activity log entries.
type ActivityRepository interface {
	Create(ctx context.Context, entry *model.DocumentActivity) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
