package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"docvault/internal/apperror"
	"docvault/internal/capacity"
	"docvault/internal/events"
	"docvault/internal/extraction"
	"docvault/internal/ids"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
	"docvault/internal/tasks"
)

var (
	ErrIDRequired = apperror.ErrInvalidInput.WithCause(errors.New("id is required"))
	ErrReaderNil  = apperror.ErrInvalidInput.WithCause(errors.New("reader is nil"))
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// CreateDocumentInput describes one upload.
type CreateDocumentInput struct {
	Reader         io.Reader
	FileName       string
	MimeType       string
	OrganizationID string
	CreatedBy      *string
	OCRLanguages   []string
}

// DocumentFile is an open document file. The caller must close Body.
type DocumentFile struct {
	Document *model.Document
	Body     io.ReadCloser
}

// SweepResult counts the outcome of a bulk hard delete.
type SweepResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// DocumentService defines the use cases for handling documents. Every operation is scoped to
// an organization.
type DocumentService interface {
	// CreateDocument streams the upload into storage while hashing and counting it, then either
	// inserts a new document, restores a trashed one with identical content, or rejects a duplicate.
	CreateDocument(ctx context.Context, in CreateDocumentInput) (*model.Document, error)

	// ExtractAndSaveContent extracts the text of the stored file, saves it and re-runs tagging rules.
	ExtractAndSaveContent(ctx context.Context, organizationID, documentID string, ocrLanguages []string) (*model.Document, error)

	GetDocument(ctx context.Context, organizationID, documentID string) (*model.Document, error)
	ListDocuments(ctx context.Context, organizationID string, limit, offset int) (*DocumentListResult, error)
	ListDeletedDocuments(ctx context.Context, organizationID string, limit, offset int) (*DocumentListResult, error)
	GetDocumentFile(ctx context.Context, organizationID, documentID string) (*DocumentFile, error)
	UpdateDocument(ctx context.Context, organizationID, documentID string, upd model.DocumentUpdate) (*model.Document, error)

	TrashDocument(ctx context.Context, organizationID, documentID string, userID *string) (*model.Document, error)
	RestoreDocument(ctx context.Context, organizationID, documentID string) (*model.Document, error)

	// HardDeleteDocument removes a trashed document and its file.
	HardDeleteDocument(ctx context.Context, organizationID, documentID string) error
	EmptyTrash(ctx context.Context, organizationID string) (*SweepResult, error)

	// DeleteExpiredDocuments hard-deletes documents of every organization trashed more than
	// retentionDays ago.
	DeleteExpiredDocuments(ctx context.Context, retentionDays int) (*SweepResult, error)

	GetOrganizationStats(ctx context.Context, organizationID string) (*model.OrganizationStats, error)

	// ScheduleTaggingRule queues a rule for evaluation against every existing document.
	ScheduleTaggingRule(ctx context.Context, organizationID, taggingRuleID string) error
}

// FileStorage is the subset of storage.Service the pipeline uses.
type FileStorage interface {
	SaveFile(ctx context.Context, r io.Reader, key, mimeType, fileName string) (*storage.StorageContext, error)
	GetFileStream(ctx context.Context, key string, ec *storage.EncryptionContext) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, key string) error
}

// LimitsProvider reports an organization's remaining quota.
type LimitsProvider interface {
	GetOrganizationStorageLimits(ctx context.Context, organizationID string) (capacity.Limits, error)
}

// Tagger applies the enabled tagging rules of a document's organization.
type Tagger interface {
	ApplyTaggingRules(ctx context.Context, doc *model.Document) ([]string, error)
}

// Dependencies are the collaborators of the document service.
type Dependencies struct {
	Documents repository.DocumentRepository
	Tags      repository.TagRepository
	Storage   FileStorage
	Limits    LimitsProvider
	Tagger    Tagger
	Extractor extraction.Extractor
	Scheduler tasks.Scheduler
	Events    events.Emitter
	Metrics   *Metrics
	Logger    *zap.Logger

	// NewID defaults to random "doc" prefixed IDs.
	NewID ids.Generator
	// Now defaults to time.Now in UTC.
	Now func() time.Time
	// BulkConcurrency bounds in-flight deletions of sweeps. Defaults to 10.
	BulkConcurrency int
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	docs      repository.DocumentRepository
	tags      repository.TagRepository
	store     FileStorage
	limits    LimitsProvider
	tagger    Tagger
	extractor extraction.Extractor
	scheduler tasks.Scheduler
	events    events.Emitter
	metrics   *Metrics
	log       *zap.Logger
	newID     ids.Generator
	now       func() time.Time
	bulk      int
	insertMu  keyedMutex
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(d Dependencies) DocumentService {
	s := &documentService{
		docs:      d.Documents,
		tags:      d.Tags,
		store:     d.Storage,
		limits:    d.Limits,
		tagger:    d.Tagger,
		extractor: d.Extractor,
		scheduler: d.Scheduler,
		events:    d.Events,
		metrics:   d.Metrics,
		log:       d.Logger,
		newID:     d.NewID,
		now:       d.Now,
		bulk:      d.BulkConcurrency,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.With(zap.String("component", "document_service"))
	if s.newID == nil {
		s.newID = ids.Prefixed("doc")
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.bulk <= 0 {
		s.bulk = 10
	}
	return s
}

func (s *documentService) GetDocument(ctx context.Context, organizationID, documentID string) (*model.Document, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.GetByID(ctx, organizationID, documentID)
	if err != nil {
		return nil, notFound(err, "get document")
	}
	return doc, nil
}

func normalizePage(limit, offset int) repository.PageQuery {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return repository.PageQuery{Limit: limit, Offset: offset}
}

// ListDocuments returns paginated live documents without exposing repository types.
func (s *documentService) ListDocuments(ctx context.Context, organizationID string, limit, offset int) (*DocumentListResult, error) {
	res, err := s.docs.List(ctx, organizationID, normalizePage(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *documentService) ListDeletedDocuments(ctx context.Context, organizationID string, limit, offset int) (*DocumentListResult, error) {
	res, err := s.docs.ListDeleted(ctx, organizationID, normalizePage(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list deleted documents: %w", err)
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// GetDocumentFile opens the stored file, decrypting it when it was written encrypted.
func (s *documentService) GetDocumentFile(ctx context.Context, organizationID, documentID string) (*DocumentFile, error) {
	doc, err := s.GetDocument(ctx, organizationID, documentID)
	if err != nil {
		return nil, err
	}
	body, err := s.store.GetFileStream(ctx, doc.StorageKey, encryptionContext(doc))
	if err != nil {
		if errors.Is(err, apperror.ErrFileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("open document file: %w", err)
	}
	return &DocumentFile{Document: doc, Body: body}, nil
}

// UpdateDocument applies a partial update. An empty update returns the current document.
func (s *documentService) UpdateDocument(ctx context.Context, organizationID, documentID string, upd model.DocumentUpdate) (*model.Document, error) {
	if upd.IsEmpty() {
		return s.GetDocument(ctx, organizationID, documentID)
	}
	if upd.Name != nil && *upd.Name == "" {
		return nil, apperror.ErrInvalidInput.WithCause(errors.New("name must not be empty"))
	}
	doc, err := s.docs.Update(ctx, organizationID, documentID, upd)
	if err != nil {
		return nil, notFound(err, "update document")
	}
	s.events.Emit(ctx, events.DocumentUpdated, events.DocumentUpdatedPayload{Document: doc, Changes: upd})
	return doc, nil
}

func (s *documentService) GetOrganizationStats(ctx context.Context, organizationID string) (*model.OrganizationStats, error) {
	stats, err := s.docs.GetOrganizationStats(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("get organization stats: %w", err)
	}
	return stats, nil
}

func (s *documentService) ScheduleTaggingRule(ctx context.Context, organizationID, taggingRuleID string) error {
	if taggingRuleID == "" {
		return ErrIDRequired
	}
	err := s.scheduler.ScheduleJob(ctx, tasks.ApplyTaggingRuleToDocuments, tasks.ApplyTaggingRuleToDocumentsData{
		OrganizationID: organizationID,
		TaggingRuleID:  taggingRuleID,
	})
	if err != nil {
		return fmt.Errorf("schedule tagging rule: %w", err)
	}
	return nil
}

// ExtractAndSaveContent never fails on extraction itself: an unreadable file yields empty text.
func (s *documentService) ExtractAndSaveContent(ctx context.Context, organizationID, documentID string, ocrLanguages []string) (*model.Document, error) {
	doc, err := s.GetDocument(ctx, organizationID, documentID)
	if err != nil {
		return nil, err
	}

	text := s.extractText(ctx, doc, ocrLanguages)
	updated, err := s.UpdateDocument(ctx, organizationID, documentID, model.DocumentUpdate{Content: &text})
	if err != nil {
		return nil, err
	}
	s.applyTaggingRules(ctx, updated)
	return updated, nil
}

func (s *documentService) extractText(ctx context.Context, doc *model.Document, ocrLanguages []string) string {
	log := s.log.With(zap.String("document_id", doc.ID), zap.String("organization_id", doc.OrganizationID))

	body, err := s.store.GetFileStream(ctx, doc.StorageKey, encryptionContext(doc))
	if err != nil {
		log.Error("failed to open document file for extraction", zap.Error(err))
		return ""
	}
	defer body.Close()

	res, err := s.extractor.ExtractTextFromFile(ctx, extraction.File{
		Reader:   body,
		Name:     doc.OriginalName,
		MimeType: doc.MimeType,
	}, ocrLanguages)
	if err != nil {
		log.Error("failed to extract document text", zap.Error(err))
		return ""
	}
	return res.Text
}

func (s *documentService) applyTaggingRules(ctx context.Context, doc *model.Document) {
	if _, err := s.tagger.ApplyTaggingRules(ctx, doc); err != nil {
		s.log.Error("failed to apply tagging rules",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}
}

func encryptionContext(doc *model.Document) *storage.EncryptionContext {
	if doc.FileEncryptionKeyWrapped == nil || doc.FileEncryptionAlgorithm == nil || doc.FileEncryptionKEKVersion == nil {
		return nil
	}
	return &storage.EncryptionContext{
		WrappedKey: *doc.FileEncryptionKeyWrapped,
		Algorithm:  *doc.FileEncryptionAlgorithm,
		KEKVersion: *doc.FileEncryptionKEKVersion,
	}
}

// notFound maps repository.ErrNotFound to the domain error and wraps anything else.
func notFound(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.ErrDocumentNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
