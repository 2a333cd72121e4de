package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docvault/internal/apperror"
	"docvault/internal/events"
	"docvault/internal/model"
)

// TrashDocument flags the document deleted. The stored file is kept until a hard delete.
// Trashing a trashed document keeps its original deletion time and emits nothing.
func (s *documentService) TrashDocument(ctx context.Context, organizationID, documentID string, userID *string) (*model.Document, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}
	now := s.now()
	doc, err := s.docs.Trash(ctx, organizationID, documentID, userID, now)
	if err != nil {
		return nil, notFound(err, "trash document")
	}
	if doc.DeletedAt != nil && doc.DeletedAt.Before(now) {
		// Already in the trash.
		return doc, nil
	}
	s.events.Emit(ctx, events.DocumentTrashed, events.DocumentPayload{Document: doc, UserID: userID})
	return doc, nil
}

// RestoreDocument brings a trashed document back. Restoring a live document is a no-op.
func (s *documentService) RestoreDocument(ctx context.Context, organizationID, documentID string) (*model.Document, error) {
	doc, err := s.GetDocument(ctx, organizationID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsDeleted {
		return doc, nil
	}
	doc, err = s.docs.Restore(ctx, organizationID, documentID, model.RestoreInput{})
	if err != nil {
		return nil, notFound(err, "restore document")
	}
	s.events.Emit(ctx, events.DocumentRestored, events.DocumentPayload{Document: doc})
	return doc, nil
}

func (s *documentService) HardDeleteDocument(ctx context.Context, organizationID, documentID string) error {
	doc, err := s.GetDocument(ctx, organizationID, documentID)
	if err != nil {
		return err
	}
	if !doc.IsDeleted {
		return apperror.ErrDocumentNotDeleted
	}
	return s.hardDelete(ctx, doc)
}

// hardDelete removes the row, then the file. A missing file is not an error.
func (s *documentService) hardDelete(ctx context.Context, doc *model.Document) error {
	if err := s.docs.Delete(ctx, doc.OrganizationID, doc.ID); err != nil {
		s.metrics.hardDeletes.WithLabelValues("failed").Inc()
		return notFound(err, "delete document")
	}
	s.events.Emit(ctx, events.DocumentDeleted, events.DocumentDeletedPayload{
		DocumentID:     doc.ID,
		OrganizationID: doc.OrganizationID,
	})

	if err := s.store.DeleteFile(ctx, doc.StorageKey); err != nil && !errors.Is(err, apperror.ErrFileNotFound) {
		s.metrics.hardDeletes.WithLabelValues("file_failed").Inc()
		return fmt.Errorf("delete document file %s: %w", doc.StorageKey, err)
	}
	s.metrics.hardDeletes.WithLabelValues("deleted").Inc()
	return nil
}

func (s *documentService) EmptyTrash(ctx context.Context, organizationID string) (*SweepResult, error) {
	docs, err := s.docs.GetDeletedDocuments(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("get deleted documents: %w", err)
	}
	return s.sweep(ctx, docs), nil
}

func (s *documentService) DeleteExpiredDocuments(ctx context.Context, retentionDays int) (*SweepResult, error) {
	if retentionDays < 0 {
		return nil, apperror.ErrInvalidInput.WithCause(errors.New("retention days must not be negative"))
	}
	before := s.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	docs, err := s.docs.GetExpiredDeletedDocuments(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("get expired documents: %w", err)
	}

	res := s.sweep(ctx, docs)
	s.log.Info("expired documents deleted",
		zap.Int("retention_days", retentionDays),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// sweep hard-deletes docs with bounded concurrency. A failure is logged and counted only.
func (s *documentService) sweep(ctx context.Context, docs []model.Document) *SweepResult {
	var deleted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulk)
	for i := range docs {
		doc := &docs[i]
		g.Go(func() error {
			if err := s.hardDelete(gctx, doc); err != nil {
				failed.Add(1)
				s.log.Error("failed to hard delete document",
					zap.String("document_id", doc.ID),
					zap.String("organization_id", doc.OrganizationID),
					zap.Error(err),
				)
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return &SweepResult{Deleted: int(deleted.Load()), Failed: int(failed.Load())}
}
