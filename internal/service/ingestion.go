package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docvault/internal/apperror"
	"docvault/internal/events"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
	"docvault/internal/stream"
	"docvault/internal/tasks"
)

// StorageKey returns "{organizationID}/originals/{documentID}[.ext]" where ext is the lowercase
// extension of fileName. A name without extension, or ending in a dot, yields no suffix.
func StorageKey(organizationID, documentID, fileName string) string {
	key := organizationID + "/originals/" + documentID
	ext := strings.ToLower(path.Ext(path.Base(fileName)))
	if len(ext) > 1 {
		key += ext
	}
	return key
}

// upload is the state of one CreateDocument call once the optimistic write finished.
type upload struct {
	in      CreateDocumentInput
	id      string
	key     string
	hash    string
	size    int64
	storage *storage.StorageContext
}

func (s *documentService) CreateDocument(ctx context.Context, in CreateDocumentInput) (*model.Document, error) {
	if in.Reader == nil {
		return nil, ErrReaderNil
	}
	if in.OrganizationID == "" {
		return nil, ErrIDRequired
	}
	log := s.log.With(zap.String("organization_id", in.OrganizationID), zap.String("file_name", in.FileName))

	limits, err := s.limits.GetOrganizationStorageLimits(ctx, in.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("get storage limits: %w", err)
	}

	up := &upload{in: in, id: s.newID()}
	up.key = StorageKey(in.OrganizationID, up.id, in.FileName)

	hashing := stream.NewHashingReader(in.Reader)
	counting := stream.NewCountingReader(hashing, func(total int64, abort func(error)) {
		if total > limits.AvailableDocumentStorageBytes {
			abort(apperror.ErrOrganizationStorageLimitReached)
			return
		}
		if limits.MaxFileSize > 0 && total > limits.MaxFileSize {
			abort(apperror.ErrDocumentSizeTooLarge)
		}
	})

	// The file is written before any dedup or final quota check; every failure below must
	// remove it again.
	sc, err := s.store.SaveFile(ctx, counting, up.key, in.MimeType, in.FileName)
	if err != nil {
		s.removeOptimisticFile(ctx, up.key)
		if errors.Is(err, apperror.ErrOrganizationStorageLimitReached) || errors.Is(err, apperror.ErrDocumentSizeTooLarge) {
			s.metrics.ingestion(outcomeRejected)
			return nil, apperror.From(err)
		}
		s.metrics.ingestion(outcomeFailed)
		return nil, fmt.Errorf("save file: %w", err)
	}
	up.storage = sc
	up.size = counting.Count()
	if up.hash, err = hashing.Hash(); err != nil {
		s.removeOptimisticFile(ctx, up.key)
		s.metrics.ingestion(outcomeFailed)
		return nil, fmt.Errorf("hash upload: %w", err)
	}

	doc, err := s.resolve(ctx, up)
	if err != nil {
		log.Info("document upload rejected", zap.String("sha256", up.hash), zap.Error(err))
		return nil, err
	}

	s.events.Emit(ctx, events.DocumentCreated, events.DocumentPayload{Document: doc, UserID: in.CreatedBy})
	return doc, nil
}

// resolve branches on an existing document with the same content.
func (s *documentService) resolve(ctx context.Context, up *upload) (*model.Document, error) {
	existing, err := s.docs.GetBySha256Hash(ctx, up.in.OrganizationID, up.hash)
	switch {
	case err == nil && !existing.IsDeleted:
		s.removeOptimisticFile(ctx, up.key)
		s.metrics.ingestion(outcomeDuplicate)
		return nil, apperror.ErrDocumentAlreadyExists

	case err == nil:
		// The trashed document's own file holds identical bytes.
		s.removeOptimisticFile(ctx, up.key)
		doc, err := s.restoreFromUpload(ctx, existing, up.in)
		if err != nil {
			s.metrics.ingestion(outcomeFailed)
			return nil, err
		}
		s.metrics.ingestion(outcomeRestored)
		return doc, nil

	case errors.Is(err, repository.ErrNotFound):
		return s.insert(ctx, up)

	default:
		s.removeOptimisticFile(ctx, up.key)
		s.metrics.ingestion(outcomeFailed)
		return nil, fmt.Errorf("look up document by hash: %w", err)
	}
}

// restoreFromUpload clears the trashed document's tags and restores it under the new upload's
// name. The two writes are independent and not transactional.
func (s *documentService) restoreFromUpload(ctx context.Context, existing *model.Document, in CreateDocumentInput) (*model.Document, error) {
	var restored *model.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.tags.RemoveAllTagsFromDocument(gctx, existing.ID); err != nil {
			return fmt.Errorf("remove document tags: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		doc, err := s.docs.Restore(gctx, in.OrganizationID, existing.ID, model.RestoreInput{
			Name:         in.FileName,
			OriginalName: in.FileName,
			CreatedBy:    in.CreatedBy,
		})
		if err != nil {
			return notFound(err, "restore document")
		}
		restored = doc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.applyTaggingRules(ctx, restored)
	return restored, nil
}

// insert re-checks the quota against live consumption and creates the row. The check and the
// insert run under a per-organization lock so concurrent uploads in this process cannot both
// pass the check.
func (s *documentService) insert(ctx context.Context, up *upload) (*model.Document, error) {
	unlock := s.insertMu.Lock(up.in.OrganizationID)
	defer unlock()

	limits, err := s.limits.GetOrganizationStorageLimits(ctx, up.in.OrganizationID)
	if err != nil {
		s.removeOptimisticFile(ctx, up.key)
		s.metrics.ingestion(outcomeFailed)
		return nil, fmt.Errorf("get storage limits: %w", err)
	}
	if up.size > limits.AvailableDocumentStorageBytes {
		s.removeOptimisticFile(ctx, up.key)
		s.metrics.ingestion(outcomeRejected)
		return nil, apperror.ErrOrganizationStorageLimitReached
	}

	doc := &model.Document{
		ID:             up.id,
		OrganizationID: up.in.OrganizationID,
		CreatedBy:      up.in.CreatedBy,
		OriginalName:   up.in.FileName,
		Name:           up.in.FileName,
		MimeType:       up.in.MimeType,
		OriginalSize:   up.size,
		OriginalSHA256: up.hash,
		StorageKey:     up.storage.StorageKey,
		CreatedAt:      s.now(),
		UpdatedAt:      s.now(),
	}
	if ec := up.storage.Encryption; ec != nil {
		doc.FileEncryptionKeyWrapped = &ec.WrappedKey
		doc.FileEncryptionAlgorithm = &ec.Algorithm
		doc.FileEncryptionKEKVersion = &ec.KEKVersion
	}

	stored, err := s.docs.Create(ctx, doc)
	if err != nil {
		s.removeOptimisticFile(ctx, up.key)
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.ingestion(outcomeDuplicate)
			return nil, apperror.ErrDocumentAlreadyExists
		}
		s.metrics.ingestion(outcomeFailed)
		return nil, fmt.Errorf("insert document: %w", err)
	}
	s.metrics.ingestion(outcomeCreated)
	s.metrics.ingestedBytes.Add(float64(up.size))

	// Name rules apply now; content rules run again once extraction has filled the content.
	s.applyTaggingRules(ctx, stored)
	err = s.scheduler.ScheduleJob(ctx, tasks.ExtractDocumentFileContent, tasks.ExtractDocumentFileContentData{
		DocumentID:     stored.ID,
		OrganizationID: stored.OrganizationID,
		OCRLanguages:   up.in.OCRLanguages,
	})
	if err != nil {
		s.log.Error("failed to schedule content extraction", zap.String("document_id", stored.ID), zap.Error(err))
	}
	return stored, nil
}

// removeOptimisticFile deletes a file written by an upload that did not produce a new document.
func (s *documentService) removeOptimisticFile(ctx context.Context, key string) {
	if err := s.store.DeleteFile(context.WithoutCancel(ctx), key); err != nil && !errors.Is(err, apperror.ErrFileNotFound) {
		s.log.Error("failed to remove optimistic file", zap.String("storage_key", key), zap.Error(err))
	}
}
