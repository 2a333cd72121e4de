package service

import (
	"context"

	"docvault/internal/tagging"
	"docvault/internal/tasks"
)

// RuleApplier evaluates one tagging rule against an organization's documents.
type RuleApplier interface {
	ApplyRuleToExistingDocuments(ctx context.Context, organizationID, ruleID string) (tagging.BulkResult, error)
}

// RegisterJobs binds the background job names to their handlers.
func RegisterJobs(reg *tasks.Registry, docs DocumentService, rules RuleApplier) {
	reg.Register(tasks.ExtractDocumentFileContent, tasks.Handle(func(ctx context.Context, d tasks.ExtractDocumentFileContentData) error {
		_, err := docs.ExtractAndSaveContent(ctx, d.OrganizationID, d.DocumentID, d.OCRLanguages)
		return err
	}))
	reg.Register(tasks.ApplyTaggingRuleToDocuments, tasks.Handle(func(ctx context.Context, d tasks.ApplyTaggingRuleToDocumentsData) error {
		_, err := rules.ApplyRuleToExistingDocuments(ctx, d.OrganizationID, d.TaggingRuleID)
		return err
	}))
}

// ExpirySweepTask hard-deletes documents trashed longer than retentionDays on every run.
func ExpirySweepTask(docs DocumentService, retentionDays int) tasks.Task {
	return tasks.TaskFunc{
		TaskName: "delete-expired-documents",
		Fn: func(ctx context.Context) error {
			_, err := docs.DeleteExpiredDocuments(ctx, retentionDays)
			return err
		},
	}
}
