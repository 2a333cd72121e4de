// Package tagging evaluates organization tagging rules against documents and applies
// the tags of matching rules.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docvault/internal/apperror"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/webhook"
)

const defaultPageSize = 100

// WebhookTrigger delivers organization webhooks without blocking.
type WebhookTrigger interface {
	TriggerWebhooks(ctx context.Context, organizationID, event string, payload any)
}

// ActivityRecorder appends activity entries without blocking.
type ActivityRecorder interface {
	Record(ctx context.Context, entry model.DocumentActivity)
}

// DocumentIterator pages through an organization's live documents.
type DocumentIterator interface {
	IterateOrganizationDocuments(ctx context.Context, organizationID string, pageSize int, fn func(page []model.Document) error) error
}

// Invalidator drops cached rules of an organization.
type Invalidator interface {
	Invalidate(organizationID string)
}

// TagAddedPayload is the webhook payload sent when a rule tags a document.
type TagAddedPayload struct {
	DocumentID    string `json:"documentId"`
	TagID         string `json:"tagId"`
	TaggingRuleID string `json:"taggingRuleId"`
}

// BulkResult summarizes a rule applied to existing documents.
type BulkResult struct {
	Processed int64 `json:"processed"`
	Tagged    int64 `json:"tagged"`
	Errors    int64 `json:"errors"`
}

// Options tunes bulk operations.
type Options struct {
	PageSize    int
	Concurrency int
}

// Evaluator applies tagging rules.
type Evaluator struct {
	rules     repository.TaggingRuleRepository
	tags      repository.TagRepository
	documents DocumentIterator
	operators OperatorRegistry
	webhooks  WebhookTrigger
	activity  ActivityRecorder
	log       *zap.Logger
	opts      Options
}

func NewEvaluator(
	rules repository.TaggingRuleRepository,
	tags repository.TagRepository,
	documents DocumentIterator,
	operators OperatorRegistry,
	webhooks WebhookTrigger,
	activity ActivityRecorder,
	log *zap.Logger,
	opts Options,
) *Evaluator {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	return &Evaluator{
		rules:     rules,
		tags:      tags,
		documents: documents,
		operators: operators,
		webhooks:  webhooks,
		activity:  activity,
		log:       log.With(zap.String("component", "tagging")),
		opts:      opts,
	}
}

// Matches reports whether doc satisfies rule. Invalid conditions count as failed.
func (e *Evaluator) Matches(doc *model.Document, rule *model.TaggingRule) bool {
	if len(rule.Conditions) == 0 {
		return true
	}
	matchAny := rule.ConditionMatchMode == model.ConditionMatchModeAny
	for _, cond := range rule.Conditions {
		ok := e.evaluate(doc, rule, cond)
		if matchAny && ok {
			return true
		}
		if !matchAny && !ok {
			return false
		}
	}
	return !matchAny
}

func (e *Evaluator) evaluate(doc *model.Document, rule *model.TaggingRule, cond model.TaggingRuleCondition) bool {
	value, err := FieldValue(doc, cond.Field)
	if err == nil {
		var ok bool
		if ok, err = e.operators.Evaluate(cond.Operator, value, cond.Value, cond.IsCaseSensitive); err == nil {
			return ok
		}
	}
	e.log.Warn("invalid tagging rule condition",
		zap.String("tagging_rule_id", rule.ID),
		zap.String("condition_id", cond.ID),
		zap.Error(err),
	)
	return false
}

// ApplyRule tags doc with the rule's tags when it matches and returns the applied tag IDs.
// A failed tag is skipped; the failures are returned joined after every tag was attempted.
func (e *Evaluator) ApplyRule(ctx context.Context, doc *model.Document, rule *model.TaggingRule) ([]string, error) {
	if !e.Matches(doc, rule) {
		return nil, nil
	}

	var (
		applied []string
		errs    []error
	)
	for _, action := range rule.Actions {
		added, err := e.tags.AddTagToDocument(ctx, doc.ID, action.TagID)
		if err != nil {
			e.log.Warn("failed to apply tag",
				zap.String("document_id", doc.ID),
				zap.String("tag_id", action.TagID),
				zap.String("tagging_rule_id", rule.ID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("apply tag %s: %w", action.TagID, err))
			continue
		}
		applied = append(applied, action.TagID)
		if !added {
			continue
		}

		tagID := action.TagID
		e.webhooks.TriggerWebhooks(ctx, doc.OrganizationID, webhook.EventDocumentTagAdded, TagAddedPayload{
			DocumentID:    doc.ID,
			TagID:         tagID,
			TaggingRuleID: rule.ID,
		})
		e.activity.Record(ctx, model.DocumentActivity{
			DocumentID: doc.ID,
			Event:      model.ActivityTagged,
			TagID:      &tagID,
			EventData:  map[string]any{"taggingRuleId": rule.ID},
		})
	}
	return applied, errors.Join(errs...)
}

// ApplyTaggingRules runs every enabled rule of the document's organization and returns the
// distinct tag IDs applied.
func (e *Evaluator) ApplyTaggingRules(ctx context.Context, doc *model.Document) ([]string, error) {
	rules, err := e.rules.ListByOrganization(ctx, doc.OrganizationID, true)
	if err != nil {
		return nil, fmt.Errorf("list tagging rules: %w", err)
	}

	seen := make(map[string]struct{})
	applied := make([]string, 0)
	for i := range rules {
		if !rules[i].Enabled {
			continue
		}
		ids, err := e.ApplyRule(ctx, doc, &rules[i])
		if err != nil {
			e.log.Warn("tagging rule partially applied",
				zap.String("document_id", doc.ID),
				zap.String("tagging_rule_id", rules[i].ID),
				zap.Error(err),
			)
		}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			applied = append(applied, id)
		}
	}

	if len(applied) > 0 {
		e.log.Info("tagging rules applied",
			zap.String("document_id", doc.ID),
			zap.Strings("tag_ids", applied),
		)
	}
	return applied, nil
}

// ApplyRuleToExistingDocuments evaluates one rule, enabled or not, against every live document
// of the organization. A failing document is counted and the sweep continues.
func (e *Evaluator) ApplyRuleToExistingDocuments(ctx context.Context, organizationID, ruleID string) (BulkResult, error) {
	if inv, ok := e.rules.(Invalidator); ok {
		inv.Invalidate(organizationID)
	}

	rule, err := e.rules.GetByID(ctx, organizationID, ruleID)
	if errors.Is(err, repository.ErrNotFound) {
		return BulkResult{}, apperror.ErrTaggingRuleNotFound
	}
	if err != nil {
		return BulkResult{}, fmt.Errorf("get tagging rule: %w", err)
	}

	var processed, tagged, failed atomic.Int64
	err = e.documents.IterateOrganizationDocuments(ctx, organizationID, e.opts.PageSize, func(page []model.Document) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Concurrency)
		for i := range page {
			doc := &page[i]
			g.Go(func() error {
				processed.Add(1)
				ids, err := e.ApplyRule(gctx, doc, rule)
				if err != nil {
					failed.Add(1)
				}
				if len(ids) > 0 {
					tagged.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
		return ctx.Err()
	})

	res := BulkResult{Processed: processed.Load(), Tagged: tagged.Load(), Errors: failed.Load()}
	e.log.Info("tagging rule applied to existing documents",
		zap.String("organization_id", organizationID),
		zap.String("tagging_rule_id", ruleID),
		zap.Int64("processed", res.Processed),
		zap.Int64("tagged", res.Tagged),
		zap.Int64("errors", res.Errors),
	)
	if err != nil {
		return res, fmt.Errorf("iterate documents: %w", err)
	}
	return res, nil
}
