// Package capacity computes how much an organization may still store.
package capacity

import (
	"context"
	"fmt"

	"docvault/internal/config"
	"docvault/internal/model"
)

// Limits is the quota snapshot the ingestion pipeline enforces while streaming.
type Limits struct {
	AvailableDocumentStorageBytes int64 `json:"availableDocumentStorageBytes"`
	MaxFileSize                   int64 `json:"maxFileSize"`
}

// Plan holds the limits granted by an organization's subscription.
type Plan struct {
	MaxDocumentStorageBytes int64
	MaxFileSize             int64
}

// PlanProvider resolves the plan of an organization.
type PlanProvider interface {
	GetOrganizationPlan(ctx context.Context, organizationID string) (Plan, error)
}

// StaticPlanProvider grants every organization the same plan.
type StaticPlanProvider struct {
	Plan Plan
}

// NewStaticPlanProvider builds the default plan from the ingestion settings.
func NewStaticPlanProvider(cfg config.IngestionConfig) StaticPlanProvider {
	return StaticPlanProvider{Plan: Plan{
		MaxDocumentStorageBytes: cfg.MaxDocumentStorageBytes,
		MaxFileSize:             cfg.MaxFileSize,
	}}
}

func (p StaticPlanProvider) GetOrganizationPlan(context.Context, string) (Plan, error) {
	return p.Plan, nil
}

// StatsReader reads live storage consumption.
type StatsReader interface {
	GetOrganizationStats(ctx context.Context, organizationID string) (*model.OrganizationStats, error)
}

// Limiter combines plan limits with consumption. It never mutates anything.
type Limiter struct {
	plans PlanProvider
	stats StatsReader
}

func NewLimiter(plans PlanProvider, stats StatsReader) *Limiter {
	return &Limiter{plans: plans, stats: stats}
}

// GetOrganizationStorageLimits returns the bytes still available to the organization and the
// largest single file it may upload. Trashed documents count against the quota until they are
// hard-deleted.
func (l *Limiter) GetOrganizationStorageLimits(ctx context.Context, organizationID string) (Limits, error) {
	plan, err := l.plans.GetOrganizationPlan(ctx, organizationID)
	if err != nil {
		return Limits{}, fmt.Errorf("resolve plan for organization %s: %w", organizationID, err)
	}
	stats, err := l.stats.GetOrganizationStats(ctx, organizationID)
	if err != nil {
		return Limits{}, fmt.Errorf("read storage stats for organization %s: %w", organizationID, err)
	}

	return Limits{
		AvailableDocumentStorageBytes: max(0, plan.MaxDocumentStorageBytes-stats.TotalDocumentsSize),
		MaxFileSize:                   plan.MaxFileSize,
	}, nil
}
