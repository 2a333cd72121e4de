package capacity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
	"docvault/internal/model"
	"docvault/internal/repository/mocks"
)

func TestLimiter_GetOrganizationStorageLimits(t *testing.T) {
	ctx := context.Background()
	plans := NewStaticPlanProvider(config.IngestionConfig{MaxDocumentStorageBytes: 1000, MaxFileSize: 300})

	tests := []struct {
		name    string
		stats   *model.OrganizationStats
		statErr error
		want    Limits
		wantErr bool
	}{
		{
			name:  "empty organization",
			stats: &model.OrganizationStats{},
			want:  Limits{AvailableDocumentStorageBytes: 1000, MaxFileSize: 300},
		},
		{
			name:  "trashed documents still consume quota",
			stats: &model.OrganizationStats{DocumentsSize: 400, DeletedDocumentsSize: 100, TotalDocumentsSize: 500},
			want:  Limits{AvailableDocumentStorageBytes: 500, MaxFileSize: 300},
		},
		{
			name:  "bounded by zero",
			stats: &model.OrganizationStats{TotalDocumentsSize: 1500},
			want:  Limits{AvailableDocumentStorageBytes: 0, MaxFileSize: 300},
		},
		{
			name:    "stats error",
			statErr: errors.New("db down"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.MockDocumentRepository)
			if tt.statErr != nil {
				repo.On("GetOrganizationStats", ctx, "org_1").Return(nil, tt.statErr)
			} else {
				repo.On("GetOrganizationStats", ctx, "org_1").Return(tt.stats, nil)
			}

			got, err := NewLimiter(plans, repo).GetOrganizationStorageLimits(ctx, "org_1")
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.statErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			repo.AssertExpectations(t)
		})
	}
}

type failingPlans struct{ mock.Mock }

func (f *failingPlans) GetOrganizationPlan(ctx context.Context, organizationID string) (Plan, error) {
	args := f.Called(ctx, organizationID)
	return args.Get(0).(Plan), args.Error(1)
}

func TestLimiter_PlanError(t *testing.T) {
	ctx := context.Background()
	plans := new(failingPlans)
	plans.On("GetOrganizationPlan", ctx, "org_1").Return(Plan{}, errors.New("billing unavailable"))

	_, err := NewLimiter(plans, new(mocks.MockDocumentRepository)).GetOrganizationStorageLimits(ctx, "org_1")
	assert.ErrorContains(t, err, "billing unavailable")
}
