package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	"docvault/internal/model"
	"docvault/internal/repository"
)

// setupTestDB starts a PostgreSQL container and applies the embedded migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("docvault_test"),
		tcpostgres.WithUsername("docvault"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:               host,
		Port:               port.Port(),
		User:               "docvault",
		Password:           "test-password",
		Name:               "docvault_test",
		SSLMode:            "disable",
		MaxOpenConns:       5,
		MaxIdleConns:       2,
		ConnMaxLifetimeSec: 60,
	}
	require.NoError(t, migration.Up(cfg, zap.NewNop()))
	// A second run must be a no-op.
	require.NoError(t, migration.Up(cfg, zap.NewNop()))

	db, err := database.Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newIntegrationDocument(id, hash string, createdAt time.Time) *model.Document {
	return &model.Document{
		ID:             id,
		OrganizationID: "org_1",
		OriginalName:   id + ".txt",
		Name:           id + ".txt",
		MimeType:       "text/plain",
		OriginalSize:   10,
		OriginalSHA256: hash,
		StorageKey:     "org_1/originals/" + id + ".txt",
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestIntegration_DocumentLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	docs := NewDocumentPostgres(db)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	created, err := docs.Create(ctx, newIntegrationDocument("doc_a", "hash-a", base))
	require.NoError(t, err)
	assert.Equal(t, "doc_a", created.ID)

	_, err = docs.Create(ctx, newIntegrationDocument("doc_dup", "hash-a", base))
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = docs.Create(ctx, newIntegrationDocument("doc_b", "hash-b", base.Add(time.Hour)))
	require.NoError(t, err)

	byHash, err := docs.GetBySha256Hash(ctx, "org_1", "hash-b")
	require.NoError(t, err)
	assert.Equal(t, "doc_b", byHash.ID)

	_, err = docs.GetByID(ctx, "org_2", "doc_a")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	user := "user_1"
	trashed, err := docs.Trash(ctx, "org_1", "doc_a", &user, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, trashed.IsDeleted)
	assert.Equal(t, &user, trashed.DeletedBy)

	live, err := docs.List(ctx, "org_1", repository.PageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, live.Total)
	assert.Equal(t, "doc_b", live.Items[0].ID)

	stats, err := docs.GetOrganizationStats(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DocumentsCount)
	assert.Equal(t, int64(1), stats.DeletedDocumentsCount)
	assert.Equal(t, int64(20), stats.TotalDocumentsSize)

	expired, err := docs.GetExpiredDeletedDocuments(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "doc_a", expired[0].ID)

	restored, err := docs.Restore(ctx, "org_1", "doc_a", model.RestoreInput{Name: "again.txt", OriginalName: "again.txt"})
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, "again.txt", restored.Name)

	require.NoError(t, docs.Delete(ctx, "org_1", "doc_b"))
	assert.ErrorIs(t, docs.Delete(ctx, "org_1", "doc_b"), repository.ErrNotFound)
}

func TestIntegration_TagsAndRules(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	docs := NewDocumentPostgres(db)
	tags := NewTagPostgres(db)
	rules := NewTaggingRulePostgres(db)
	activity := NewActivityPostgres(db)

	_, err := docs.Create(ctx, newIntegrationDocument("doc_a", "hash-a", time.Now().UTC()))
	require.NoError(t, err)

	for _, stmt := range []string{
		`INSERT INTO tags (id, organization_id, name, color) VALUES ('tag_1', 'org_1', 'invoice', '#000000')`,
		`INSERT INTO tagging_rules (id, organization_id, name, condition_match_mode) VALUES ('tgr_1', 'org_1', 'invoices', 'any')`,
		`INSERT INTO tagging_rule_conditions (id, tagging_rule_id, field, operator, value) VALUES ('trc_1', 'tgr_1', 'name', 'contains', 'invoice')`,
		`INSERT INTO tagging_rule_actions (id, tagging_rule_id, tag_id) VALUES ('tra_1', 'tgr_1', 'tag_1')`,
	} {
		_, err = db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	rule, err := rules.GetByID(ctx, "org_1", "tgr_1")
	require.NoError(t, err)
	assert.Equal(t, model.ConditionMatchModeAny, rule.ConditionMatchMode)
	require.Len(t, rule.Conditions, 1)
	assert.Equal(t, model.OperatorContains, rule.Conditions[0].Operator)
	require.Len(t, rule.Actions, 1)
	assert.Equal(t, "tag_1", rule.Actions[0].TagID)

	enabled, err := rules.ListByOrganization(ctx, "org_1", true)
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	added, err := tags.AddTagToDocument(ctx, "doc_a", "tag_1")
	require.NoError(t, err)
	assert.True(t, added)
	// Adding the same tag twice is a no-op.
	added, err = tags.AddTagToDocument(ctx, "doc_a", "tag_1")
	require.NoError(t, err)
	assert.False(t, added)
	attached, err := tags.ListDocumentTags(ctx, "doc_a")
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.Equal(t, "invoice", attached[0].Name)

	tagID := "tag_1"
	require.NoError(t, activity.Create(ctx, &model.DocumentActivity{
		ID:         "dal_1",
		DocumentID: "doc_a",
		Event:      model.ActivityTagged,
		EventData:  map[string]any{"taggingRuleId": "tgr_1"},
		TagID:      &tagID,
		CreatedAt:  time.Now().UTC(),
	}))

	require.NoError(t, tags.RemoveAllTagsFromDocument(ctx, "doc_a"))
	attached, err = tags.ListDocumentTags(ctx, "doc_a")
	require.NoError(t, err)
	assert.Empty(t, attached)
}
