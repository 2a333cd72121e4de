package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var ruleRowColumns = []string{"id", "organization_id", "name", "description", "enabled", "condition_match_mode", "created_at", "updated_at"}

func TestTaggingRulePostgres_ListByOrganization(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewTaggingRulePostgres(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM tagging_rules\\s+WHERE organization_id = \\$1 AND \\(enabled OR NOT \\$2\\)").
		WithArgs("org_1", true).
		WillReturnRows(sqlmock.NewRows(ruleRowColumns).
			AddRow("rule_1", "org_1", "Invoices", nil, true, "any", now, now).
			AddRow("rule_2", "org_1", "Legacy", nil, true, nil, now, now))
	mock.ExpectQuery("FROM tagging_rule_conditions").
		WithArgs("org_1", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tagging_rule_id", "field", "operator", "value", "is_case_sensitive"}).
			AddRow("cond_1", "rule_1", "name", "contains", "Invoice", false).
			AddRow("cond_2", "rule_1", "name", "contains", "Receipt", false))
	mock.ExpectQuery("FROM tagging_rule_actions").
		WithArgs("org_1", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tagging_rule_id", "tag_id"}).
			AddRow("act_1", "rule_1", "tag_1").
			AddRow("act_2", "rule_2", "tag_2"))

	rules, err := repo.ListByOrganization(ctx, "org_1", true)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, model.ConditionMatchModeAny, rules[0].ConditionMatchMode)
	require.Len(t, rules[0].Conditions, 2)
	assert.Equal(t, model.OperatorContains, rules[0].Conditions[1].Operator)
	assert.Equal(t, "Receipt", rules[0].Conditions[1].Value)
	assert.Equal(t, []model.TaggingRuleAction{{ID: "act_1", TaggingRuleID: "rule_1", TagID: "tag_1"}}, rules[0].Actions)

	assert.Equal(t, model.ConditionMatchMode(""), rules[1].ConditionMatchMode)
	assert.Empty(t, rules[1].Conditions)
	assert.Len(t, rules[1].Actions, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaggingRulePostgres_GetByID(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewTaggingRulePostgres(db)

	mock.ExpectQuery("SELECT (.+) FROM tagging_rules WHERE organization_id = \\$1 AND id = \\$2").
		WithArgs("org_1", "rule_9").
		WillReturnError(sql.ErrNoRows)

	rule, err := repo.GetByID(ctx, "org_1", "rule_9")
	assert.Nil(t, rule)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagPostgres_AddTagToDocument(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewTagPostgres(db)

	mock.ExpectExec("INSERT INTO documents_tags (.+) ON CONFLICT").
		WithArgs("doc_1", "tag_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO documents_tags (.+) ON CONFLICT").
		WithArgs("doc_1", "tag_1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM documents_tags WHERE document_id = \\$1").
		WithArgs("doc_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	added, err := repo.AddTagToDocument(ctx, "doc_1", "tag_1")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddTagToDocument(ctx, "doc_1", "tag_1")
	require.NoError(t, err)
	assert.False(t, added)
	require.NoError(t, repo.RemoveAllTagsFromDocument(ctx, "doc_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityPostgres_Create(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewActivityPostgres(db)
	tagID := "tag_1"
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO document_activity_log").
		WithArgs("act_1", "doc_1", "tagged", nil, nil, tagID, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(ctx, &model.DocumentActivity{
		ID:         "act_1",
		DocumentID: "doc_1",
		Event:      model.ActivityTagged,
		TagID:      &tagID,
		CreatedAt:  now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
