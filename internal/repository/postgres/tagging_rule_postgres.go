package postgres

import (
	"context"
	"database/sql"
	"errors"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// TaggingRulePostgres loads tagging rules with their conditions and actions.
type TaggingRulePostgres struct {
	db *sql.DB
}

func NewTaggingRulePostgres(db *sql.DB) *TaggingRulePostgres {
	return &TaggingRulePostgres{db: db}
}

var _ repository.TaggingRuleRepository = (*TaggingRulePostgres)(nil)

const taggingRuleColumns = `id, organization_id, name, description, enabled, condition_match_mode, created_at, updated_at`

func scanTaggingRule(row rowScanner) (*model.TaggingRule, error) {
	var (
		rule model.TaggingRule
		mode sql.NullString
	)
	if err := row.Scan(
		&rule.ID,
		&rule.OrganizationID,
		&rule.Name,
		&rule.Description,
		&rule.Enabled,
		&mode,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	rule.ConditionMatchMode = model.ConditionMatchMode(mode.String)
	rule.Conditions = []model.TaggingRuleCondition{}
	rule.Actions = []model.TaggingRuleAction{}
	return &rule, nil
}

// ListByOrganization returns the organization's rules, optionally only the enabled ones.
func (r *TaggingRulePostgres) ListByOrganization(ctx context.Context, organizationID string, enabledOnly bool) ([]model.TaggingRule, error) {
	q := `SELECT ` + taggingRuleColumns + ` FROM tagging_rules
		WHERE organization_id = $1 AND (enabled OR NOT $2)
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, organizationID, enabledOnly)
	if err != nil {
		return nil, err
	}

	rules := make([]model.TaggingRule, 0)
	func() {
		defer rows.Close()
		for rows.Next() {
			var rule *model.TaggingRule
			if rule, err = scanTaggingRule(rows); err != nil {
				return
			}
			rules = append(rules, *rule)
		}
		err = rows.Err()
	}()
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return rules, nil
	}

	index := make(map[string]int, len(rules))
	for i := range rules {
		index[rules[i].ID] = i
	}
	if err := r.loadChildren(ctx, organizationID, "", func(ruleID string) *model.TaggingRule {
		if i, ok := index[ruleID]; ok {
			return &rules[i]
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return rules, nil
}

// GetByID returns one rule of the organization.
func (r *TaggingRulePostgres) GetByID(ctx context.Context, organizationID, id string) (*model.TaggingRule, error) {
	q := `SELECT ` + taggingRuleColumns + ` FROM tagging_rules WHERE organization_id = $1 AND id = $2`
	rule, err := scanTaggingRule(r.db.QueryRowContext(ctx, q, organizationID, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, organizationID, id, func(string) *model.TaggingRule { return rule }); err != nil {
		return nil, err
	}
	return rule, nil
}

// loadChildren attaches conditions and actions. An empty ruleID loads them for every rule of
// the organization.
func (r *TaggingRulePostgres) loadChildren(ctx context.Context, organizationID, ruleID string, target func(ruleID string) *model.TaggingRule) error {
	const qConditions = `
		SELECT c.id, c.tagging_rule_id, c.field, c.operator, c.value, c.is_case_sensitive
		FROM tagging_rule_conditions c
		JOIN tagging_rules r ON r.id = c.tagging_rule_id
		WHERE r.organization_id = $1 AND ($2 = '' OR r.id = $2)
		ORDER BY c.created_at, c.id
	`
	rows, err := r.db.QueryContext(ctx, qConditions, organizationID, ruleID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var c model.TaggingRuleCondition
		if err := rows.Scan(&c.ID, &c.TaggingRuleID, &c.Field, &c.Operator, &c.Value, &c.IsCaseSensitive); err != nil {
			rows.Close()
			return err
		}
		if rule := target(c.TaggingRuleID); rule != nil {
			rule.Conditions = append(rule.Conditions, c)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	const qActions = `
		SELECT a.id, a.tagging_rule_id, a.tag_id
		FROM tagging_rule_actions a
		JOIN tagging_rules r ON r.id = a.tagging_rule_id
		WHERE r.organization_id = $1 AND ($2 = '' OR r.id = $2)
		ORDER BY a.created_at, a.id
	`
	rows, err = r.db.QueryContext(ctx, qActions, organizationID, ruleID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a model.TaggingRuleAction
		if err := rows.Scan(&a.ID, &a.TaggingRuleID, &a.TagID); err != nil {
			return err
		}
		if rule := target(a.TaggingRuleID); rule != nil {
			rule.Actions = append(rule.Actions, a)
		}
	}
	return rows.Err()
}
