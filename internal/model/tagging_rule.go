package model

import "time"

// ConditionMatchMode controls how a rule combines its conditions.
type ConditionMatchMode string

const (
	ConditionMatchModeAll ConditionMatchMode = "all"
	ConditionMatchModeAny ConditionMatchMode = "any"
)

// ConditionField names a document field a condition can read.
type ConditionField string

const (
	ConditionFieldName    ConditionField = "name"
	ConditionFieldContent ConditionField = "content"
)

// ConditionOperator names a string predicate.
type ConditionOperator string

const (
	OperatorEqual       ConditionOperator = "equal"
	OperatorNotEqual    ConditionOperator = "not_equal"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorStartsWith  ConditionOperator = "starts_with"
	OperatorEndsWith    ConditionOperator = "ends_with"
)

// TaggingRule applies its actions' tags to documents whose fields match its conditions.
// A rule with no conditions matches every document.
type TaggingRule struct {
	ID                 string                 `json:"id"`
	OrganizationID     string                 `json:"organizationId"`
	Name               string                 `json:"name"`
	Description        *string                `json:"description"`
	Enabled            bool                   `json:"enabled"`
	ConditionMatchMode ConditionMatchMode     `json:"conditionMatchMode"`
	Conditions         []TaggingRuleCondition `json:"conditions"`
	Actions            []TaggingRuleAction    `json:"actions"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

// TaggingRuleCondition is one field/operator/value predicate.
type TaggingRuleCondition struct {
	ID              string            `json:"id"`
	TaggingRuleID   string            `json:"taggingRuleId"`
	Field           ConditionField    `json:"field"`
	Operator        ConditionOperator `json:"operator"`
	Value           string            `json:"value"`
	IsCaseSensitive bool              `json:"isCaseSensitive"`
}

// TaggingRuleAction names the tag applied when the rule matches.
type TaggingRuleAction struct {
	ID            string `json:"id"`
	TaggingRuleID string `json:"taggingRuleId"`
	TagID         string `json:"tagId"`
}
