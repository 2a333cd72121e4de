package tagging

import (
	"fmt"
	"strings"

	"docvault/internal/model"
)

// Predicate reports whether a field value satisfies a condition value. Both arguments are
// already case-folded when the condition is case insensitive.
type Predicate func(fieldValue, conditionValue string) bool

// OperatorRegistry maps condition operators to their predicates.
type OperatorRegistry map[model.ConditionOperator]Predicate

// NewOperatorRegistry returns the built-in string operators.
func NewOperatorRegistry() OperatorRegistry {
	return OperatorRegistry{
		model.OperatorEqual:       func(v, c string) bool { return v == c },
		model.OperatorNotEqual:    func(v, c string) bool { return v != c },
		model.OperatorContains:    strings.Contains,
		model.OperatorNotContains: func(v, c string) bool { return !strings.Contains(v, c) },
		model.OperatorStartsWith:  strings.HasPrefix,
		model.OperatorEndsWith:    strings.HasSuffix,
	}
}

// Evaluate applies op to value and expected.
func (r OperatorRegistry) Evaluate(op model.ConditionOperator, value, expected string, caseSensitive bool) (bool, error) {
	pred, ok := r[op]
	if !ok {
		return false, fmt.Errorf("unknown condition operator %q", op)
	}
	if !caseSensitive {
		value, expected = strings.ToLower(value), strings.ToLower(expected)
	}
	return pred(value, expected), nil
}

// FieldValue reads the named document field as a string.
func FieldValue(doc *model.Document, field model.ConditionField) (string, error) {
	switch field {
	case model.ConditionFieldName:
		return doc.Name, nil
	case model.ConditionFieldContent:
		return doc.Content, nil
	default:
		return "", fmt.Errorf("unknown condition field %q", field)
	}
}
