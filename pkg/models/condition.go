// Package models provides the compiled condition grammar used by branching nodes.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ConditionOperator enumerates the explicitly-scoped comparison grammar.
// This is deliberately not a scripting language: field extraction plus a
// single comparison, compiled once per node configuration.
type ConditionOperator string

const (
	OpEquals    ConditionOperator = "eq"
	OpNotEquals ConditionOperator = "ne"
	OpGreater   ConditionOperator = "gt"
	OpGreaterEq ConditionOperator = "gte"
	OpLess      ConditionOperator = "lt"
	OpLessEq    ConditionOperator = "lte"
	OpIn        ConditionOperator = "in"
	OpContains  ConditionOperator = "contains"
	OpExists    ConditionOperator = "exists"
)

var validOperators = map[ConditionOperator]bool{
	OpEquals: true, OpNotEquals: true,
	OpGreater: true, OpGreaterEq: true, OpLess: true, OpLessEq: true,
	OpIn: true, OpContains: true, OpExists: true,
}

var (
	ErrUnknownOperator = errors.New("unknown condition operator")
	ErrMissingField    = errors.New("condition requires a field")
)

// Condition is a compiled comparison over a dotted field path.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}

// CompileCondition builds a Condition from node configuration.
func CompileCondition(config map[string]any) (*Condition, error) {
	field, _ := config["field"].(string)
	if field == "" {
		return nil, ErrMissingField
	}

	operator := OpEquals
	if op, ok := config["operator"].(string); ok && op != "" {
		operator = ConditionOperator(op)
	}

	if !validOperators[operator] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, operator)
	}

	return &Condition{
		Field:    field,
		Operator: operator,
		Value:    config["value"],
	}, nil
}

// Evaluate applies the condition against nested key-value data.
func (c *Condition) Evaluate(data map[string]any) (bool, error) {
	actual, found := LookupField(data, c.Field)

	if c.Operator == OpExists {
		return found, nil
	}

	if !found {
		return false, nil
	}

	switch c.Operator {
	case OpEquals:
		return looseEquals(actual, c.Value), nil
	case OpNotEquals:
		return !looseEquals(actual, c.Value), nil
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		return c.compareNumeric(actual)
	case OpIn:
		return membership(c.Value, actual), nil
	case OpContains:
		return membership(actual, c.Value), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
	}
}

func (c *Condition) compareNumeric(actual any) (bool, error) {
	left, ok := toFloat(actual)
	if !ok {
		return false, fmt.Errorf("field %q value %v is not numeric", c.Field, actual)
	}

	right, ok := toFloat(c.Value)
	if !ok {
		return false, fmt.Errorf("condition value %v is not numeric", c.Value)
	}

	switch c.Operator {
	case OpGreater:
		return left > right, nil
	case OpGreaterEq:
		return left >= right, nil
	case OpLess:
		return left < right, nil
	default:
		return left <= right, nil
	}
}

// LookupField resolves a dotted path ("body.status") in nested maps.
func LookupField(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")

	var current any = data

	for _, part := range parts {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// looseEquals compares scalars across JSON-decoded representations, so
// 1 == 1.0 and "open" == "open" regardless of source typing.
func looseEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}

	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// membership reports whether needle appears in haystack, where haystack may
// be a slice or a string.
func membership(haystack, needle any) bool {
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if looseEquals(item, needle) {
				return true
			}
		}

		return false
	case []string:
		for _, item := range h {
			if looseEquals(item, needle) {
				return true
			}
		}

		return false
	case string:
		return strings.Contains(h, fmt.Sprintf("%v", needle))
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}
