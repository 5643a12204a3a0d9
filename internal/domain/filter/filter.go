package filter

import (
	"fmt"
	"sort"
)

// MaxConditions is the maximum number of conditions per filter expression.
const MaxConditions = 32

// Expression is an equality-only metadata filter. All conditions are combined
// with logical AND; ranges and negation are not supported.
type Expression struct {
	conds []Condition
}

// New validates and creates a filter Expression.
func New(conds ...Condition) (Expression, error) {
	if len(conds) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	return Expression{conds: conds}, nil
}

// FromMap builds an Expression from a field→value mapping, as received in a
// query request. String values become tag matches, numeric values become
// numeric equality; anything else is rejected. Conditions are ordered by key
// so the resulting expression is deterministic.
func FromMap(m map[string]any) (Expression, error) {
	if len(m) == 0 {
		return Expression{}, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]Condition, 0, len(keys))
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			cond, err := NewMatch(k, v)
			if err != nil {
				return Expression{}, err
			}
			conds = append(conds, cond)
		case float64:
			cond, err := NewNumeric(k, v)
			if err != nil {
				return Expression{}, err
			}
			conds = append(conds, cond)
		default:
			return Expression{}, fmt.Errorf("filter value for %q must be a string or number", k)
		}
	}

	return New(conds...)
}

// Conditions returns the conditions in deterministic order.
func (e Expression) Conditions() []Condition { return e.conds }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conds) == 0 }

// Condition is a single equality clause: either a tag match or a numeric equality.
type Condition struct {
	key   string
	match string
	num   *float64
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewNumeric creates a numeric equality condition.
func NewNumeric(key string, v float64) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, num: &v}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Numeric returns the numeric equality value.
func (c Condition) Numeric() *float64 { return c.num }

// IsMatch reports whether this is a tag match condition.
func (c Condition) IsMatch() bool { return c.match != "" }
