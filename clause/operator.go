package clause

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOperator is returned when text does not name a supported operator.
var ErrUnknownOperator = errors.New("trove: unknown operator")

// Operator is a comparison applied by a predicate.
type Operator string

const (
	OpEqual              Operator = "=="
	OpNotEqual           Operator = "!="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not-in"
	OpArrayContains      Operator = "array-contains"
	OpArrayContainsAny   Operator = "array-contains-any"
)

var operators = []Operator{
	OpEqual, OpNotEqual,
	OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual,
	OpIn, OpNotIn,
	OpArrayContains, OpArrayContainsAny,
}

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	for _, known := range operators {
		if op == known {
			return true
		}
	}
	return false
}

// TakesList reports whether the operator's value is a list of candidates.
func (op Operator) TakesList() bool {
	return op == OpIn || op == OpNotIn || op == OpArrayContainsAny
}

func (op Operator) String() string { return string(op) }

// ParseOperator resolves the textual form of an operator. "=" is accepted as
// an alias of "==".
func ParseOperator(s string) (Operator, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "=" {
		return OpEqual, nil
	}
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
	return op, nil
}

// Equal matches values equal to v.
func Equal(v any) Condition { return Condition{Operator: OpEqual, Value: v} }

// NotEqual matches values different from v.
func NotEqual(v any) Condition { return Condition{Operator: OpNotEqual, Value: v} }

// LessThan matches values strictly below v.
func LessThan(v any) Condition { return Condition{Operator: OpLessThan, Value: v} }

// LessThanOrEqual matches values at or below v.
func LessThanOrEqual(v any) Condition { return Condition{Operator: OpLessThanOrEqual, Value: v} }

// GreaterThan matches values strictly above v.
func GreaterThan(v any) Condition { return Condition{Operator: OpGreaterThan, Value: v} }

// GreaterThanOrEqual matches values at or above v.
func GreaterThanOrEqual(v any) Condition { return Condition{Operator: OpGreaterThanOrEqual, Value: v} }

// In matches values equal to one of values.
func In(values ...any) Condition { return Condition{Operator: OpIn, Value: values} }

// NotIn matches values equal to none of values.
func NotIn(values ...any) Condition { return Condition{Operator: OpNotIn, Value: values} }

// ArrayContains matches arrays holding v.
func ArrayContains(v any) Condition { return Condition{Operator: OpArrayContains, Value: v} }

// ArrayContainsAny matches arrays holding at least one of values.
func ArrayContainsAny(values ...any) Condition {
	return Condition{Operator: OpArrayContainsAny, Value: values}
}
