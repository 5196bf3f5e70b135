package memory

import (
	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/internal/value"
)

// Matches reports whether data satisfies p. A missing field never matches;
// != and not-in also reject explicit nulls, and range operators only match
// values of the same kind as the operand.
func Matches(data document.Fields, p clause.Predicate) bool {
	got, ok := value.Lookup(data, p.Path)
	if !ok {
		return false
	}

	switch p.Operator {
	case clause.OpEqual:
		return value.Equal(got, p.Value)
	case clause.OpNotEqual:
		return got != nil && !value.Equal(got, p.Value)
	case clause.OpLessThan, clause.OpLessThanOrEqual, clause.OpGreaterThan, clause.OpGreaterThanOrEqual:
		if !value.Comparable(got, p.Value) {
			return false
		}
		c := value.Compare(got, p.Value)
		switch p.Operator {
		case clause.OpLessThan:
			return c < 0
		case clause.OpLessThanOrEqual:
			return c <= 0
		case clause.OpGreaterThan:
			return c > 0
		default:
			return c >= 0
		}
	case clause.OpIn:
		return containsEqual(candidates(p.Value), got)
	case clause.OpNotIn:
		return got != nil && !containsEqual(candidates(p.Value), got)
	case clause.OpArrayContains:
		items, ok := value.Elements(got)
		return ok && containsEqual(items, p.Value)
	case clause.OpArrayContainsAny:
		items, ok := value.Elements(got)
		if !ok {
			return false
		}
		for _, want := range candidates(p.Value) {
			if containsEqual(items, want) {
				return true
			}
		}
	}
	return false
}

func candidates(v any) []any {
	items, _ := value.Elements(v)
	return items
}

func containsEqual(items []any, want any) bool {
	for _, item := range items {
		if value.Equal(item, want) {
			return true
		}
	}
	return false
}
