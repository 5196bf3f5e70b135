package clause

import (
	"fmt"
	"sort"

	"github.com/jacentio/trove/document"
)

// Reserved keys of a condition written as a map.
const (
	OperatorKey = "operator"
	ValueKey    = "value"
)

// Parse builds a filter from a dynamically typed map, such as decoded JSON.
//
// Keys are visited in sorted order. A record value whose keys are all reserved
// and that names an operator becomes a Condition; a condition without a value
// is kept with an Absent value and compiles to nothing. Any other record
// becomes a Nested filter, even if it also holds a reserved key. That includes
// a record holding only "value" with no "operator": {"x": {"value": 5}} is
// Nested and compiles to x.value == 5, not to x == 5. All other values become
// Literals.
func Parse(m map[string]any) Filter {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := make(Filter, 0, len(keys))
	for _, key := range keys {
		entry := m[key]
		rec, ok := document.AsRecord(entry)
		if !ok {
			f = append(f, Match(key, entry))
			continue
		}
		if cond, ok := asCondition(rec); ok {
			f = append(f, Where(key, cond))
			continue
		}
		f = append(f, Field{Name: key, Entry: Nested{Filter: Parse(rec)}})
	}
	return f
}

func asCondition(rec document.Fields) (Condition, bool) {
	op, hasOp := rec[OperatorKey]
	if !hasOp {
		return Condition{}, false
	}
	for k := range rec {
		if k != OperatorKey && k != ValueKey {
			return Condition{}, false
		}
	}

	cond := Condition{Value: document.Absent}
	switch o := op.(type) {
	case Operator:
		cond.Operator = o
	case string:
		cond.Operator = Operator(o)
	default:
		cond.Operator = Operator(fmt.Sprint(o))
	}
	if v, ok := rec[ValueKey]; ok {
		cond.Value = v
	}
	return cond, true
}
