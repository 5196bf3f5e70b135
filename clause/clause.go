// Package clause compiles nested filter descriptions into flat, store-ready
// predicates.
//
// A [Filter] is an ordered list of fields. Each field carries exactly one
// entry: a [Literal] matched by equality, a [Condition] with an explicit
// operator, or a [Nested] filter over a sub-object. [Compile] flattens the
// tree depth-first into [Predicate] values whose paths join field names with
// a dot:
//
//	f := clause.Filter{
//		clause.Nest("x",
//			clause.Nest("y", clause.Where("z", clause.GreaterThan(1))),
//			clause.Where("a", clause.In(1, 2)),
//		),
//	}
//	clause.Compile(f) // [{x.y.z > 1} {x.a in [1 2]}]
package clause

import "github.com/jacentio/trove/document"

// Separator joins the names of nested fields into a predicate path.
const Separator = "."

// Entry is the value side of a filter field: Literal, Condition or Nested.
type Entry interface {
	entry()
}

// Literal matches a field by equality.
type Literal struct {
	Value any
}

// Condition matches a field with an explicit operator.
type Condition struct {
	Operator Operator
	Value    any
}

// Nested applies a filter to the fields of a sub-object.
type Nested struct {
	Filter Filter
}

func (Literal) entry()   {}
func (Condition) entry() {}
func (Nested) entry()    {}

// Field is one named entry of a filter.
type Field struct {
	Name  string
	Entry Entry
}

// Filter is an ordered conjunction of fields.
type Filter []Field

// Match builds a field matched by equality with value.
func Match(name string, value any) Field {
	return Field{Name: name, Entry: Literal{Value: value}}
}

// Where builds a field matched by cond.
func Where(name string, cond Condition) Field {
	return Field{Name: name, Entry: cond}
}

// Nest builds a field whose sub-object must match fields.
func Nest(name string, fields ...Field) Field {
	return Field{Name: name, Entry: Nested{Filter: fields}}
}

// Predicate is one flattened filter term.
type Predicate struct {
	Path     string
	Operator Operator
	Value    any
}

// Compile flattens f into predicates, depth-first and in field order.
// Entries whose value is document.Absent, and fields without an entry,
// produce nothing. A nested field only contributes its children's
// predicates. The result is never nil.
func Compile(f Filter) []Predicate {
	preds := []Predicate{}
	for _, field := range f {
		switch e := field.Entry.(type) {
		case Literal:
			if document.IsAbsent(e.Value) {
				continue
			}
			preds = append(preds, Predicate{Path: field.Name, Operator: OpEqual, Value: e.Value})
		case Condition:
			if document.IsAbsent(e.Value) {
				continue
			}
			preds = append(preds, Predicate{Path: field.Name, Operator: e.Operator, Value: e.Value})
		case Nested:
			for _, sub := range Compile(e.Filter) {
				sub.Path = field.Name + Separator + sub.Path
				preds = append(preds, sub)
			}
		}
	}
	return preds
}
