package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/internal/value"
	"github.com/jacentio/trove/store"
)

// maxInOperands is the DynamoDB limit on operands of an IN comparison.
const maxInOperands = 100

// expression accumulates a condition expression and its placeholders.
// Attribute names are deduplicated; values are not.
type expression struct {
	names   map[string]string
	values  map[string]types.AttributeValue
	byName  map[string]string
	clauses []string
}

func newExpression() *expression {
	return &expression{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
		byName: map[string]string{},
	}
}

// name returns the placeholder of an attribute name.
func (e *expression) name(attr string) string {
	if key, ok := e.byName[attr]; ok {
		return key
	}
	key := fmt.Sprintf("#p%d", len(e.byName))
	e.byName[attr] = key
	e.names[key] = attr
	return key
}

// path returns the document path of a dotted field path.
func (e *expression) path(p string) string {
	segments := strings.Split(p, clause.Separator)
	for i, seg := range segments {
		segments[i] = e.name(seg)
	}
	return joinStrings(segments, ".")
}

func (e *expression) value(v any) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: marshal %T: %v", store.ErrInvalidPredicate, v, err)
	}
	key := fmt.Sprintf(":v%d", len(e.values))
	e.values[key] = av
	return key, nil
}

// typeOf returns the placeholder of a DynamoDB type descriptor such as "L".
func (e *expression) typeOf(t string) string {
	key := ":t" + t
	e.values[key] = &types.AttributeValueMemberS{Value: t}
	return key
}

func (e *expression) add(cond string) {
	e.clauses = append(e.clauses, cond)
}

func (e *expression) empty() bool {
	return len(e.clauses) == 0
}

func (e *expression) String() string {
	return joinStrings(e.clauses, " AND ")
}

// buildFilter translates conjunctive predicates, plus the presence of the
// ordering field, into a filter expression.
func buildFilter(preds []clause.Predicate, order *clause.Order) (*expression, error) {
	e := newExpression()
	for _, p := range preds {
		if err := store.ValidatePredicate(p); err != nil {
			return nil, err
		}
		cond, err := e.condition(p)
		if err != nil {
			return nil, err
		}
		e.add(cond)
	}
	if order != nil {
		e.add(fmt.Sprintf("attribute_exists(%s)", e.path(order.Path)))
	}
	return e, nil
}

func (e *expression) condition(p clause.Predicate) (string, error) {
	path := e.path(p.Path)

	switch p.Operator {
	case clause.OpEqual:
		if p.Value == nil {
			return fmt.Sprintf("attribute_type(%s, %s)", path, e.typeOf("NULL")), nil
		}
		return e.compare(path, "=", p.Value)

	case clause.OpNotEqual:
		cmp, err := e.compare(path, "<>", p.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s)", e.present(path), cmp), nil

	case clause.OpLessThan:
		return e.compare(path, "<", p.Value)
	case clause.OpLessThanOrEqual:
		return e.compare(path, "<=", p.Value)
	case clause.OpGreaterThan:
		return e.compare(path, ">", p.Value)
	case clause.OpGreaterThanOrEqual:
		return e.compare(path, ">=", p.Value)

	case clause.OpIn:
		return e.in(path, p.Value)

	case clause.OpNotIn:
		in, err := e.in(path, p.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND NOT %s)", e.present(path), in), nil

	case clause.OpArrayContains:
		v, err := e.value(p.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(attribute_type(%s, %s) AND contains(%s, %s))", path, e.typeOf("L"), path, v), nil

	case clause.OpArrayContainsAny:
		items, _ := value.Elements(p.Value)
		var ors []string
		for _, item := range items {
			v, err := e.value(item)
			if err != nil {
				return "", err
			}
			ors = append(ors, fmt.Sprintf("contains(%s, %s)", path, v))
		}
		return fmt.Sprintf("(attribute_type(%s, %s) AND (%s))", path, e.typeOf("L"), joinStrings(ors, " OR ")), nil
	}
	return "", fmt.Errorf("%w: operator %q", store.ErrInvalidPredicate, p.Operator)
}

func (e *expression) compare(path, op string, v any) (string, error) {
	placeholder, err := e.value(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", path, op, placeholder), nil
}

// present matches attributes that exist and are not null.
func (e *expression) present(path string) string {
	return fmt.Sprintf("attribute_exists(%s) AND NOT attribute_type(%s, %s)", path, path, e.typeOf("NULL"))
}

func (e *expression) in(path string, list any) (string, error) {
	items, _ := value.Elements(list)
	if len(items) > maxInOperands {
		return "", fmt.Errorf("%w: %d operands exceed the IN limit of %d", store.ErrInvalidPredicate, len(items), maxInOperands)
	}
	operands := make([]string, 0, len(items))
	for _, item := range items {
		v, err := e.value(item)
		if err != nil {
			return "", err
		}
		operands = append(operands, v)
	}
	return fmt.Sprintf("(%s IN (%s))", path, joinStrings(operands, ", ")), nil
}

// joinStrings joins strings with a separator.
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}
