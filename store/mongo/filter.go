package mongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/internal/value"
	"github.com/jacentio/trove/store"
)

// idField is the MongoDB primary key field holding the document id.
const idField = "_id"

// buildFilter translates conjunctive predicates, plus the presence of the
// ordering field, into a query document. Dotted paths are native MongoDB
// paths.
func buildFilter(preds []clause.Predicate, order *clause.Order) (bson.D, error) {
	var conds bson.A
	for _, p := range preds {
		if err := store.ValidatePredicate(p); err != nil {
			return nil, err
		}
		cond, err := condition(p)
		if err != nil {
			return nil, err
		}
		conds = append(conds, bson.D{{Key: p.Path, Value: cond}})
	}
	if order != nil {
		conds = append(conds, bson.D{{Key: order.Path, Value: bson.D{{Key: "$exists", Value: true}}}})
	}

	switch len(conds) {
	case 0:
		return bson.D{}, nil
	case 1:
		return conds[0].(bson.D), nil
	}
	return bson.D{{Key: "$and", Value: conds}}, nil
}

func condition(p clause.Predicate) (bson.D, error) {
	exists := bson.E{Key: "$exists", Value: true}

	switch p.Operator {
	case clause.OpEqual:
		if isArray(p.Value) {
			return bson.D{exists, {Key: "$eq", Value: p.Value}}, nil
		}
		return bson.D{exists, {Key: "$eq", Value: p.Value}, notArray}, nil
	case clause.OpNotEqual:
		return bson.D{exists, {Key: "$nin", Value: bson.A{p.Value, nil}}}, nil
	case clause.OpLessThan:
		return bson.D{{Key: "$lt", Value: p.Value}}, nil
	case clause.OpLessThanOrEqual:
		return bson.D{{Key: "$lte", Value: p.Value}}, nil
	case clause.OpGreaterThan:
		return bson.D{{Key: "$gt", Value: p.Value}}, nil
	case clause.OpGreaterThanOrEqual:
		return bson.D{{Key: "$gte", Value: p.Value}}, nil
	case clause.OpIn:
		items := list(p.Value)
		for _, item := range items {
			if isArray(item) {
				return bson.D{{Key: "$in", Value: items}}, nil
			}
		}
		return bson.D{{Key: "$in", Value: items}, notArray}, nil
	case clause.OpNotIn:
		return bson.D{exists, {Key: "$nin", Value: append(list(p.Value), nil)}}, nil
	case clause.OpArrayContains:
		return bson.D{{Key: "$elemMatch", Value: bson.D{{Key: "$eq", Value: p.Value}}}}, nil
	case clause.OpArrayContainsAny:
		return bson.D{{Key: "$elemMatch", Value: bson.D{{Key: "$in", Value: list(p.Value)}}}}, nil
	}
	return nil, fmt.Errorf("%w: operator %q", store.ErrInvalidPredicate, p.Operator)
}

// notArray stops $eq and $in from matching a single element of an array
// field, which the other backends treat as a distinct value.
var notArray = bson.E{Key: "$not", Value: bson.D{{Key: "$type", Value: "array"}}}

func isArray(v any) bool {
	_, ok := value.Elements(v)
	return ok
}

func list(v any) bson.A {
	items, _ := value.Elements(v)
	return bson.A(items)
}

// findOptions sorts by the ordering field, then by id, and applies the limit.
func findOptions(order *clause.Order, limit int) *options.FindOptions {
	sort := bson.D{}
	if order != nil {
		dir := 1
		if order.Direction == clause.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: order.Path, Value: dir})
	}
	sort = append(sort, bson.E{Key: idField, Value: 1})

	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

// fromBSON converts a decoded document into a snapshot, moving _id out of
// the data.
func fromBSON(raw bson.M) store.Snapshot {
	snap := store.Snapshot{Exists: true, Data: document.Fields{}}
	for k, v := range raw {
		if k == idField {
			snap.ID = idString(v)
			continue
		}
		snap.Data[k] = fromValue(v)
	}
	return snap
}

func fromValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(document.Fields, len(t))
		for k, item := range t {
			out[k] = fromValue(item)
		}
		return out
	case bson.D:
		out := make(document.Fields, len(t))
		for _, e := range t {
			out[e.Key] = fromValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromValue(item)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Binary:
		return t.Data
	case int32:
		return int64(t)
	}
	return v
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case primitive.ObjectID:
		return t.Hex()
	}
	return fmt.Sprint(v)
}
