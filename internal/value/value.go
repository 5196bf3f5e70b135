// Package value implements path lookup, equality and ordering over decoded
// document values, for backends that evaluate predicates or sort in process.
package value

import (
	"bytes"
	"reflect"
	"strings"
	"time"
)

// Lookup resolves a dot-separated path inside a record. It reports false when
// any segment is missing or crosses a non-record value.
func Lookup(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Elements returns the items of a slice or array. Byte slices are leaves.
func Elements(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Class ranks values of different kinds against each other, lowest first.
type Class int

const (
	ClassNull Class = iota
	ClassBool
	ClassNumber
	ClassTime
	ClassString
	ClassBytes
	ClassArray
	ClassMap
	ClassOther
)

// ClassOf returns the ordering class of v.
func ClassOf(v any) Class {
	if v == nil {
		return ClassNull
	}
	switch v.(type) {
	case bool:
		return ClassBool
	case time.Time:
		return ClassTime
	case string:
		return ClassString
	case []byte:
		return ClassBytes
	}
	if _, ok := number(v); ok {
		return ClassNumber
	}
	if _, ok := Elements(v); ok {
		return ClassArray
	}
	if _, ok := asMap(v); ok {
		return ClassMap
	}
	return ClassOther
}

// Comparable reports whether a and b can be ordered against each other with
// range operators.
func Comparable(a, b any) bool {
	ca, cb := ClassOf(a), ClassOf(b)
	return ca == cb && ca != ClassOther && ca != ClassMap
}

// Compare orders a against b: values of different classes order by class,
// values of the same class by their natural order. Records compare equal.
func Compare(a, b any) int {
	ca, cb := ClassOf(a), ClassOf(b)
	if ca != cb {
		return cmpInt(int(ca), int(cb))
	}
	switch ca {
	case ClassBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case ClassNumber:
		an, _ := number(a)
		bn, _ := number(b)
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case ClassTime:
		return a.(time.Time).Compare(b.(time.Time))
	case ClassString:
		return strings.Compare(a.(string), b.(string))
	case ClassBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	case ClassArray:
		ae, _ := Elements(a)
		be, _ := Elements(b)
		for i := 0; i < len(ae) && i < len(be); i++ {
			if c := Compare(ae[i], be[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(ae), len(be))
	}
	return 0
}

// Equal reports whether a and b hold the same value, treating every numeric
// type as a float64 and every record or list type alike.
func Equal(a, b any) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// Normalize converts numbers to float64, lists to []any and records to
// map[string]any, recursively.
func Normalize(v any) any {
	if n, ok := number(v); ok {
		return n
	}
	switch v.(type) {
	case nil, bool, string, []byte, time.Time:
		return v
	}
	if items, ok := Elements(v); ok {
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = Normalize(item)
		}
		return out
	}
	if m, ok := asMap(v); ok {
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = Normalize(item)
		}
		return out
	}
	return v
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, m != nil
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
