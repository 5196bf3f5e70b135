// Package document defines the record type exchanged with document stores and
// the sanitizer applied to every record before it is written.
//
// A record is a [Fields] value: string keys mapped to arbitrary values, where a
// value that is itself a record describes a nested object. The [Absent] marker
// stands for "no value provided" and is distinct from nil, which is an explicit
// null that stores persist.
package document

import (
	"errors"
	"fmt"
	"reflect"
)

// TagName is the struct tag consulted when a struct is converted into a record.
const TagName = "doc"

// ErrInvalidInputKind is returned when a value that must be a structured record
// is a sequence, nil, the Absent marker, or a scalar.
var ErrInvalidInputKind = errors.New("trove: value is not a structured record")

// Fields is a structured record.
type Fields map[string]any

type absentMarker struct{}

func (absentMarker) String() string { return "<absent>" }

// Absent marks a field as not provided. Sanitize drops fields holding it and
// filters skip entries holding it.
var Absent = absentMarker{}

// IsAbsent reports whether v is the Absent marker.
func IsAbsent(v any) bool {
	_, ok := v.(absentMarker)
	return ok
}

// Record converts v into a record without sanitizing it.
//
// Maps with string keys are copied. Structs and pointers to structs are encoded
// field by field using the "doc" tag, the same tag repositories decode with:
// fields tagged omitempty are left out when zero, "-" skips a field, squash
// lifts an embedded struct or non-nil struct pointer into the parent, and
// nested structs become nested records. Structs held anywhere inside a map
// body, including in lists and nested maps, are encoded the same way.
// time.Time values are kept as is. Anything else fails with
// ErrInvalidInputKind.
func Record(v any) (Fields, error) {
	if IsAbsent(v) {
		return nil, invalidKind(v)
	}
	if rec, ok := AsRecord(v); ok {
		for k, item := range rec {
			rec[k] = encodeAny(item)
		}
		return rec, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, invalidKind(v)
	}

	return encodeStruct(rv), nil
}

// AsRecord returns v as Fields when it is a non-nil map with string keys.
// The returned record shares values with v but not the map itself.
func AsRecord(v any) (Fields, bool) {
	switch m := v.(type) {
	case nil:
		return nil, false
	case Fields:
		if m == nil {
			return nil, false
		}
		return copyTop(m), true
	case map[string]any:
		if m == nil {
			return nil, false
		}
		return copyTop(m), true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return nil, false
	}
	out := make(Fields, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func copyTop(m map[string]any) Fields {
	out := make(Fields, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func invalidKind(v any) error {
	switch {
	case v == nil:
		return fmt.Errorf("%w: got nil", ErrInvalidInputKind)
	case IsAbsent(v):
		return fmt.Errorf("%w: got absent value", ErrInvalidInputKind)
	default:
		return fmt.Errorf("%w: got %s", ErrInvalidInputKind, reflect.TypeOf(v).Kind())
	}
}
