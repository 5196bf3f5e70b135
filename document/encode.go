package document

import (
	"reflect"
	"strings"
	"time"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	absentType = reflect.TypeOf(Absent)
)

// encodeStruct converts a struct value into a record.
func encodeStruct(rv reflect.Value) Fields {
	out := Fields{}
	encodeFields(rv, out)
	return out
}

func encodeFields(rv reflect.Value, out Fields) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, opts := parseTag(sf)
		if name == "-" {
			continue
		}

		fv := rv.Field(i)
		if opts.squash || (sf.Anonymous && sf.Tag.Get(TagName) == "") {
			if inner, ok := squashable(fv); ok {
				if inner.IsValid() {
					encodeFields(inner, out)
				}
				continue
			}
		}
		if opts.omitempty && fv.IsZero() {
			continue
		}
		out[name] = encodeValue(fv)
	}
}

// squashable reports whether fv is a struct, or a pointer to one, whose fields
// can be lifted into the parent record. A nil pointer yields the zero Value.
func squashable(fv reflect.Value) (reflect.Value, bool) {
	t := fv.Type()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return reflect.Value{}, false
	}
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return reflect.Value{}, true
		}
		fv = fv.Elem()
	}
	return fv, true
}

// encodeAny encodes a value held in a record, turning any struct it reaches
// into a nested record.
func encodeAny(v any) any {
	if v == nil {
		return nil
	}
	return encodeValue(reflect.ValueOf(v))
}

func encodeValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return encodeValue(v.Elem())
	case reflect.Struct:
		if v.Type() == timeType || v.Type() == absentType {
			return v.Interface()
		}
		return encodeStruct(v)
	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String || !holdsStructs(v.Type().Elem()) {
			return v.Interface()
		}
		return encodeMap(v)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		if !holdsStructs(v.Type().Elem()) {
			return v.Interface()
		}
		items := make([]any, v.Len())
		for i := range items {
			items[i] = encodeValue(v.Index(i))
		}
		return items
	}
	return v.Interface()
}

// encodeMap rebuilds a string-keyed map with its values encoded. Maps of any
// keep their type; other maps become records.
func encodeMap(v reflect.Value) any {
	if elem := v.Type().Elem(); elem.Kind() != reflect.Interface || elem.NumMethod() > 0 {
		out := make(Fields, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = encodeValue(iter.Value())
		}
		return out
	}

	out := reflect.MakeMapWithSize(v.Type(), v.Len())
	iter := v.MapRange()
	for iter.Next() {
		item := encodeValue(iter.Value())
		if item == nil {
			out.SetMapIndex(iter.Key(), reflect.Zero(v.Type().Elem()))
			continue
		}
		out.SetMapIndex(iter.Key(), reflect.ValueOf(item))
	}
	return out.Interface()
}

func holdsStructs(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Struct:
		return t != timeType
	case reflect.Slice, reflect.Array, reflect.Map:
		return holdsStructs(t.Elem())
	}
	return false
}

type tagOptions struct {
	omitempty bool
	squash    bool
}

func parseTag(sf reflect.StructField) (string, tagOptions) {
	var opts tagOptions
	tag := sf.Tag.Get(TagName)
	if tag == "" {
		return sf.Name, opts
	}
	parts := strings.Split(tag, ",")
	for _, o := range parts[1:] {
		switch o {
		case "omitempty":
			opts.omitempty = true
		case "squash":
			opts.squash = true
		}
	}
	if parts[0] == "" {
		return sf.Name, opts
	}
	return parts[0], opts
}
