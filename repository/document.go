package repository

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/jacentio/trove/document"
)

// Document is a stored record of type T together with its identifier.
type Document[T any] struct {
	UID  string
	Data T
}

// Decode builds a Document from stored fields. When T is document.Fields or
// map[string]any the fields are attached as is; otherwise they are decoded
// into T using the "doc" struct tag. RFC 3339 strings decode into time.Time
// fields, which keeps backends that store times as strings readable.
func Decode[T any](uid string, fields document.Fields) (Document[T], error) {
	doc := Document[T]{UID: uid}
	if fields == nil {
		fields = document.Fields{}
	}

	switch p := any(&doc.Data).(type) {
	case *document.Fields:
		*p = fields
		return doc, nil
	case *map[string]any:
		*p = fields
		return doc, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: document.TagName,
		Result:  &doc.Data,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return Document[T]{}, err
	}
	if err := dec.Decode(map[string]any(fields)); err != nil {
		return Document[T]{}, fmt.Errorf("decode %s: %w", uid, err)
	}
	return doc, nil
}
