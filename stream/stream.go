// Package stream turns DynamoDB Streams events into typed document changes.
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/repository"
)

// Kind identifies the type of change carried by a stream record.
type Kind string

const (
	KindInsert Kind = "INSERT"
	KindModify Kind = "MODIFY"
	KindRemove Kind = "REMOVE"
)

// Change is a decoded stream record. Before is nil for inserts and After is
// nil for removals.
type Change[T any] struct {
	Kind   Kind
	UID    string
	Before *repository.Document[T]
	After  *repository.Document[T]
}

// Func receives changes in record order.
type Func[T any] func(ctx context.Context, change Change[T]) error

// Handler processes DynamoDB stream events for a single collection.
type Handler[T any] struct {
	table        string
	keyAttribute string
	fn           Func[T]
	logger       *zap.Logger
}

// Option configures a Handler.
type Option func(*options)

type options struct {
	tablePrefix  string
	keyAttribute string
}

// WithTablePrefix matches the prefix used by the dynamo backend.
func WithTablePrefix(prefix string) Option {
	return func(o *options) { o.tablePrefix = prefix }
}

// WithKeyAttribute overrides the partition key attribute (default "id").
func WithKeyAttribute(name string) Option {
	return func(o *options) { o.keyAttribute = name }
}

// NewHandler creates a stream handler for collection.
func NewHandler[T any](collection string, fn Func[T], logger *zap.Logger, opts ...Option) *Handler[T] {
	o := options{keyAttribute: "id"}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler[T]{
		table:        o.tablePrefix + collection,
		keyAttribute: o.keyAttribute,
		fn:           fn,
		logger:       logger,
	}
}

// Table returns the table name whose records the handler accepts.
func (h *Handler[T]) Table() string { return h.table }

// HandleRecords processes a stream event. It is designed to be used as an
// AWS Lambda handler: the first failing record aborts the batch so the
// event is retried.
func (h *Handler[T]) HandleRecords(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				zap.String("eventID", record.EventID),
				zap.String("table", h.table),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func (h *Handler[T]) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if table := TableFromARN(record.EventSourceArn); table != "" && table != h.table {
		return nil
	}

	kind := Kind(record.EventName)
	switch kind {
	case KindInsert, KindModify, KindRemove:
	default:
		h.logger.Debug("skipping record", zap.String("eventName", record.EventName))
		return nil
	}

	uid := keyString(record.Change.Keys[h.keyAttribute])
	change := Change[T]{Kind: kind, UID: uid}

	if kind != KindInsert && len(record.Change.OldImage) > 0 {
		doc, err := h.decode(uid, record.Change.OldImage)
		if err != nil {
			return fmt.Errorf("decode old image %q: %w", uid, err)
		}
		change.Before = &doc
	}
	if kind != KindRemove && len(record.Change.NewImage) > 0 {
		doc, err := h.decode(uid, record.Change.NewImage)
		if err != nil {
			return fmt.Errorf("decode new image %q: %w", uid, err)
		}
		change.After = &doc
	}
	if change.UID == "" {
		change.UID = h.imageUID(record.Change)
		setUID(change.Before, change.UID)
		setUID(change.After, change.UID)
	}

	h.logger.Debug("processing change",
		zap.String("kind", string(kind)),
		zap.String("uid", change.UID),
	)
	return h.fn(ctx, change)
}

func (h *Handler[T]) decode(uid string, image map[string]events.DynamoDBAttributeValue) (repository.Document[T], error) {
	fields, err := ConvertImage(image)
	if err != nil {
		return repository.Document[T]{}, err
	}
	delete(fields, h.keyAttribute)
	return repository.Decode[T](uid, fields)
}

func (h *Handler[T]) imageUID(rec events.DynamoDBStreamRecord) string {
	if v, ok := rec.NewImage[h.keyAttribute]; ok {
		return keyString(v)
	}
	return keyString(rec.OldImage[h.keyAttribute])
}

func setUID[T any](doc *repository.Document[T], uid string) {
	if doc != nil {
		doc.UID = uid
	}
}

func keyString(v events.DynamoDBAttributeValue) string {
	if v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// TableFromARN extracts the table name from a stream ARN of the form
// arn:aws:dynamodb:region:account:table/NAME/stream/LABEL. It returns ""
// when the ARN does not name a table.
func TableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// ConvertImage converts a stream image into document fields using the same
// decoding rules as the dynamo backend.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) (document.Fields, error) {
	item := make(map[string]types.AttributeValue, len(image))
	for k, v := range image {
		av, err := ConvertAttribute(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		item[k] = av
	}

	var data map[string]any
	if err := attributevalue.UnmarshalMap(item, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return document.Fields(data), nil
}

// ConvertAttribute converts a stream attribute value to its SDK form.
func ConvertAttribute(v events.DynamoDBAttributeValue) (types.AttributeValue, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}, nil
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}, nil
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}, nil
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}, nil
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}, nil
	case events.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, len(list))
		for i, item := range list {
			av, err := ConvertAttribute(item)
			if err != nil {
				return nil, err
			}
			out[i] = av
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	case events.DataTypeMap:
		m := v.Map()
		out := make(map[string]types.AttributeValue, len(m))
		for k, item := range m {
			av, err := ConvertAttribute(item)
			if err != nil {
				return nil, err
			}
			out[k] = av
		}
		return &types.AttributeValueMemberM{Value: out}, nil
	}
	return nil, fmt.Errorf("unsupported stream data type %v", v.DataType())
}
