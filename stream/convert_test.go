package stream

import (
	"reflect"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- TableFromARN Tests ---

func TestTableFromARN(t *testing.T) {
	tests := []struct {
		arn  string
		want string
	}{
		{"arn:aws:dynamodb:eu-west-1:123456789012:table/users/stream/2024-01-01T00:00:00.000", "users"},
		{"arn:aws:dynamodb:eu-west-1:123456789012:table/app-users", "app-users"},
		{"", ""},
		{"arn:aws:sqs:eu-west-1:123456789012:queue", ""},
	}

	for _, tt := range tests {
		if got := TableFromARN(tt.arn); got != tt.want {
			t.Errorf("TableFromARN(%q): expected %q, got %q", tt.arn, tt.want, got)
		}
	}
}

// --- ConvertAttribute Tests ---

func TestConvertAttribute_Scalars(t *testing.T) {
	if v, ok := mustConvert(t, events.NewStringAttribute("test-id")).(*types.AttributeValueMemberS); !ok || v.Value != "test-id" {
		t.Error("expected string attribute 'test-id'")
	}
	if v, ok := mustConvert(t, events.NewNumberAttribute("19.99")).(*types.AttributeValueMemberN); !ok || v.Value != "19.99" {
		t.Error("expected number attribute '19.99'")
	}
	if v, ok := mustConvert(t, events.NewBooleanAttribute(true)).(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Error("expected boolean attribute true")
	}
	if _, ok := mustConvert(t, events.NewNullAttribute()).(*types.AttributeValueMemberNULL); !ok {
		t.Error("expected null attribute")
	}
	if v, ok := mustConvert(t, events.NewBinaryAttribute([]byte{0x01, 0x02})).(*types.AttributeValueMemberB); !ok || len(v.Value) != 2 {
		t.Error("expected binary attribute of length 2")
	}
}

func TestConvertAttribute_Sets(t *testing.T) {
	if v, ok := mustConvert(t, events.NewStringSetAttribute([]string{"a", "b"})).(*types.AttributeValueMemberSS); !ok || len(v.Value) != 2 {
		t.Error("expected string set of length 2")
	}
	if v, ok := mustConvert(t, events.NewNumberSetAttribute([]string{"1", "2", "3"})).(*types.AttributeValueMemberNS); !ok || len(v.Value) != 3 {
		t.Error("expected number set of length 3")
	}
}

func TestConvertAttribute_Nested(t *testing.T) {
	attr := events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
		"tags": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewStringAttribute("a"),
			events.NewNumberAttribute("2"),
		}),
	})

	m, ok := mustConvert(t, attr).(*types.AttributeValueMemberM)
	if !ok {
		t.Fatal("expected map attribute")
	}
	l, ok := m.Value["tags"].(*types.AttributeValueMemberL)
	if !ok {
		t.Fatal("expected list attribute under tags")
	}
	if len(l.Value) != 2 {
		t.Fatalf("expected 2 list items, got %d", len(l.Value))
	}
	if _, ok := l.Value[1].(*types.AttributeValueMemberN); !ok {
		t.Error("expected second list item to be a number")
	}
}

// --- ConvertImage Tests ---

func TestConvertImage(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"name":   events.NewStringAttribute("日本語テスト"),
		"age":    events.NewNumberAttribute("42"),
		"active": events.NewBooleanAttribute(false),
		"note":   events.NewNullAttribute(),
		"tags": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewStringAttribute("x"),
		}),
		"address": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"city": events.NewStringAttribute("Oslo"),
		}),
	}

	fields, err := ConvertImage(image)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fields["name"] != "日本語テスト" {
		t.Errorf("expected name '日本語テスト', got %v", fields["name"])
	}
	if fields["age"] != float64(42) {
		t.Errorf("expected age 42, got %v (%T)", fields["age"], fields["age"])
	}
	if fields["active"] != false {
		t.Errorf("expected active false, got %v", fields["active"])
	}
	if v, ok := fields["note"]; !ok || v != nil {
		t.Errorf("expected note to be present and nil, got %v", v)
	}
	if !reflect.DeepEqual(fields["tags"], []any{"x"}) {
		t.Errorf("expected tags [x], got %v", fields["tags"])
	}
	if !reflect.DeepEqual(fields["address"], map[string]any{"city": "Oslo"}) {
		t.Errorf("expected address map, got %v", fields["address"])
	}
}

func TestConvertImage_Empty(t *testing.T) {
	fields, err := ConvertImage(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields == nil {
		t.Fatal("expected non-nil fields for nil image")
	}
	if len(fields) != 0 {
		t.Errorf("expected empty fields, got %d keys", len(fields))
	}
}

func mustConvert(t *testing.T, v events.DynamoDBAttributeValue) types.AttributeValue {
	t.Helper()
	av, err := ConvertAttribute(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return av
}
