package repository_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/repository"
	"github.com/jacentio/trove/store"
)

func TestCreate_GeneratedUID(t *testing.T) {
	spy := newSpy()
	repo := repository.New[document.Fields](spy, "users")

	doc, err := repo.Create(context.Background(), document.Fields{
		"email":   "a@b.c",
		"skip":    document.Absent,
		"profile": document.Fields{"x": document.Absent, "y": 1},
		"note":    nil,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.UID != "id-001" {
		t.Errorf("expected uid 'id-001', got %q", doc.UID)
	}
	expected := document.Fields{
		"email":   "a@b.c",
		"profile": document.Fields{"y": 1},
		"note":    nil,
	}
	if !reflect.DeepEqual(doc.Data, expected) {
		t.Errorf("expected %v, got %v", expected, doc.Data)
	}
}

func TestCreate_Struct(t *testing.T) {
	repo := repository.New[user](newSpy(), "users")

	in := user{Email: "a@b.c", Age: 30, Tags: []string{"x"}, Address: &address{City: "Lyon"}}
	doc, err := repo.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(doc.Data, in) {
		t.Errorf("expected %+v, got %+v", in, doc.Data)
	}
}

func TestCreateWithUID_Replaces(t *testing.T) {
	ctx := context.Background()
	repo := repository.New[document.Fields](newSpy(), "users")

	if _, err := repo.CreateWithUID(ctx, "u1", document.Fields{"a": 1, "b": 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, err := repo.CreateWithUID(ctx, "u1", document.Fields{"a": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.UID != "u1" {
		t.Errorf("expected uid 'u1', got %q", doc.UID)
	}
	if !reflect.DeepEqual(doc.Data, document.Fields{"a": 3}) {
		t.Errorf("expected replaced document, got %v", doc.Data)
	}
}

func TestCreate_InvalidFormat(t *testing.T) {
	spy := newSpy()
	repo := repository.New[document.Fields](spy, "users")

	for _, data := range []any{nil, []string{"a"}, 42, "text", document.Absent} {
		_, err := repo.Create(context.Background(), data)
		if !errors.Is(err, repository.ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat for %#v, got %v", data, err)
		}
		if !errors.Is(err, document.ErrInvalidInputKind) {
			t.Errorf("expected wrapped ErrInvalidInputKind for %#v, got %v", data, err)
		}
	}
	if spy.Writes() != 0 {
		t.Errorf("expected no writes, got %d", spy.Writes())
	}
}

func TestCreateWithUID_EmptyUID(t *testing.T) {
	spy := newSpy()
	repo := repository.New[document.Fields](spy, "users")

	_, err := repo.CreateWithUID(context.Background(), "", document.Fields{})
	if !errors.Is(err, repository.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
	if spy.Writes() != 0 {
		t.Errorf("expected no writes, got %d", spy.Writes())
	}
}

func TestCreate_ReadBackMissing(t *testing.T) {
	spy := newSpy()
	spy.Hide("u1")
	repo := repository.New[document.Fields](spy, "users")

	doc, err := repo.CreateWithUID(context.Background(), "u1", document.Fields{"a": 1})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if doc.UID != "" || doc.Data != nil {
		t.Errorf("expected zero document, got %+v", doc)
	}
}

func TestCreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("generated uids", func(t *testing.T) {
		spy := newSpy()
		repo := repository.New[document.Fields](spy, "users")

		docs, err := repo.CreateBatch(ctx, []any{
			document.Fields{"n": 1},
			document.Fields{"n": 2, "gone": document.Absent},
			map[string]any{"n": 3},
		}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(docs) != 3 {
			t.Fatalf("expected 3 documents, got %d", len(docs))
		}
		for i, doc := range docs {
			if doc.Data["n"] != i+1 {
				t.Errorf("expected input order, got %v at %d", doc.Data["n"], i)
			}
			if _, ok := doc.Data["gone"]; ok {
				t.Errorf("expected absent field dropped at %d", i)
			}
		}
		if spy.Len("users") != 3 {
			t.Errorf("expected 3 stored documents, got %d", spy.Len("users"))
		}
		if spy.Writes() != 1 {
			t.Errorf("expected one batch commit, got %d writes", spy.Writes())
		}
	})

	t.Run("explicit uids", func(t *testing.T) {
		repo := repository.New[document.Fields](newSpy(), "users")

		docs, err := repo.CreateBatch(ctx, []any{document.Fields{"n": 1}, document.Fields{"n": 2}}, []string{"b", "a"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if docs[0].UID != "b" || docs[1].UID != "a" {
			t.Errorf("expected uids [b a], got [%s %s]", docs[0].UID, docs[1].UID)
		}
	})

	t.Run("empty", func(t *testing.T) {
		spy := newSpy()
		repo := repository.New[document.Fields](spy, "users")

		docs, err := repo.CreateBatch(ctx, nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if docs == nil || len(docs) != 0 {
			t.Errorf("expected empty non-nil result, got %#v", docs)
		}
		if spy.Writes() != 0 {
			t.Errorf("expected no writes, got %d", spy.Writes())
		}
	})
}

func TestCreateBatch_ValidationBeforeWrite(t *testing.T) {
	ctx := context.Background()
	oversized := make([]any, repository.MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = document.Fields{}
	}

	tests := []struct {
		name     string
		conn     func(*spyConn) store.Connection
		data     []any
		uids     []string
		expected error
	}{
		{"mismatched lengths", nil, []any{document.Fields{}, document.Fields{}}, []string{"a"}, repository.ErrMismatchedLengths},
		{"uids for empty data", nil, nil, []string{"a"}, repository.ErrMismatchedLengths},
		{"too large", nil, oversized, nil, repository.ErrBatchTooLarge},
		{"connection limit", func(s *spyConn) store.Connection { return limitedConn{s} },
			[]any{document.Fields{}, document.Fields{}, document.Fields{}}, nil, repository.ErrBatchTooLarge},
		{"invalid record", nil, []any{document.Fields{}, 7}, nil, repository.ErrInvalidFormat},
		{"empty uid", nil, []any{document.Fields{}}, []string{""}, repository.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := newSpy()
			var conn store.Connection = spy
			if tt.conn != nil {
				conn = tt.conn(spy)
			}
			repo := repository.New[document.Fields](conn, "users")

			docs, err := repo.CreateBatch(ctx, tt.data, tt.uids)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
			if docs != nil {
				t.Errorf("expected nil result, got %v", docs)
			}
			if spy.Writes() != 0 || spy.Len("users") != 0 {
				t.Errorf("expected no writes, got %d writes and %d documents", spy.Writes(), spy.Len("users"))
			}
		})
	}
}

func TestCreateBatch_ReadBackMissing(t *testing.T) {
	spy := newSpy()
	spy.Hide("b")
	repo := repository.New[document.Fields](spy, "users")

	_, err := repo.CreateBatch(context.Background(), []any{document.Fields{}, document.Fields{}}, []string{"a", "b"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := repository.New[document.Fields](newSpy(), "users")
	_, _ = repo.CreateWithUID(ctx, "u1", document.Fields{
		"keep":    "x",
		"count":   1,
		"address": document.Fields{"city": "Paris", "zip": "75001"},
	})

	doc, err := repo.Update(ctx, "u1", document.Fields{
		"count":   2,
		"keep":    document.Absent,
		"address": document.Fields{"city": "Lyon"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil {
		t.Fatal("expected updated document")
	}

	expected := document.Fields{
		"keep":    "x",
		"count":   2,
		"address": document.Fields{"city": "Lyon"},
	}
	if !reflect.DeepEqual(doc.Data, expected) {
		t.Errorf("expected %v, got %v", expected, doc.Data)
	}
	if doc.UID != "u1" {
		t.Errorf("expected uid 'u1', got %q", doc.UID)
	}
}

func TestUpdate_Missing(t *testing.T) {
	spy := newSpy()
	repo := repository.New[document.Fields](spy, "users")

	doc, err := repo.Update(context.Background(), "nope", document.Fields{"a": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != nil {
		t.Errorf("expected nil, got %+v", doc)
	}
	if spy.Writes() != 0 {
		t.Errorf("expected no writes, got %d", spy.Writes())
	}
}

func TestUpdate_InvalidFormatBeforeRead(t *testing.T) {
	repo := repository.New[document.Fields](newSpy(), "users")

	_, err := repo.Update(context.Background(), "nope", []any{1})
	if !errors.Is(err, repository.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestUpdate_VanishedBeforeWrite(t *testing.T) {
	ctx := context.Background()
	spy := newSpy()
	repo := repository.New[document.Fields](spy, "users")
	_, _ = repo.CreateWithUID(ctx, "u1", document.Fields{"a": 1})

	spy.beforeUpdate = func(id string) {
		_ = spy.Conn.Collection("users").Doc(id).Delete(ctx)
	}

	doc, err := repo.Update(ctx, "u1", document.Fields{"a": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != nil {
		t.Errorf("expected nil for a vanished document, got %+v", doc)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	spy := newSpy()
	repo := repository.New[document.Fields](spy, "users")
	_, _ = repo.CreateWithUID(ctx, "u1", document.Fields{})

	for _, uid := range []string{"u1", "u1", "never"} {
		if err := repo.Delete(ctx, uid); err != nil {
			t.Errorf("delete %s: unexpected error: %v", uid, err)
		}
	}
	if spy.Len("users") != 0 {
		t.Errorf("expected empty collection, got %d", spy.Len("users"))
	}
}
