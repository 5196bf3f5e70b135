package repository_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/repository"
	"github.com/jacentio/trove/store"
)

func seedPeople(t *testing.T) (*spyConn, *repository.Repository[document.Fields]) {
	t.Helper()
	spy := newSpy()
	repo := repository.New[document.Fields](spy, "people")
	people := map[string]document.Fields{
		"ann":  {"name": "ann", "age": 31, "role": "admin", "address": document.Fields{"city": "Paris"}, "tags": []any{"ops"}},
		"bob":  {"name": "bob", "age": 25, "role": "dev", "address": document.Fields{"city": "Lyon"}},
		"cy":   {"name": "cy", "age": 40, "role": "dev", "address": document.Fields{"city": "Paris"}},
		"dana": {"name": "dana", "role": "guest"},
	}
	for uid, data := range people {
		if _, err := repo.CreateWithUID(context.Background(), uid, data); err != nil {
			t.Fatalf("seed %s: %v", uid, err)
		}
	}
	return spy, repo
}

func uids(docs []repository.Document[document.Fields]) []string {
	out := []string{}
	for _, d := range docs {
		out = append(out, d.UID)
	}
	return out
}

func TestFindByUID(t *testing.T) {
	_, repo := seedPeople(t)
	ctx := context.Background()

	doc, err := repo.FindByUID(ctx, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil || doc.UID != "bob" || doc.Data["name"] != "bob" {
		t.Errorf("unexpected document %+v", doc)
	}

	missing, err := repo.FindByUID(ctx, "zed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func TestFindByUIDOrFail(t *testing.T) {
	_, repo := seedPeople(t)
	ctx := context.Background()

	doc, err := repo.FindByUIDOrFail(ctx, "ann")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.UID != "ann" {
		t.Errorf("expected 'ann', got %q", doc.UID)
	}

	if _, err := repo.FindByUIDOrFail(ctx, "zed"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFind(t *testing.T) {
	_, repo := seedPeople(t)

	tests := []struct {
		name     string
		filter   clause.Filter
		opts     []repository.FindOption
		expected []string
	}{
		{"empty filter matches all", nil, nil, []string{"ann", "bob", "cy", "dana"}},
		{"literal", clause.Filter{clause.Match("role", "dev")}, nil, []string{"bob", "cy"}},
		{"absent literal is skipped", clause.Filter{clause.Match("role", document.Absent)}, nil, []string{"ann", "bob", "cy", "dana"}},
		{"conjunction", clause.Filter{clause.Match("role", "dev"), clause.Where("age", clause.GreaterThan(30))}, nil, []string{"cy"}},
		{"nested", clause.Filter{clause.Nest("address", clause.Match("city", "Paris"))}, nil, []string{"ann", "cy"}},
		{"in", clause.Filter{clause.Where("name", clause.In("ann", "dana"))}, nil, []string{"ann", "dana"}},
		{"array contains", clause.Filter{clause.Where("tags", clause.ArrayContains("ops"))}, nil, []string{"ann"}},
		{"order", nil, []repository.FindOption{repository.WithOrder(clause.Descending("age"))}, []string{"cy", "ann", "bob"}},
		{"order and limit", nil, []repository.FindOption{repository.WithOrder(clause.Ascending("age")), repository.WithLimit(2)}, []string{"bob", "ann"}},
		{"no match", clause.Filter{clause.Match("role", "ceo")}, nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := repo.Find(context.Background(), tt.filter, tt.opts...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if docs == nil {
				t.Fatal("expected non-nil result")
			}
			if got := uids(docs); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestFind_StructInsideRecordBody(t *testing.T) {
	spy := newSpy()
	repo := repository.New[document.Fields](spy, "people")
	ctx := context.Background()

	_, err := repo.CreateWithUID(ctx, "a", document.Fields{"addr": address{City: "Oslo"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = repo.CreateWithUID(ctx, "b", document.Fields{"addr": &address{City: "Rome"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	docs, err := repo.Find(ctx, clause.Filter{clause.Nest("addr", clause.Match("city", "Oslo"))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := uids(docs); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("expected [a], got %v", got)
	}

	doc, err := repo.FindByUID(ctx, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(doc.Data["addr"], document.Fields{"city": "Rome"}) {
		t.Errorf("expected addr stored as a record, got %#v", doc.Data["addr"])
	}
}

func TestFind_Errors(t *testing.T) {
	_, repo := seedPeople(t)
	ctx := context.Background()

	if _, err := repo.Find(ctx, nil, repository.WithLimit(-1)); !errors.Is(err, repository.ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := repo.Find(ctx, nil, repository.WithOrder(clause.Order{Path: "age", Direction: "sideways"})); !errors.Is(err, clause.ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
	bad := clause.Filter{clause.Where("age", clause.Condition{Operator: "~", Value: 1})}
	if _, err := repo.Find(ctx, bad); !errors.Is(err, store.ErrInvalidPredicate) {
		t.Errorf("expected ErrInvalidPredicate, got %v", err)
	}
}

func TestFindOne(t *testing.T) {
	_, repo := seedPeople(t)
	ctx := context.Background()

	doc, err := repo.FindOne(ctx, clause.Filter{clause.Match("role", "dev")}, repository.WithOrder(clause.Descending("age")), repository.WithLimit(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil || doc.UID != "cy" {
		t.Errorf("expected 'cy', got %+v", doc)
	}

	none, err := repo.FindOne(ctx, clause.Filter{clause.Match("role", "ceo")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil, got %+v", none)
	}
}

func TestFindOneOrFail(t *testing.T) {
	_, repo := seedPeople(t)
	ctx := context.Background()

	doc, err := repo.FindOneOrFail(ctx, clause.Filter{clause.Match("name", "dana")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.UID != "dana" {
		t.Errorf("expected 'dana', got %q", doc.UID)
	}

	if _, err := repo.FindOneOrFail(ctx, clause.Filter{clause.Match("name", "zed")}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindAndUpdate(t *testing.T) {
	spy, repo := seedPeople(t)
	ctx := context.Background()

	spy.beforeUpdate = func(id string) {
		if id == "bob" {
			_ = spy.Conn.Collection("people").Doc(id).Delete(ctx)
		}
	}

	docs, err := repo.FindAndUpdate(ctx, clause.Filter{clause.Where("age", clause.GreaterThanOrEqual(25))}, document.Fields{"checked": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := uids(docs); !reflect.DeepEqual(got, []string{"ann", "cy"}) {
		t.Errorf("expected [ann cy], got %v", got)
	}
	for _, d := range docs {
		if d.Data["checked"] != true {
			t.Errorf("expected %s to reflect the update, got %v", d.UID, d.Data)
		}
		if d.Data["name"] != d.UID {
			t.Errorf("expected %s to keep untouched fields, got %v", d.UID, d.Data)
		}
	}
}

func TestFindAndUpdate_InvalidUpdates(t *testing.T) {
	spy, repo := seedPeople(t)
	before := spy.Writes()

	_, err := repo.FindAndUpdate(context.Background(), nil, "nope")
	if !errors.Is(err, repository.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
	if spy.Writes() != before {
		t.Error("expected no writes")
	}
}

func TestFindOneAndUpdate(t *testing.T) {
	spy, repo := seedPeople(t)
	ctx := context.Background()

	doc, err := repo.FindOneAndUpdate(ctx, clause.Filter{clause.Match("role", "dev")}, document.Fields{"role": "lead"},
		repository.WithOrder(clause.Ascending("age")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil || doc.UID != "bob" || doc.Data["role"] != "lead" {
		t.Errorf("expected bob promoted, got %+v", doc)
	}

	before := spy.Writes()
	none, err := repo.FindOneAndUpdate(ctx, clause.Filter{clause.Match("role", "ceo")}, document.Fields{"role": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil, got %+v", none)
	}
	if spy.Writes() != before {
		t.Error("expected no writes without a match")
	}
}

func TestFromRegistry(t *testing.T) {
	reg := store.NewRegistry()
	spy := newSpy()
	if err := reg.Register(spy, store.DefaultName); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo, err := repository.FromRegistry[document.Fields](reg, store.DefaultName, "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Collection() != "users" {
		t.Errorf("expected collection 'users', got %q", repo.Collection())
	}
	if repo.Connection() != store.Connection(spy) {
		t.Error("expected the registered connection")
	}

	if _, err := repository.FromRegistry[document.Fields](reg, "other", "users"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected store.ErrNotFound, got %v", err)
	}
}
