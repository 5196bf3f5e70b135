package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/internal/value"
)

// DefaultMaxBatchWrites is the number of writes a batch accepts unless the
// connection implements BatchLimiter.
const DefaultMaxBatchWrites = 500

// Connection is a handle on a document store.
type Connection interface {
	// Collection returns the named collection. It performs no I/O.
	Collection(name string) CollectionRef

	// Batch starts an atomic write batch.
	Batch() WriteBatch
}

// CollectionRef is a named set of documents. Used as a Query it selects every
// document of the collection.
type CollectionRef interface {
	Query

	// Name returns the collection name.
	Name() string

	// Doc returns a reference to the document with the given id.
	Doc(id string) DocRef

	// NewDoc returns a reference with a freshly generated id.
	NewDoc() DocRef
}

// Query selects documents of a collection.
type Query interface {
	// Where adds a conjunctive predicate.
	Where(path string, op clause.Operator, value any) Query

	// OrderBy sets the result ordering, replacing any previous one.
	OrderBy(path string, dir clause.Direction) Query

	// Limit caps the number of results. n <= 0 removes the cap.
	Limit(n int) Query

	// Documents executes the query.
	Documents(ctx context.Context) ([]Snapshot, error)
}

// DocRef addresses a single document.
type DocRef interface {
	// ID returns the document id.
	ID() string

	// Set creates or replaces the document.
	Set(ctx context.Context, data document.Fields) error

	// Update merges data into the top level of an existing document; a field
	// holding a record replaces the stored sub-object. It returns ErrNotFound
	// when the document doesn't exist.
	Update(ctx context.Context, data document.Fields) error

	// Delete removes the document. Deleting a missing document succeeds.
	Delete(ctx context.Context) error

	// Get reads the document. A missing document is reported through
	// Snapshot.Exists, not an error.
	Get(ctx context.Context) (Snapshot, error)
}

// WriteBatch stages writes applied atomically by Commit.
type WriteBatch interface {
	// Set stages a create-or-replace of ref.
	Set(ref DocRef, data document.Fields)

	// Len returns the number of staged writes.
	Len() int

	// Commit applies every staged write, or none of them.
	Commit(ctx context.Context) error
}

// BatchLimiter is implemented by connections whose atomic batches hold fewer
// than DefaultMaxBatchWrites writes.
type BatchLimiter interface {
	MaxBatchWrites() int
}

// Snapshot is the state of a document at read time.
type Snapshot struct {
	ID     string
	Exists bool
	Data   document.Fields
}

// MaxBatchWrites returns the batch write limit of conn.
func MaxBatchWrites(conn Connection) int {
	if l, ok := conn.(BatchLimiter); ok && l.MaxBatchWrites() > 0 {
		return l.MaxBatchWrites()
	}
	return DefaultMaxBatchWrites
}

// Apply adds preds and an optional ordering and limit to q.
func Apply(q Query, preds []clause.Predicate, order *clause.Order, limit int) Query {
	for _, p := range preds {
		q = q.Where(p.Path, p.Operator, p.Value)
	}
	if order != nil {
		q = q.OrderBy(order.Path, order.Direction)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// ValidatePredicate checks that p has a known operator and, for list
// operators, a non-empty list operand.
func ValidatePredicate(p clause.Predicate) error {
	if !p.Operator.Valid() {
		return fmt.Errorf("%w: operator %q on %s", ErrInvalidPredicate, p.Operator, p.Path)
	}
	if p.Operator.TakesList() {
		if items, ok := value.Elements(p.Value); !ok || len(items) == 0 {
			return fmt.Errorf("%w: %s on %s needs a non-empty list", ErrInvalidPredicate, p.Operator, p.Path)
		}
	}
	return nil
}

// Sort orders snaps by the ordering path when given, then by id. Backends
// that cannot sort server-side use it so every backend returns the same order.
func Sort(snaps []Snapshot, order *clause.Order) {
	sort.SliceStable(snaps, func(i, j int) bool {
		if order != nil {
			a, _ := value.Lookup(snaps[i].Data, order.Path)
			b, _ := value.Lookup(snaps[j].Data, order.Path)
			if c := value.Compare(a, b); c != 0 {
				if order.Direction == clause.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return snaps[i].ID < snaps[j].ID
	})
}
