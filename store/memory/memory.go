// Package memory provides an in-process document store. It evaluates every
// predicate and ordering the same way the remote backends do and is suited to
// tests, local tooling and emulation.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/internal/value"
	"github.com/jacentio/trove/store"
)

// Conn is an in-memory store.Connection. It is safe for concurrent use.
type Conn struct {
	mu          sync.RWMutex
	collections map[string]map[string]document.Fields
	newID       func() string
	logger      *zap.Logger
}

// Option configures a Conn.
type Option func(*Conn)

// WithIDGenerator replaces the random id generator used by NewDoc.
func WithIDGenerator(fn func() string) Option {
	return func(c *Conn) {
		c.newID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// New creates an empty store.
func New(opts ...Option) *Conn {
	c := &Conn{
		collections: make(map[string]map[string]document.Fields),
		newID:       uuid.NewString,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collection returns the named collection.
func (c *Conn) Collection(name string) store.CollectionRef {
	return &collection{query: query{conn: c, collection: name}}
}

// Batch starts an atomic write batch.
func (c *Conn) Batch() store.WriteBatch {
	return &batch{conn: c}
}

// Len returns the number of documents in a collection.
func (c *Conn) Len(collection string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.collections[collection])
}

// Reset drops every document of every collection.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections = make(map[string]map[string]document.Fields)
}

// put stores data under collection/id. The caller holds c.mu.
func (c *Conn) put(collection, id string, data document.Fields) {
	docs, ok := c.collections[collection]
	if !ok {
		docs = make(map[string]document.Fields)
		c.collections[collection] = docs
	}
	docs[id] = copyFields(data)
}

type collection struct {
	query
}

func (c *collection) Name() string { return c.collection }

func (c *collection) Doc(id string) store.DocRef {
	return &docRef{conn: c.conn, collection: c.collection, id: id}
}

func (c *collection) NewDoc() store.DocRef {
	return c.Doc(c.conn.newID())
}

type docRef struct {
	conn       *Conn
	collection string
	id         string
}

func (r *docRef) ID() string { return r.id }

func (r *docRef) Set(ctx context.Context, data document.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.conn.mu.Lock()
	defer r.conn.mu.Unlock()
	r.conn.put(r.collection, r.id, data)
	return nil
}

func (r *docRef) Update(ctx context.Context, data document.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.conn.mu.Lock()
	defer r.conn.mu.Unlock()

	current, ok := r.conn.collections[r.collection][r.id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", r.collection, r.id, store.ErrNotFound)
	}
	for k, v := range data {
		current[k] = copyValue(v)
	}
	return nil
}

func (r *docRef) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.conn.mu.Lock()
	defer r.conn.mu.Unlock()
	delete(r.conn.collections[r.collection], r.id)
	return nil
}

func (r *docRef) Get(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	r.conn.mu.RLock()
	defer r.conn.mu.RUnlock()

	data, ok := r.conn.collections[r.collection][r.id]
	if !ok {
		return store.Snapshot{ID: r.id}, nil
	}
	return store.Snapshot{ID: r.id, Exists: true, Data: copyFields(data)}, nil
}

type query struct {
	conn       *Conn
	collection string
	preds      []clause.Predicate
	order      *clause.Order
	limit      int
}

func (q query) Where(path string, op clause.Operator, v any) store.Query {
	preds := make([]clause.Predicate, len(q.preds), len(q.preds)+1)
	copy(preds, q.preds)
	q.preds = append(preds, clause.Predicate{Path: path, Operator: op, Value: v})
	return q
}

func (q query) OrderBy(path string, dir clause.Direction) store.Query {
	q.order = &clause.Order{Path: path, Direction: dir}
	return q
}

func (q query) Limit(n int) store.Query {
	q.limit = n
	return q
}

func (q query) Documents(ctx context.Context) ([]store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range q.preds {
		if err := store.ValidatePredicate(p); err != nil {
			return nil, err
		}
	}

	q.conn.mu.RLock()
	var matched []store.Snapshot
	for id, data := range q.conn.collections[q.collection] {
		if !q.matches(data) {
			continue
		}
		matched = append(matched, store.Snapshot{ID: id, Exists: true, Data: copyFields(data)})
	}
	q.conn.mu.RUnlock()

	store.Sort(matched, q.order)
	if q.limit > 0 && len(matched) > q.limit {
		matched = matched[:q.limit]
	}

	q.conn.logger.Debug("memory query",
		zap.String("collection", q.collection),
		zap.Int("predicates", len(q.preds)),
		zap.Int("results", len(matched)),
	)
	return matched, nil
}

func (q query) matches(data document.Fields) bool {
	for _, p := range q.preds {
		if !Matches(data, p) {
			return false
		}
	}
	if q.order != nil {
		if _, ok := value.Lookup(data, q.order.Path); !ok {
			return false
		}
	}
	return true
}

type write struct {
	ref  store.DocRef
	data document.Fields
}

type batch struct {
	conn      *Conn
	writes    []write
	committed bool
}

func (b *batch) Set(ref store.DocRef, data document.Fields) {
	b.writes = append(b.writes, write{ref: ref, data: copyFields(data)})
}

func (b *batch) Len() int { return len(b.writes) }

func (b *batch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.committed {
		return fmt.Errorf("memory batch: already committed")
	}
	if len(b.writes) > store.DefaultMaxBatchWrites {
		return fmt.Errorf("memory batch of %d writes: %w", len(b.writes), store.ErrBatchTooLarge)
	}

	refs := make([]*docRef, len(b.writes))
	for i, w := range b.writes {
		ref, ok := w.ref.(*docRef)
		if !ok || ref.conn != b.conn {
			return fmt.Errorf("memory batch write %d: %w", i, store.ErrForeignRef)
		}
		refs[i] = ref
	}

	b.conn.mu.Lock()
	defer b.conn.mu.Unlock()
	for i, w := range b.writes {
		b.conn.put(refs[i].collection, refs[i].id, w.data)
	}
	b.committed = true
	return nil
}

func copyFields(data document.Fields) document.Fields {
	out := make(document.Fields, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case document.Fields:
		return copyFields(t)
	case map[string]any:
		return copyFields(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		copyElements(out, rv)
		return out.Interface()
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		copyElements(out, rv)
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyElem(iter.Value()))
		}
		return out.Interface()
	}
	return v
}

// copyElements copies src into dst, which has the same type and length.
func copyElements(dst, src reflect.Value) {
	if !holdsReferences(src.Type().Elem()) {
		reflect.Copy(dst, src)
		return
	}
	for i := 0; i < src.Len(); i++ {
		dst.Index(i).Set(copyElem(src.Index(i)))
	}
}

func copyElem(ev reflect.Value) reflect.Value {
	if ev.Kind() == reflect.Interface && ev.IsNil() {
		return reflect.Zero(ev.Type())
	}
	c := copyValue(ev.Interface())
	if c == nil {
		return reflect.Zero(ev.Type())
	}
	cv := reflect.ValueOf(c)
	if !cv.Type().AssignableTo(ev.Type()) {
		return cv.Convert(ev.Type())
	}
	return cv
}

func holdsReferences(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Map, reflect.Interface, reflect.Pointer:
		return true
	case reflect.Array:
		return holdsReferences(t.Elem())
	}
	return false
}
