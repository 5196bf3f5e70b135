// Package mongo implements store.Connection over MongoDB.
//
// Each collection maps to a MongoDB collection of the same name in one
// database. Document ids are stored in _id. Batches run in a multi-document
// transaction and therefore need a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/store"
)

// ErrReservedField is returned when document data contains the _id field.
var ErrReservedField = errors.New("trove: document data uses the _id field")

// Config holds configuration for a Conn.
type Config struct {
	// OperationTimeout bounds each MongoDB call. Zero disables the bound.
	// Default: 5s
	OperationTimeout time.Duration
}

// DefaultConfig returns the defaults used by Connect.
func DefaultConfig() Config {
	return Config{OperationTimeout: 5 * time.Second}
}

func (c *Config) validate() {
	if c.OperationTimeout < 0 {
		c.OperationTimeout = 0
	}
}

// Conn is a store.Connection backed by a MongoDB database.
type Conn struct {
	db     *mongo.Database
	config Config
	newID  func() string
	logger *zap.Logger
	owned  bool
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithIDGenerator replaces the random id generator used by NewDoc.
func WithIDGenerator(fn func() string) Option {
	return func(c *Conn) {
		c.newID = fn
	}
}

// New creates a Conn over db. The caller keeps ownership of the client.
func New(db *mongo.Database, config Config, opts ...Option) *Conn {
	config.validate()
	c := &Conn{
		db:     db,
		config: config,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close disconnects the client when the Conn was created by Connect.
func (c *Conn) Close(ctx context.Context) error {
	if !c.owned {
		return nil
	}
	if err := c.db.Client().Disconnect(ctx); err != nil {
		return fmt.Errorf("close mongodb connection: %w", err)
	}
	return nil
}

// Collection returns the named collection.
func (c *Conn) Collection(name string) store.CollectionRef {
	return &collection{query: query{conn: c, collection: name}}
}

// Batch starts a transactional write batch.
func (c *Conn) Batch() store.WriteBatch {
	return &batch{conn: c}
}

func (c *Conn) coll(name string) *mongo.Collection {
	return c.db.Collection(name)
}

func (c *Conn) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.OperationTimeout)
}

// toBSON builds the stored form of data under id.
func toBSON(id string, data document.Fields) (bson.M, error) {
	if _, ok := data[idField]; ok {
		return nil, ErrReservedField
	}
	doc := make(bson.M, len(data)+1)
	for k, v := range data {
		doc[k] = v
	}
	doc[idField] = id
	return doc, nil
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

func (r *docRef) filter() bson.D {
	return bson.D{{Key: idField, Value: r.id}}
}

// Set replaces the document, inserting it when missing.
func (r *docRef) Set(ctx context.Context, data document.Fields) error {
	doc, err := toBSON(r.id, data)
	if err != nil {
		return err
	}

	opCtx, cancel := r.conn.withOperationTimeout(ctx)
	defer cancel()
	_, err = r.conn.coll(r.collection).ReplaceOne(opCtx, r.filter(), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", r.collection, r.id, err)
	}
	return nil
}

// Update sets the top-level fields of data on an existing document.
func (r *docRef) Update(ctx context.Context, data document.Fields) error {
	if _, ok := data[idField]; ok {
		return ErrReservedField
	}

	opCtx, cancel := r.conn.withOperationTimeout(ctx)
	defer cancel()

	var matched int64
	if len(data) == 0 {
		n, err := r.conn.coll(r.collection).CountDocuments(opCtx, r.filter(), options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("count %s/%s: %w", r.collection, r.id, err)
		}
		matched = n
	} else {
		result, err := r.conn.coll(r.collection).UpdateOne(opCtx, r.filter(), bson.D{{Key: "$set", Value: bson.M(data)}})
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", r.collection, r.id, err)
		}
		matched = result.MatchedCount
	}

	if matched == 0 {
		return fmt.Errorf("%s/%s: %w", r.collection, r.id, store.ErrNotFound)
	}
	return nil
}

// Delete removes the document. Deleting a missing document succeeds.
func (r *docRef) Delete(ctx context.Context) error {
	opCtx, cancel := r.conn.withOperationTimeout(ctx)
	defer cancel()
	if _, err := r.conn.coll(r.collection).DeleteOne(opCtx, r.filter()); err != nil {
		return fmt.Errorf("delete %s/%s: %w", r.collection, r.id, err)
	}
	return nil
}

// Get reads the document.
func (r *docRef) Get(ctx context.Context) (store.Snapshot, error) {
	opCtx, cancel := r.conn.withOperationTimeout(ctx)
	defer cancel()

	var raw bson.M
	err := r.conn.coll(r.collection).FindOne(opCtx, r.filter()).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Snapshot{ID: r.id}, nil
	}
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("find %s/%s: %w", r.collection, r.id, err)
	}

	snap := fromBSON(raw)
	snap.ID = r.id
	return snap, nil
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

// Documents runs the query server-side, including ordering and limit.
func (q query) Documents(ctx context.Context) ([]store.Snapshot, error) {
	filter, err := buildFilter(q.preds, q.order)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := q.conn.withOperationTimeout(ctx)
	defer cancel()

	cursor, err := q.conn.coll(q.collection).Find(opCtx, filter, findOptions(q.order, q.limit))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.collection, err)
	}
	defer cursor.Close(opCtx)

	var snaps []store.Snapshot
	for cursor.Next(opCtx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", q.collection, err)
		}
		snaps = append(snaps, fromBSON(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.collection, err)
	}

	q.conn.logger.Debug("mongodb find",
		zap.String("collection", q.collection),
		zap.Int("predicates", len(q.preds)),
		zap.Int("results", len(snaps)),
	)
	return snaps, nil
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
	b.writes = append(b.writes, write{ref: ref, data: data})
}

func (b *batch) Len() int { return len(b.writes) }

// Commit upserts every staged document inside one transaction.
func (b *batch) Commit(ctx context.Context) error {
	if b.committed {
		return fmt.Errorf("mongodb batch: already committed")
	}
	if len(b.writes) > store.DefaultMaxBatchWrites {
		return fmt.Errorf("mongodb batch of %d writes: %w", len(b.writes), store.ErrBatchTooLarge)
	}

	refs := make([]*docRef, len(b.writes))
	docs := make([]bson.M, len(b.writes))
	for i, w := range b.writes {
		ref, ok := w.ref.(*docRef)
		if !ok || ref.conn != b.conn {
			return fmt.Errorf("mongodb batch write %d: %w", i, store.ErrForeignRef)
		}
		doc, err := toBSON(ref.id, w.data)
		if err != nil {
			return fmt.Errorf("mongodb batch write %d: %w", i, err)
		}
		refs[i], docs[i] = ref, doc
	}
	if len(b.writes) == 0 {
		b.committed = true
		return nil
	}

	session, err := b.conn.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("mongodb batch: start session: %w", err)
	}
	defer session.EndSession(ctx)

	opCtx, cancel := b.conn.withOperationTimeout(ctx)
	defer cancel()
	_, err = session.WithTransaction(opCtx, func(sc mongo.SessionContext) (interface{}, error) {
		for i, ref := range refs {
			_, err := b.conn.coll(ref.collection).ReplaceOne(sc, ref.filter(), docs[i], options.Replace().SetUpsert(true))
			if err != nil {
				return nil, fmt.Errorf("write %d: %w", i, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("mongodb batch: %w", err)
	}
	b.committed = true
	return nil
}
