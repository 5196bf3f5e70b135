// Package repository provides typed access to one collection of a document
// store.
//
// A Repository[T] converts caller data into sanitized records, writes them
// through a store.Connection and decodes what the store returns into
// Document[T] values. Filters are built with package clause and compiled into
// conjunctive predicates.
//
// Repositories are stateless apart from their configuration and are safe for
// concurrent use. Read-modify-write operations (Update, FindAndUpdate,
// FindOneAndUpdate) resolve documents before acting on them and are not
// isolated from concurrent writers.
package repository

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jacentio/trove/store"
)

// MaxBatchSize is the largest CreateBatch input, unless the connection
// accepts fewer writes per atomic batch.
const MaxBatchSize = 500

// DefaultReadConcurrency bounds the concurrent reads issued after a batch write.
const DefaultReadConcurrency = 8

// TracerName is the instrumentation name of repository spans.
const TracerName = "github.com/jacentio/trove/repository"

// Repository reads and writes documents of type T in one collection.
type Repository[T any] struct {
	conn            store.Connection
	collection      string
	logger          *zap.Logger
	metrics         *Metrics
	tracer          trace.Tracer
	readConcurrency int
}

type options struct {
	logger          *zap.Logger
	metrics         *Metrics
	tracer          trace.Tracer
	readConcurrency int
}

// Option configures a Repository.
type Option func(*options)

// WithLogger sets the logger. Operations log at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records operation counts and latencies in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer. By default spans go to the global
// OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithReadConcurrency bounds the concurrent reads issued after a batch write.
func WithReadConcurrency(n int) Option {
	return func(o *options) {
		o.readConcurrency = n
	}
}

// New creates a repository over collection.
func New[T any](conn store.Connection, collection string, opts ...Option) *Repository[T] {
	o := options{
		logger:          zap.NewNop(),
		readConcurrency: DefaultReadConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(TracerName)
	}
	if o.readConcurrency < 1 {
		o.readConcurrency = 1
	}

	return &Repository[T]{
		conn:            conn,
		collection:      collection,
		logger:          o.logger,
		metrics:         o.metrics,
		tracer:          o.tracer,
		readConcurrency: o.readConcurrency,
	}
}

// FromRegistry creates a repository over the connection registered under name.
func FromRegistry[T any](reg *store.Registry, name, collection string, opts ...Option) (*Repository[T], error) {
	conn, err := reg.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("repository %s: %w", collection, err)
	}
	return New[T](conn, collection, opts...), nil
}

// Collection returns the collection name.
func (r *Repository[T]) Collection() string {
	return r.collection
}

// Connection returns the underlying connection.
func (r *Repository[T]) Connection() store.Connection {
	return r.conn
}

// maxBatch returns the CreateBatch limit for the connection.
func (r *Repository[T]) maxBatch() int {
	return min(MaxBatchSize, store.MaxBatchWrites(r.conn))
}

func (r *Repository[T]) coll() store.CollectionRef {
	return r.conn.Collection(r.collection)
}
