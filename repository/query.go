package repository

import (
	"context"
	"fmt"

	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/store"
)

type findOptions struct {
	limit int
	order *clause.Order
}

// FindOption configures a query.
type FindOption func(*findOptions)

// WithLimit caps the number of results. Zero means no cap.
func WithLimit(n int) FindOption {
	return func(o *findOptions) {
		o.limit = n
	}
}

// WithOrder orders results. Documents lacking the ordering field are excluded
// by the store.
func WithOrder(order clause.Order) FindOption {
	return func(o *findOptions) {
		o.order = &order
	}
}

func resolveFindOptions(opts []FindOption) (findOptions, error) {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit < 0 {
		return o, fmt.Errorf("%w: %d", ErrInvalidLimit, o.limit)
	}
	if o.order != nil {
		if err := o.order.Validate(); err != nil {
			return o, err
		}
	}
	return o, nil
}

// FindByUID returns the document stored under uid, or nil when there is none.
func (r *Repository[T]) FindByUID(ctx context.Context, uid string) (doc *Document[T], err error) {
	ctx, done := r.observe(ctx, "find_by_uid")
	defer func() { done(err) }()

	return r.findByUID(ctx, uid)
}

// FindByUIDOrFail is FindByUID returning ErrNotFound instead of nil.
func (r *Repository[T]) FindByUIDOrFail(ctx context.Context, uid string) (doc Document[T], err error) {
	ctx, done := r.observe(ctx, "find_by_uid")
	defer func() { done(err) }()

	found, err := r.findByUID(ctx, uid)
	if err != nil {
		return Document[T]{}, err
	}
	if found == nil {
		return Document[T]{}, fmt.Errorf("%s/%s: %w", r.collection, uid, ErrNotFound)
	}
	return *found, nil
}

func (r *Repository[T]) findByUID(ctx context.Context, uid string) (*Document[T], error) {
	snap, err := r.coll().Doc(uid).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", uid, err)
	}
	if !snap.Exists {
		return nil, nil
	}
	doc, err := Decode[T](uid, snap.Data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Find returns the documents matching filter. An empty filter matches every
// document of the collection. No match yields an empty slice.
func (r *Repository[T]) Find(ctx context.Context, filter clause.Filter, opts ...FindOption) (docs []Document[T], err error) {
	ctx, done := r.observe(ctx, "find")
	defer func() { done(err) }()

	o, err := resolveFindOptions(opts)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, filter, o)
}

func (r *Repository[T]) find(ctx context.Context, filter clause.Filter, o findOptions) ([]Document[T], error) {
	q := store.Apply(r.coll(), clause.Compile(filter), o.order, o.limit)
	snaps, err := q.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", r.collection, err)
	}

	docs := make([]Document[T], 0, len(snaps))
	for _, snap := range snaps {
		doc, err := Decode[T](snap.ID, snap.Data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// findFirst runs the query limited to one result.
func (r *Repository[T]) findFirst(ctx context.Context, filter clause.Filter, opts []FindOption) (*Document[T], error) {
	o, err := resolveFindOptions(opts)
	if err != nil {
		return nil, err
	}
	o.limit = 1

	docs, err := r.find(ctx, filter, o)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return &docs[0], nil
}

// FindOne returns the first document matching filter, or nil when none does.
// Any WithLimit option is overridden by a limit of one.
func (r *Repository[T]) FindOne(ctx context.Context, filter clause.Filter, opts ...FindOption) (doc *Document[T], err error) {
	ctx, done := r.observe(ctx, "find_one")
	defer func() { done(err) }()

	return r.findFirst(ctx, filter, opts)
}

// FindOneOrFail is FindOne returning ErrNotFound instead of nil.
func (r *Repository[T]) FindOneOrFail(ctx context.Context, filter clause.Filter, opts ...FindOption) (doc Document[T], err error) {
	ctx, done := r.observe(ctx, "find_one")
	defer func() { done(err) }()

	found, err := r.findFirst(ctx, filter, opts)
	if err != nil {
		return Document[T]{}, err
	}
	if found == nil {
		return Document[T]{}, fmt.Errorf("%s: %w", r.collection, ErrNotFound)
	}
	return *found, nil
}

// FindAndUpdate applies updates to every document matching filter, one after
// the other, and returns the updated documents. It is not atomic: documents
// that disappear before their update are skipped, and a failure leaves
// earlier updates in place.
func (r *Repository[T]) FindAndUpdate(ctx context.Context, filter clause.Filter, updates any, opts ...FindOption) (docs []Document[T], err error) {
	ctx, done := r.observe(ctx, "find_and_update")
	defer func() { done(err) }()

	fields, err := prepare(updates)
	if err != nil {
		return nil, err
	}
	o, err := resolveFindOptions(opts)
	if err != nil {
		return nil, err
	}

	matches, err := r.find(ctx, filter, o)
	if err != nil {
		return nil, err
	}

	docs = make([]Document[T], 0, len(matches))
	for _, m := range matches {
		updated, err := r.update(ctx, m.UID, fields)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			docs = append(docs, *updated)
		}
	}
	return docs, nil
}

// FindOneAndUpdate applies updates to the first document matching filter and
// returns it, or nil when nothing matches.
func (r *Repository[T]) FindOneAndUpdate(ctx context.Context, filter clause.Filter, updates any, opts ...FindOption) (doc *Document[T], err error) {
	ctx, done := r.observe(ctx, "find_one_and_update")
	defer func() { done(err) }()

	fields, err := prepare(updates)
	if err != nil {
		return nil, err
	}
	first, err := r.findFirst(ctx, filter, opts)
	if err != nil || first == nil {
		return nil, err
	}
	return r.update(ctx, first.UID, fields)
}
