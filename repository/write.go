package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/store"
)

// prepare converts caller data into the sanitized record that is written.
func prepare(data any) (document.Fields, error) {
	rec, err := document.Record(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	clean, err := document.Sanitize(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return clean, nil
}

// Create writes data under a store-generated uid and returns the stored
// document.
func (r *Repository[T]) Create(ctx context.Context, data any) (doc Document[T], err error) {
	ctx, done := r.observe(ctx, "create")
	defer func() { done(err) }()

	return r.create(ctx, r.coll().NewDoc(), data)
}

// CreateWithUID writes data under uid, replacing any document stored there,
// and returns the stored document.
func (r *Repository[T]) CreateWithUID(ctx context.Context, uid string, data any) (doc Document[T], err error) {
	ctx, done := r.observe(ctx, "create")
	defer func() { done(err) }()

	if uid == "" {
		return Document[T]{}, fmt.Errorf("%w: empty uid", ErrInvalidFormat)
	}
	return r.create(ctx, r.coll().Doc(uid), data)
}

func (r *Repository[T]) create(ctx context.Context, ref store.DocRef, data any) (Document[T], error) {
	fields, err := prepare(data)
	if err != nil {
		return Document[T]{}, err
	}
	if err := ref.Set(ctx, fields); err != nil {
		return Document[T]{}, fmt.Errorf("create %s: %w", ref.ID(), err)
	}
	return r.readBack(ctx, ref)
}

// readBack reads a document that was just written. A missing document is an
// error: the write succeeded but the result cannot be confirmed.
func (r *Repository[T]) readBack(ctx context.Context, ref store.DocRef) (Document[T], error) {
	snap, err := ref.Get(ctx)
	if err != nil {
		return Document[T]{}, fmt.Errorf("read back %s: %w", ref.ID(), err)
	}
	if !snap.Exists {
		return Document[T]{}, fmt.Errorf("read back %s: %w", ref.ID(), ErrNotFound)
	}
	return Decode[T](ref.ID(), snap.Data)
}

// CreateBatch writes every record of data in one atomic batch and returns the
// stored documents in input order. When uids is non-nil it must hold one uid
// per record; otherwise uids are generated by the store.
func (r *Repository[T]) CreateBatch(ctx context.Context, data []any, uids []string) (docs []Document[T], err error) {
	ctx, done := r.observe(ctx, "create_batch")
	defer func() { done(err) }()

	if uids != nil && len(uids) != len(data) {
		return nil, fmt.Errorf("%w: %d records, %d uids", ErrMismatchedLengths, len(data), len(uids))
	}
	if limit := r.maxBatch(); len(data) > limit {
		return nil, fmt.Errorf("%w: %d records, limit %d", ErrBatchTooLarge, len(data), limit)
	}
	if len(data) == 0 {
		return []Document[T]{}, nil
	}

	records := make([]document.Fields, len(data))
	for i, d := range data {
		rec, err := prepare(d)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records[i] = rec
	}

	coll := r.coll()
	refs := make([]store.DocRef, len(data))
	batch := r.conn.Batch()
	for i, rec := range records {
		if uids != nil {
			if uids[i] == "" {
				return nil, fmt.Errorf("record %d: %w: empty uid", i, ErrInvalidFormat)
			}
			refs[i] = coll.Doc(uids[i])
		} else {
			refs[i] = coll.NewDoc()
		}
		batch.Set(refs[i], rec)
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch of %d: %w", len(refs), err)
	}

	docs = make([]Document[T], len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.readConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			doc, err := r.readBack(gctx, ref)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Update merges updates into the top level of the document stored under uid
// and returns the updated document. Nested records replace the stored
// sub-object. It returns nil when no document exists under uid.
func (r *Repository[T]) Update(ctx context.Context, uid string, updates any) (doc *Document[T], err error) {
	ctx, done := r.observe(ctx, "update")
	defer func() { done(err) }()

	fields, err := prepare(updates)
	if err != nil {
		return nil, err
	}
	return r.update(ctx, uid, fields)
}

// update applies prepared fields to uid. A document that is missing, or
// vanishes before the write or the read back, yields nil.
func (r *Repository[T]) update(ctx context.Context, uid string, fields document.Fields) (*Document[T], error) {
	ref := r.coll().Doc(uid)

	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", uid, err)
	}
	if !snap.Exists {
		return nil, nil
	}

	if err := ref.Update(ctx, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("document vanished before update",
				zap.String("collection", r.collection),
				zap.String("uid", uid),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("update %s: %w", uid, err)
	}

	doc, err := r.readBack(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		r.logger.Warn("document vanished after update",
			zap.String("collection", r.collection),
			zap.String("uid", uid),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes the document stored under uid. Deleting a missing document
// succeeds.
func (r *Repository[T]) Delete(ctx context.Context, uid string) (err error) {
	ctx, done := r.observe(ctx, "delete")
	defer func() { done(err) }()

	if err := r.coll().Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", uid, err)
	}
	return nil
}
