package repository_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/store"
	"github.com/jacentio/trove/store/memory"
)

// spyConn wraps the in-memory store, counting writes and injecting races.
type spyConn struct {
	*memory.Conn

	mu     sync.Mutex
	writes int
	hidden map[string]bool

	// beforeUpdate runs before DocRef.Update reaches the store.
	beforeUpdate func(id string)
}

func newSpy() *spyConn {
	return &spyConn{
		Conn:   memory.New(memory.WithIDGenerator(sequence())),
		hidden: map[string]bool{},
	}
}

func sequence() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func (s *spyConn) Collection(name string) store.CollectionRef {
	return &spyCollection{CollectionRef: s.Conn.Collection(name), spy: s}
}

func (s *spyConn) Batch() store.WriteBatch {
	return &spyBatch{WriteBatch: s.Conn.Batch(), spy: s}
}

func (s *spyConn) countWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
}

func (s *spyConn) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Hide makes Get report id as missing.
func (s *spyConn) Hide(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[id] = true
}

func (s *spyConn) isHidden(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden[id]
}

type spyCollection struct {
	store.CollectionRef
	spy *spyConn
}

func (c *spyCollection) Doc(id string) store.DocRef {
	return &spyRef{DocRef: c.CollectionRef.Doc(id), spy: c.spy}
}

func (c *spyCollection) NewDoc() store.DocRef {
	return &spyRef{DocRef: c.CollectionRef.NewDoc(), spy: c.spy}
}

type spyRef struct {
	store.DocRef
	spy *spyConn
}

func (r *spyRef) Set(ctx context.Context, data document.Fields) error {
	r.spy.countWrite()
	return r.DocRef.Set(ctx, data)
}

func (r *spyRef) Update(ctx context.Context, data document.Fields) error {
	if r.spy.beforeUpdate != nil {
		r.spy.beforeUpdate(r.ID())
	}
	r.spy.countWrite()
	return r.DocRef.Update(ctx, data)
}

func (r *spyRef) Delete(ctx context.Context) error {
	r.spy.countWrite()
	return r.DocRef.Delete(ctx)
}

func (r *spyRef) Get(ctx context.Context) (store.Snapshot, error) {
	if r.spy.isHidden(r.ID()) {
		return store.Snapshot{ID: r.ID()}, nil
	}
	return r.DocRef.Get(ctx)
}

type spyBatch struct {
	store.WriteBatch
	spy *spyConn
}

func (b *spyBatch) Set(ref store.DocRef, data document.Fields) {
	if r, ok := ref.(*spyRef); ok {
		ref = r.DocRef
	}
	b.WriteBatch.Set(ref, data)
}

func (b *spyBatch) Commit(ctx context.Context) error {
	b.spy.countWrite()
	return b.WriteBatch.Commit(ctx)
}

// limitedConn accepts two writes per batch.
type limitedConn struct {
	*spyConn
}

func (limitedConn) MaxBatchWrites() int { return 2 }

type address struct {
	City string `doc:"city"`
	Zip  string `doc:"zip,omitempty"`
}

type user struct {
	Email   string   `doc:"email"`
	Name    string   `doc:"name,omitempty"`
	Age     int      `doc:"age"`
	Tags    []string `doc:"tags,omitempty"`
	Address *address `doc:"address,omitempty"`
}
