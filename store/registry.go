package store

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultName is the registry name used when none is given.
const DefaultName = "admin"

// Registry maps names to connections, so that code can pick a store by name
// instead of carrying the connection around.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Connection),
	}
}

// Register adds conn under name. An empty name means DefaultName.
func (r *Registry) Register(conn Connection, name string) error {
	if name == "" {
		name = DefaultName
	}
	if conn == nil {
		return fmt.Errorf("register %q: nil connection", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.conns[name]; taken {
		return fmt.Errorf("connection %q: %w", name, ErrAlreadyExists)
	}
	r.conns[name] = conn
	return nil
}

// Resolve returns the connection registered under name. An empty name means
// DefaultName.
func (r *Registry) Resolve(name string) (Connection, error) {
	if name == "" {
		name = DefaultName
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[name]
	if !ok {
		return nil, fmt.Errorf("connection %q: %w", name, ErrNotFound)
	}
	return conn, nil
}

// Unregister removes name and reports whether it was registered. An empty
// name means DefaultName.
func (r *Registry) Unregister(name string) bool {
	if name == "" {
		name = DefaultName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[name]
	delete(r.conns, name)
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
