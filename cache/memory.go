package cache

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-process Store. Generations are listed in creation order.
type MemoryStore struct {
	mu    sync.RWMutex
	gens  map[string]*memoryGeneration
	order []string
}

type memoryGeneration struct {
	name    string
	mu      sync.RWMutex
	entries map[RequestKey]Response
	order   []RequestKey
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		gens: make(map[string]*memoryGeneration),
	}
}

// Open returns the named generation, creating it when absent.
func (s *MemoryStore) Open(_ context.Context, name string) (Generation, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen, ok := s.gens[name]; ok {
		return gen, nil
	}
	gen := &memoryGeneration{
		name:    name,
		entries: make(map[RequestKey]Response),
	}
	s.gens[name] = gen
	s.order = append(s.order, name)
	return gen, nil
}

// Has reports whether the named generation exists.
func (s *MemoryStore) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.gens[name]
	return ok, nil
}

// Names lists generations in creation order.
func (s *MemoryStore) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

// Delete removes a generation. Idempotent.
func (s *MemoryStore) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.gens[name]; !ok {
		return false, nil
	}
	delete(s.gens, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	return true, nil
}

func (g *memoryGeneration) Name() string { return g.name }

func (g *memoryGeneration) Match(_ context.Context, key RequestKey) (Response, bool, error) {
	g.mu.RLock()
	resp, ok := g.entries[key]
	g.mu.RUnlock()

	if !ok {
		return Response{}, false, nil
	}
	return resp.Clone(), true, nil
}

func (g *memoryGeneration) Put(_ context.Context, key RequestKey, resp Response) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	g.mu.Lock()
	if _, exists := g.entries[key]; !exists {
		g.order = append(g.order, key)
	}
	g.entries[key] = resp.Clone()
	g.mu.Unlock()
	return nil
}

func (g *memoryGeneration) Delete(_ context.Context, key RequestKey) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entries[key]; !ok {
		return false, nil
	}
	delete(g.entries, key)
	g.order = slices.DeleteFunc(g.order, func(k RequestKey) bool { return k == key })
	return true, nil
}

func (g *memoryGeneration) Keys(_ context.Context) ([]RequestKey, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.order), nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
