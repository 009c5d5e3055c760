package queue

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-process Store. Its contents do not survive a restart.
type MemoryStore struct {
	mu        sync.Mutex
	items     []Item
	responses []ResponseRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

// List returns items sorted by enqueue time; ties keep insertion order.
func (s *MemoryStore) List(_ context.Context) ([]Item, error) {
	s.mu.Lock()
	items := slices.Clone(s.items)
	s.mu.Unlock()

	slices.SortStableFunc(items, func(a, b Item) int {
		return a.EnqueuedAt.Compare(b.EnqueuedAt)
	})
	return items, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id), nil
}

func (s *MemoryStore) Complete(_ context.Context, rec ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeLocked(rec.ItemID) {
		return ErrItemNotFound
	}
	s.responses = append(s.responses, rec)
	return nil
}

func (s *MemoryStore) Responses(_ context.Context) ([]ResponseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.responses), nil
}

func (s *MemoryStore) removeLocked(id string) bool {
	n := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(it Item) bool { return it.ID == id })
	return len(s.items) != n
}

var _ Store = (*MemoryStore)(nil)
