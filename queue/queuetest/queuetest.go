// Package queuetest holds the behavioural contract every queue.Store
// implementation must satisfy.
package queuetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/offlinekit/queue"
)

var base = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func item(id string, offset time.Duration) queue.Item {
	return queue.Item{
		ID:         id,
		Payload:    json.RawMessage(`{"question":"` + id + `"}`),
		EnqueuedAt: base.Add(offset),
	}
}

// Run exercises newStore against the queue.Store contract.
func Run(t *testing.T, newStore func(t *testing.T) queue.Store) {
	t.Helper()

	t.Run("ListIsFIFOByEnqueueTime", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		// Appended out of order on purpose.
		for _, it := range []queue.Item{item("b", time.Second), item("a", 0), item("c", 2*time.Second)} {
			if err := s.Append(ctx, it); err != nil {
				t.Fatalf("Append(%s) error = %v", it.ID, err)
			}
		}

		items, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		var ids []string
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
			t.Errorf("List() order = %v, want [a b c]", ids)
		}
		if string(items[0].Payload) != `{"question":"a"}` {
			t.Errorf("payload = %s", items[0].Payload)
		}
		if !items[0].EnqueuedAt.Equal(base) {
			t.Errorf("EnqueuedAt = %v, want %v", items[0].EnqueuedAt, base)
		}
		if n, _ := s.Len(ctx); n != 3 {
			t.Errorf("Len() = %d, want 3", n)
		}
	})

	t.Run("EqualTimestampsKeepInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, id := range []string{"x", "y", "z"} {
			_ = s.Append(ctx, item(id, 0))
		}
		items, _ := s.List(ctx)
		if len(items) != 3 || items[0].ID != "x" || items[2].ID != "z" {
			t.Errorf("List() = %v", items)
		}
	})

	t.Run("CompleteRecordsAndRemoves", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Append(ctx, item("a", 0))
		_ = s.Append(ctx, item("b", time.Second))

		rec := queue.ResponseRecord{ItemID: "a", Result: "sow after rains", RecordedAt: base.Add(time.Minute)}
		if err := s.Complete(ctx, rec); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}

		items, _ := s.List(ctx)
		if len(items) != 1 || items[0].ID != "b" {
			t.Errorf("List() after Complete = %v", items)
		}
		recs, err := s.Responses(ctx)
		if err != nil {
			t.Fatalf("Responses() error = %v", err)
		}
		if len(recs) != 1 || recs[0].ItemID != "a" || recs[0].Result != "sow after rains" {
			t.Errorf("Responses() = %+v", recs)
		}
	})

	t.Run("CompleteUnknownItem", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.Complete(ctx, queue.ResponseRecord{ItemID: "ghost", Result: "x", RecordedAt: base})
		if !errors.Is(err, queue.ErrItemNotFound) {
			t.Errorf("Complete(ghost) error = %v, want ErrItemNotFound", err)
		}
		if recs, _ := s.Responses(ctx); len(recs) != 0 {
			t.Errorf("Responses() = %+v, want none", recs)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Append(ctx, item("a", 0))

		if ok, err := s.Remove(ctx, "a"); !ok || err != nil {
			t.Fatalf("Remove(a) = %v, %v", ok, err)
		}
		if ok, err := s.Remove(ctx, "a"); ok || err != nil {
			t.Errorf("second Remove(a) = %v, %v, want false, nil", ok, err)
		}
		if n, _ := s.Len(ctx); n != 0 {
			t.Errorf("Len() = %d, want 0", n)
		}
	})
}
