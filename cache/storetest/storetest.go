// Package storetest holds the behavioural contract every cache.Store
// implementation must satisfy.
package storetest

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"testing"

	"github.com/jonwraymond/offlinekit/cache"
)

// Run exercises newStore against the cache.Store contract.
func Run(t *testing.T, newStore func(t *testing.T) cache.Store) {
	t.Helper()

	t.Run("OpenCreatesGeneration", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if ok, _ := store.Has(ctx, "v1"); ok {
			t.Fatal("Has(v1) = true before Open")
		}
		gen, err := store.Open(ctx, "v1")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if gen.Name() != "v1" {
			t.Errorf("Name() = %q, want v1", gen.Name())
		}
		if ok, _ := store.Has(ctx, "v1"); !ok {
			t.Error("Has(v1) = false after Open")
		}
	})

	t.Run("OpenRejectsInvalidName", func(t *testing.T) {
		store := newStore(t)
		for _, name := range []string{"", "  ", "a\nb"} {
			if _, err := store.Open(context.Background(), name); !errors.Is(err, cache.ErrInvalidName) {
				t.Errorf("Open(%q) error = %v, want ErrInvalidName", name, err)
			}
		}
	})

	t.Run("PutMatchRoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		gen := mustOpen(t, store, "v1")
		key := mustKey(t, "https://app.test/css/main.css")

		if _, ok, err := gen.Match(ctx, key); ok || err != nil {
			t.Fatalf("Match() on empty generation = %v, %v", ok, err)
		}

		want := cache.Response{
			URL:    key.URL,
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": {"text/css"}},
			Body:   []byte("body{}"),
			Type:   cache.TypeBasic,
		}
		if err := gen.Put(ctx, key, want); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		got, ok, err := gen.Match(ctx, key)
		if err != nil || !ok {
			t.Fatalf("Match() = %v, %v", ok, err)
		}
		if got.Status != want.Status || string(got.Body) != string(want.Body) || got.Type != want.Type {
			t.Errorf("Match() = %+v, want %+v", got, want)
		}
		if got.Header.Get("Content-Type") != "text/css" {
			t.Errorf("Content-Type = %q", got.Header.Get("Content-Type"))
		}
	})

	t.Run("MatchReturnsIndependentCopy", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		gen := mustOpen(t, store, "v1")
		key := mustKey(t, "https://app.test/")

		_ = gen.Put(ctx, key, cache.Response{Status: 200, Body: []byte("abc"), Type: cache.TypeBasic})
		first, _, _ := gen.Match(ctx, key)
		first.Body[0] = 'X'

		second, _, _ := gen.Match(ctx, key)
		if string(second.Body) != "abc" {
			t.Errorf("stored body mutated through a matched copy: %q", second.Body)
		}
	})

	t.Run("PutRejectsNonGET", func(t *testing.T) {
		store := newStore(t)
		gen := mustOpen(t, store, "v1")
		key, _ := cache.NewRequestKey(http.MethodPost, "https://app.test/api/ask")

		err := gen.Put(context.Background(), key, cache.Response{Status: 200})
		if !errors.Is(err, cache.ErrNotCacheable) {
			t.Errorf("Put(POST) error = %v, want ErrNotCacheable", err)
		}
	})

	t.Run("PutRejectsEmptyKey", func(t *testing.T) {
		store := newStore(t)
		gen := mustOpen(t, store, "v1")

		err := gen.Put(context.Background(), cache.RequestKey{Method: http.MethodGet}, cache.Response{Status: 200})
		if !errors.Is(err, cache.ErrInvalidKey) {
			t.Errorf("Put(empty url) error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		gen := mustOpen(t, store, "v1")
		key := mustKey(t, "https://app.test/index.html")

		_ = gen.Put(ctx, key, cache.Response{Status: 200, Body: []byte("one")})
		_ = gen.Put(ctx, key, cache.Response{Status: 200, Body: []byte("two")})

		got, _, _ := gen.Match(ctx, key)
		if string(got.Body) != "two" {
			t.Errorf("Match() body = %q, want two", got.Body)
		}
		keys, _ := gen.Keys(ctx)
		if len(keys) != 1 {
			t.Errorf("Keys() = %v, want exactly one", keys)
		}
	})

	t.Run("DeleteEntry", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		gen := mustOpen(t, store, "v1")
		key := mustKey(t, "https://app.test/a")

		_ = gen.Put(ctx, key, cache.Response{Status: 200})
		if removed, err := gen.Delete(ctx, key); !removed || err != nil {
			t.Fatalf("Delete() = %v, %v", removed, err)
		}
		if removed, err := gen.Delete(ctx, key); removed || err != nil {
			t.Errorf("second Delete() = %v, %v, want false, nil", removed, err)
		}
		if _, ok, _ := gen.Match(ctx, key); ok {
			t.Error("entry still present after Delete")
		}
	})

	t.Run("GenerationsAreIsolated", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		v1 := mustOpen(t, store, "v1")
		v2 := mustOpen(t, store, "v2")
		key := mustKey(t, "https://app.test/")

		_ = v1.Put(ctx, key, cache.Response{Status: 200})
		if _, ok, _ := v2.Match(ctx, key); ok {
			t.Error("entry written to v1 visible in v2")
		}
	})

	t.Run("NamesAndDelete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		for _, name := range []string{"v1", "v2", "v3"} {
			gen := mustOpen(t, store, name)
			_ = gen.Put(ctx, mustKey(t, "https://app.test/"+name), cache.Response{Status: 200})
		}

		names, err := store.Names(ctx)
		if err != nil {
			t.Fatalf("Names() error = %v", err)
		}
		slices.Sort(names)
		if !slices.Equal(names, []string{"v1", "v2", "v3"}) {
			t.Fatalf("Names() = %v", names)
		}

		if removed, err := store.Delete(ctx, "v2"); !removed || err != nil {
			t.Fatalf("Delete(v2) = %v, %v", removed, err)
		}
		if removed, _ := store.Delete(ctx, "v2"); removed {
			t.Error("second Delete(v2) reported removal")
		}

		names, _ = store.Names(ctx)
		slices.Sort(names)
		if !slices.Equal(names, []string{"v1", "v3"}) {
			t.Errorf("Names() after delete = %v", names)
		}

		reopened := mustOpen(t, store, "v2")
		if keys, _ := reopened.Keys(ctx); len(keys) != 0 {
			t.Errorf("recreated generation kept old entries: %v", keys)
		}
	})

	t.Run("ConcurrentWriters", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		gen := mustOpen(t, store, "v1")
		key := mustKey(t, "https://app.test/shared")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = gen.Put(ctx, key, cache.Response{Status: 200, Body: []byte("same")})
				_, _, _ = gen.Match(ctx, key)
			}()
		}
		wg.Wait()

		got, ok, _ := gen.Match(ctx, key)
		if !ok || string(got.Body) != "same" {
			t.Errorf("Match() after concurrent writes = %v, %q", ok, got.Body)
		}
	})
}

func mustOpen(t *testing.T, store cache.Store, name string) cache.Generation {
	t.Helper()
	gen, err := store.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", name, err)
	}
	return gen
}

func mustKey(t *testing.T, rawURL string) cache.RequestKey {
	t.Helper()
	key, err := cache.NewRequestKey(http.MethodGet, rawURL)
	if err != nil {
		t.Fatalf("NewRequestKey(%q) error = %v", rawURL, err)
	}
	return key
}
