package cache_test

import (
	"context"
	"slices"
	"testing"

	"github.com/jonwraymond/offlinekit/cache"
	"github.com/jonwraymond/offlinekit/cache/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) cache.Store {
		return cache.NewMemoryStore()
	})
}

func TestMemoryStore_NamesInCreationOrder(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()

	for _, name := range []string{"agriassist-v1.0.2", "agriassist-v1.0.0", "agriassist-v1.0.1"} {
		if _, err := store.Open(ctx, name); err != nil {
			t.Fatalf("Open(%q) error = %v", name, err)
		}
	}

	names, _ := store.Names(ctx)
	want := []string{"agriassist-v1.0.2", "agriassist-v1.0.0", "agriassist-v1.0.1"}
	if !slices.Equal(names, want) {
		t.Errorf("Names() = %v, want %v", names, want)
	}
}

func TestMemoryStore_OpenReturnsSameGeneration(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()

	a, _ := store.Open(ctx, "v1")
	key, _ := cache.NewRequestKey("GET", "https://app.test/")
	_ = a.Put(ctx, key, cache.Response{Status: 200})

	b, _ := store.Open(ctx, "v1")
	if _, ok, _ := b.Match(ctx, key); !ok {
		t.Error("second Open did not see entries written through the first handle")
	}
}
