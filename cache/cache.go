package cache

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// MaxNameLength is the maximum allowed length for a generation name.
const MaxNameLength = 256

// Sentinel errors for cache operations.
var (
	ErrNilStore     = errors.New("cache: store is nil")
	ErrInvalidName  = errors.New("cache: generation name is invalid")
	ErrNameTooLong  = errors.New("cache: generation name exceeds max length")
	ErrInvalidKey   = errors.New("cache: request key is invalid")
	ErrNotCacheable = errors.New("cache: only GET requests can be stored")
)

// Store is a set of named cache generations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Open creates the generation when absent; Delete is idempotent.
type Store interface {
	// Open returns the named generation, creating it if it does not exist.
	Open(ctx context.Context, name string) (Generation, error)

	// Has reports whether the named generation exists.
	Has(ctx context.Context, name string) (bool, error)

	// Names lists every existing generation.
	Names(ctx context.Context) ([]string, error)

	// Delete removes a generation and all of its entries.
	// Reports whether a generation was removed.
	Delete(ctx context.Context, name string) (bool, error)
}

// Generation is one versioned collection of cached responses.
//
// Concurrent writers to the same key are last-write-wins.
type Generation interface {
	// Name returns the generation name (the version identifier).
	Name() string

	// Match looks up a stored response. Returns (Response{}, false, nil) on miss.
	Match(ctx context.Context, key RequestKey) (Response, bool, error)

	// Put stores a snapshot of resp under key, replacing any previous entry.
	Put(ctx context.Context, key RequestKey, resp Response) error

	// Delete removes one entry. Reports whether an entry was removed.
	Delete(ctx context.Context, key RequestKey) (bool, error)

	// Keys lists the keys stored in the generation.
	Keys(ctx context.Context) ([]RequestKey, error)
}

// ValidateName checks if name is usable as a generation name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if strings.ContainsAny(name, "\x00\n\r") {
		return ErrInvalidName
	}
	return nil
}

// ValidateKey enforces the store-side half of the eligibility rule: nothing
// but GET entries with a valid absolute URL ever lands in a generation.
// Store implementations call it from Generation.Put.
func ValidateKey(key RequestKey) error {
	if key.URL == "" {
		return ErrInvalidKey
	}
	if key.Method != http.MethodGet {
		return ErrNotCacheable
	}
	return nil
}
