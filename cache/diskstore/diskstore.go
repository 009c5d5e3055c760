// Package diskstore persists cache generations in a LevelDB database so that
// precached assets survive process restarts.
//
// Key layout:
//
//	m/seq                         last allocated generation sequence
//	n/<name>                      generation marker, value is its sequence
//	e/<seq:8><METHOD URL>         JSON encoded cache.Response
//
// Entries are keyed by sequence rather than name, so a generation that is
// deleted and recreated never sees the entries of its predecessor.
package diskstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/jonwraymond/offlinekit/cache"
)

var (
	seqKey      = []byte("m/seq")
	namePrefix  = []byte("n/")
	entryPrefix = []byte("e/")
)

// Store is a cache.Store backed by LevelDB.
type Store struct {
	db    *leveldb.DB
	owned bool

	mu      sync.RWMutex
	lastSeq uint64
}

// Open opens (or creates) a database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("diskstore: open %s: %w", path, err)
	}
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an already opened database. The caller keeps ownership of db.
func New(db *leveldb.DB) (*Store, error) {
	if db == nil {
		return nil, cache.ErrNilStore
	}
	s := &Store{db: db}

	val, err := db.Get(seqKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("diskstore: read sequence: %w", err)
	case len(val) == 8:
		s.lastSeq = binary.BigEndian.Uint64(val)
	default:
		return nil, fmt.Errorf("diskstore: corrupt sequence record")
	}
	return s, nil
}

// Close releases the database when the store opened it itself.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Open returns the named generation, creating it when absent.
func (s *Store) Open(ctx context.Context, name string) (cache.Generation, error) {
	if err := cache.ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if ok {
		return &generation{store: s, name: name, seq: seq}, nil
	}

	seq = s.lastSeq + 1
	batch := new(leveldb.Batch)
	batch.Put(seqKey, encodeSeq(seq))
	batch.Put(nameKey(name), encodeSeq(seq))
	if err := s.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("diskstore: create %q: %w", name, err)
	}
	s.lastSeq = seq
	return &generation{store: s, name: name, seq: seq}, nil
}

// Has reports whether the named generation exists.
func (s *Store) Has(_ context.Context, name string) (bool, error) {
	ok, err := s.db.Has(nameKey(name), nil)
	if err != nil {
		return false, fmt.Errorf("diskstore: has %q: %w", name, err)
	}
	return ok, nil
}

// Names lists generations in creation order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	type named struct {
		name string
		seq  uint64
	}
	var all []named

	iter := s.db.NewIterator(ldb_util.BytesPrefix(namePrefix), nil)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			iter.Release()
			return nil, err
		}
		name := string(iter.Key()[len(namePrefix):])
		seq, err := decodeMarker(name, iter.Value())
		if err != nil {
			iter.Release()
			return nil, err
		}
		all = append(all, named{name: name, seq: seq})
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("diskstore: list names: %w", err)
	}

	slices.SortFunc(all, func(a, b named) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	names := make([]string, len(all))
	for i, n := range all {
		names[i] = n.name
	}
	return names, nil
}

// Delete removes a generation and its entries in a single batch.
func (s *Store) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok, err := s.lookup(name)
	if err != nil || !ok {
		return false, err
	}

	batch := new(leveldb.Batch)
	batch.Delete(nameKey(name))

	iter := s.db.NewIterator(ldb_util.BytesPrefix(entryRange(seq)), nil)
	for iter.Next() {
		batch.Delete(slices.Clone(iter.Key()))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return false, fmt.Errorf("diskstore: scan %q: %w", name, err)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return false, fmt.Errorf("diskstore: delete %q: %w", name, err)
	}
	return true, nil
}

// lookup must be called with s.mu held.
func (s *Store) lookup(name string) (uint64, bool, error) {
	val, err := s.db.Get(nameKey(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("diskstore: lookup %q: %w", name, err)
	}
	seq, err := decodeMarker(name, val)
	if err != nil {
		return 0, false, err
	}
	return seq, true, nil
}

// decodeMarker reads the creation sequence stored under a name key.
func decodeMarker(name string, val []byte) (uint64, error) {
	if len(val) != 8 {
		return 0, fmt.Errorf("diskstore: corrupt marker for %q", name)
	}
	return binary.BigEndian.Uint64(val), nil
}

type generation struct {
	store *Store
	name  string
	seq   uint64
}

func (g *generation) Name() string { return g.name }

func (g *generation) Match(_ context.Context, key cache.RequestKey) (cache.Response, bool, error) {
	val, err := g.store.db.Get(g.entryKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return cache.Response{}, false, nil
	}
	if err != nil {
		return cache.Response{}, false, fmt.Errorf("diskstore: match %s: %w", key, err)
	}

	var resp cache.Response
	if err := json.Unmarshal(val, &resp); err != nil {
		return cache.Response{}, false, fmt.Errorf("diskstore: decode %s: %w", key, err)
	}
	return resp, true, nil
}

// Put is a no-op once the generation has been deleted from the store.
func (g *generation) Put(_ context.Context, key cache.RequestKey, resp cache.Response) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	val, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("diskstore: encode %s: %w", key, err)
	}

	g.store.mu.RLock()
	defer g.store.mu.RUnlock()

	if !g.live() {
		return nil
	}
	if err := g.store.db.Put(g.entryKey(key), val, nil); err != nil {
		return fmt.Errorf("diskstore: put %s: %w", key, err)
	}
	return nil
}

func (g *generation) Delete(_ context.Context, key cache.RequestKey) (bool, error) {
	k := g.entryKey(key)

	g.store.mu.RLock()
	defer g.store.mu.RUnlock()

	ok, err := g.store.db.Has(k, nil)
	if err != nil || !ok {
		return false, err
	}
	if err := g.store.db.Delete(k, nil); err != nil {
		return false, fmt.Errorf("diskstore: delete %s: %w", key, err)
	}
	return true, nil
}

func (g *generation) Keys(_ context.Context) ([]cache.RequestKey, error) {
	prefix := entryRange(g.seq)

	var keys []cache.RequestKey
	iter := g.store.db.NewIterator(ldb_util.BytesPrefix(prefix), nil)
	for iter.Next() {
		key, err := cache.ParseRequestKey(string(iter.Key()[len(prefix):]))
		if err != nil {
			iter.Release()
			return nil, err
		}
		keys = append(keys, key)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("diskstore: list keys: %w", err)
	}
	return keys, nil
}

// live must be called with the store lock held.
func (g *generation) live() bool {
	seq, ok, err := g.store.lookup(g.name)
	return err == nil && ok && seq == g.seq
}

func (g *generation) entryKey(key cache.RequestKey) []byte {
	return append(entryRange(g.seq), key.String()...)
}

func nameKey(name string) []byte {
	return append(slices.Clone(namePrefix), name...)
}

func entryRange(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(slices.Clone(entryPrefix), seq)
}

func encodeSeq(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

var _ cache.Store = (*Store)(nil)
