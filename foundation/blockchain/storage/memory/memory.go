// Package memory implements storage.Store backed by an in-process map.
// It backs tests, where durability across restarts is not required; the
// node service itself always opens the leveldb store.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/carbonchain/node/foundation/blockchain/storage"
)

// Store is an in-memory storage.Store implementation. The zero value is
// not usable; construct with New.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New constructs an empty in-memory Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key, or storage.ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[string(key)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Has reports whether key is present.
func (s *Store) Has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[string(key)]
	return ok, nil
}

// batch records writes to apply in WriteBatch.
type batch struct {
	puts    map[string][]byte
	deletes map[string]bool
}

// NewBatch returns an empty batch.
func (s *Store) NewBatch() storage.Batch {
	return &batch{
		puts:    make(map[string][]byte),
		deletes: make(map[string]bool),
	}
}

func (b *batch) Put(key, value []byte) {
	k := string(key)
	delete(b.deletes, k)

	v := make([]byte, len(value))
	copy(v, value)
	b.puts[k] = v
}

func (b *batch) Delete(key []byte) {
	k := string(key)
	delete(b.puts, k)
	b.deletes[k] = true
}

// WriteBatch applies every recorded Put/Delete under a single lock, so a
// concurrent reader never observes a partially-applied batch.
func (s *Store) WriteBatch(raw storage.Batch) error {
	b := raw.(*batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range b.deletes {
		delete(s.data, k)
	}
	for k, v := range b.puts {
		s.data[k] = v
	}

	return nil
}

// Iterate returns an Iterator walking every key with the given prefix in
// ascending order. It snapshots the matching keys up front, so
// concurrent writes during iteration are not observed.
func (s *Store) Iterate(prefix []byte) storage.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.data[k]
	}

	return &iterator{keys: keys, values: values, index: -1}
}

// Close is a no-op: an in-memory store has nothing to release.
func (s *Store) Close() error {
	return nil
}

type iterator struct {
	keys   []string
	values [][]byte
	index  int
}

func (it *iterator) Next() bool {
	it.index++
	return it.index < len(it.keys)
}

func (it *iterator) Key() []byte {
	return []byte(it.keys[it.index])
}

func (it *iterator) Value() []byte {
	return it.values[it.index]
}

func (it *iterator) Err() error {
	return nil
}

func (it *iterator) Close() error {
	return nil
}
