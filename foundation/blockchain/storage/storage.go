// Package storage defines the key-value backing-store contract the node's
// storage collaborator must satisfy: point lookups and atomic batch
// writes, keyed by the canonical encodings for block_by_height,
// block_by_hash, tx_by_id, utxo(OutPoint), certificate_by_id,
// project_by_id, and address_index.
//
// This package only defines the contract and the key layout; concrete
// backends live in the memory and leveldb subpackages.
package storage

import "errors"

// ErrNotFound is returned by Get and the point-lookup helpers when a key
// is absent.
var ErrNotFound = errors.New("storage: not found")

// Batch collects a set of writes to be applied atomically. A Batch must
// not be reused after WriteBatch.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
}

// Iterator walks a key range in ascending key order. Callers must call
// Close when done.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Store is the contract every backend (memory, leveldb) implements. It
// is the storage collaborator a node wires in externally.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Has reports whether key is present without copying its value.
	Has(key []byte) (bool, error)

	// NewBatch returns an empty Batch ready for Put/Delete calls.
	NewBatch() Batch

	// WriteBatch applies every Put/Delete recorded in b atomically: a
	// reader never observes a partially-applied batch.
	WriteBatch(b Batch) error

	// Iterate returns an Iterator over every key with the given
	// prefix, in ascending order.
	Iterate(prefix []byte) Iterator

	// Close releases any resources held by the store.
	Close() error
}
