// Package leveldb implements storage.Store on top of
// github.com/syndtr/goleveldb, the durable backend the node binds its
// storage collaborator to. Unlike a flat-file-per-block log, it gives
// true atomic batch writes (leveldb.Batch) and ordered point lookups.
package leveldb

import (
	"errors"

	"github.com/carbonchain/node/foundation/blockchain/storage"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Store wraps a goleveldb database to satisfy storage.Store.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a leveldb database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Get returns the value stored under key, or storage.ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Has reports whether key is present.
func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

// NewBatch returns an empty goleveldb batch.
func (s *Store) NewBatch() storage.Batch {
	return &batch{b: new(leveldb.Batch)}
}

type batch struct {
	b *leveldb.Batch
}

func (b *batch) Put(key, value []byte) {
	b.b.Put(key, value)
}

func (b *batch) Delete(key []byte) {
	b.b.Delete(key)
}

// WriteBatch applies b atomically via goleveldb's native batch write.
func (s *Store) WriteBatch(raw storage.Batch) error {
	b := raw.(*batch)
	return s.db.Write(b.b, nil)
}

// Iterate returns an Iterator walking every key with the given prefix in
// ascending order, backed by goleveldb's native range iterator.
func (s *Store) Iterate(prefix []byte) storage.Iterator {
	return &iter{it: s.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type iter struct {
	it iterator.Iterator
}

func (i *iter) Next() bool {
	return i.it.Next()
}

func (i *iter) Key() []byte {
	return i.it.Key()
}

func (i *iter) Value() []byte {
	return i.it.Value()
}

func (i *iter) Err() error {
	return i.it.Error()
}

func (i *iter) Close() error {
	i.it.Release()
	return nil
}
