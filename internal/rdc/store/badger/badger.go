// Package badger provides a BadgerDB-backed rdc store.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"
)

const prefixLocation = "loc/"

const (
	KeyPath       = "path"
	KeySyncWrites = "sync_writes"
	KeyInMemory   = "in_memory"
)

func init() {
	store.Register("badger", NewFactory, Defaults)
}

// Defaults returns the default configuration for the BadgerDB store.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:       "~/.mw-rdc/index",
		KeySyncWrites: "true",
		KeyInMemory:   "false",
	}
}

// NewFactory opens a BadgerDB store. in_memory=true ignores path.
func NewFactory(_ context.Context, s store.Settings) (store.Store, error) {
	inMemory, err := s.Bool(KeyInMemory, false)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions("").WithInMemory(true)
	if !inMemory {
		path, err := s.Path(KeyPath)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, s.Err(KeyPath, "failed to create directory", err)
		}
		syncWrites, err := s.Bool(KeySyncWrites, true)
		if err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(syncWrites)
	}

	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, s.Err(KeyPath, "failed to open database", err)
	}

	slog.Info("badger rdc store initialized", "in_memory", inMemory)
	return NewWithDB(db), nil
}

// Store is a BadgerDB implementation of store.Store.
type Store struct {
	db     *badger.DB
	closed atomic.Bool
}

// NewWithDB wraps an existing BadgerDB instance.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Put(_ context.Context, rec *store.Record) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("badger put: encode: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixLocation+rec.Key()), val)
	})
}

func (s *Store) Get(_ context.Context, key string) (*store.Record, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	var rec *store.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixLocation + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = decode(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixLocation + key))
	})
}

func (s *Store) List(_ context.Context) ([]*store.Record, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	var out []*store.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixLocation)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				rec, err := decode(val)
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func decode(val []byte) (*store.Record, error) {
	var rec store.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("badger: decode record: %w", err)
	}
	return &rec, nil
}
