// Package memory provides an in-process rdc store. Nothing survives a
// restart; it is the default for development and tests.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"
)

func init() {
	store.Register("memory", NewFactory, Defaults)
}

// Defaults returns the (empty) default configuration.
func Defaults() map[string]string {
	return map[string]string{}
}

// NewFactory creates a memory store. It takes no settings.
func NewFactory(_ context.Context, _ store.Settings) (store.Store, error) {
	return New(), nil
}

// Store keeps records in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]*store.Record
	closed  atomic.Bool
}

// New creates an empty memory store.
func New() *Store {
	return &Store{records: make(map[string]*store.Record)}
}

func (s *Store) Put(_ context.Context, rec *store.Record) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	c := rec.Clone()
	s.mu.Lock()
	s.records[c.Key()] = c
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(_ context.Context, key string) (*store.Record, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) List(_ context.Context) ([]*store.Record, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
