// Package store persists Resource Discovery Center announcements so an RDC
// restart does not forget the hosts that announced before it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
)

var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")
)

// Record is one persisted announcement, keyed by Location.Key().
type Record struct {
	Location  location.Location  `json:"location"`
	Endpoints []endpoint.Details `json:"endpoints"`
	Seq       uint64             `json:"seq"`
	Updated   time.Time          `json:"updated"`
}

// Key returns the record's storage key.
func (r *Record) Key() string { return r.Location.Key() }

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Location = r.Location.Clone()
	c.Endpoints = make([]endpoint.Details, len(r.Endpoints))
	for i, d := range r.Endpoints {
		c.Endpoints[i] = d.Clone()
	}
	return &c
}

// Store is the durable side of the discovery index.
// All implementations must be thread-safe.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, key string) (*Record, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*Record, error)
	Close() error
}
