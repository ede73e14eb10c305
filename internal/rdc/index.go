// Package rdc implements the Resource Discovery Center: an index of which
// middleware instances expose which endpoints, served over gRPC.
package rdc

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// Entry is an immutable snapshot of one location's announcement.
type Entry struct {
	Location  location.Location
	Endpoints []endpoint.Details
	// Seq orders locations by first announcement. Re-announcing keeps it.
	Seq     uint64
	Updated time.Time
}

func (e *Entry) record() *store.Record {
	return &store.Record{Location: e.Location, Endpoints: e.Endpoints, Seq: e.Seq, Updated: e.Updated}
}

// Option configures an Index.
type Option func(*Index)

// WithStore writes every change through to st.
func WithStore(st store.Store) Option {
	return func(ix *Index) { ix.store = st }
}

// WithMetrics records index size and mutations.
func WithMetrics(m *observability.Metrics) Option {
	return func(ix *Index) { ix.metrics = m }
}

// WithLogger sets the index logger.
func WithLogger(l *logging.Logger) Option {
	return func(ix *Index) { ix.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(ix *Index) { ix.now = now }
}

// Index maps location keys to their latest announcement. Each location's
// entry is replaced as a whole, so readers never see a partial update, and
// locations never contend on a shared lock.
type Index struct {
	entries sync.Map // location key -> *Entry
	count   atomic.Int64
	seq     atomic.Uint64

	store   store.Store
	metrics *observability.Metrics
	log     *logging.Logger
	now     func() time.Time
}

// NewIndex creates an empty index.
func NewIndex(opts ...Option) *Index {
	ix := &Index{now: time.Now}
	for _, o := range opts {
		o(ix)
	}
	if ix.log == nil {
		ix.log = logging.New(nil)
	}
	ix.log = ix.log.WithComponent("rdc")
	return ix
}

// Load restores entries from the store. It is meant to run once, before
// the index is served.
func (ix *Index) Load(ctx context.Context) (int, error) {
	if ix.store == nil {
		return 0, nil
	}
	recs, err := ix.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load rdc store: %w", err)
	}
	n := 0
	for _, r := range recs {
		if r.Location.Key() == "" {
			continue
		}
		e := &Entry{Location: r.Location, Endpoints: r.Endpoints, Seq: r.Seq, Updated: r.Updated}
		if _, loaded := ix.entries.Swap(r.Key(), e); !loaded {
			ix.count.Add(1)
		}
		for {
			cur := ix.seq.Load()
			if r.Seq <= cur || ix.seq.CompareAndSwap(cur, r.Seq) {
				break
			}
		}
		n++
	}
	ix.metrics.SetDiscoveryEntries(ix.Len())
	ix.log.InfoContext(ctx, "discovery index restored", "locations", n)
	return n, nil
}

// Announce replaces the entry for loc with details.
func (ix *Index) Announce(ctx context.Context, loc location.Location, details []endpoint.Details) error {
	if err := loc.Validate(); err != nil {
		return fmt.Errorf("%w: announce: %w", mwerrors.ErrBadHost, err)
	}
	key := loc.Key()

	eps := make([]endpoint.Details, 0, len(details))
	for _, d := range details {
		if d.Validate() != nil {
			continue
		}
		eps = append(eps, d.Clone())
	}
	slices.SortFunc(eps, func(a, b endpoint.Details) int { return cmp.Compare(a.Name, b.Name) })

	next := &Entry{Location: loc.Clone(), Endpoints: eps, Updated: ix.now()}
	for {
		prev, ok := ix.entries.Load(key)
		if !ok {
			next.Seq = ix.seq.Add(1)
			if _, loaded := ix.entries.LoadOrStore(key, next); !loaded {
				ix.count.Add(1)
				break
			}
			continue
		}
		next.Seq = prev.(*Entry).Seq
		if ix.entries.CompareAndSwap(key, prev, next) {
			break
		}
	}

	ix.metrics.IndexChange("announce", 1)
	ix.metrics.SetDiscoveryEntries(ix.Len())
	ix.log.DebugContext(ctx, "location announced", "location", key, "endpoints", len(eps))
	ix.persist(ctx, next)
	return nil
}

// Withdraw removes the entry for the location key.
func (ix *Index) Withdraw(ctx context.Context, key string) bool {
	if _, ok := ix.entries.LoadAndDelete(key); !ok {
		return false
	}
	ix.removed(ctx, key, "withdraw")
	return true
}

// ReportFailed withdraws each reported location and returns how many were
// present.
func (ix *Index) ReportFailed(ctx context.Context, failed []location.Location) int {
	n := 0
	for _, loc := range failed {
		if ix.withdrawMatching(ctx, loc, "failed") {
			n++
		}
	}
	return n
}

// withdrawMatching removes loc by key, or by any shared address when the
// reporter only knew the address.
func (ix *Index) withdrawMatching(ctx context.Context, loc location.Location, kind string) bool {
	if key := loc.Key(); key != "" {
		if _, ok := ix.entries.LoadAndDelete(key); ok {
			ix.removed(ctx, key, kind)
			return true
		}
	}
	found := false
	ix.entries.Range(func(k, v any) bool {
		e := v.(*Entry)
		if e.Location.SameHost(loc) && ix.entries.CompareAndDelete(k, v) {
			ix.removed(ctx, k.(string), kind)
			found = true
		}
		return true
	})
	return found
}

// Expire removes entries not refreshed within ttl.
func (ix *Index) Expire(ctx context.Context, ttl time.Duration) int {
	cutoff := ix.now().Add(-ttl)
	n := 0
	ix.entries.Range(func(k, v any) bool {
		if v.(*Entry).Updated.Before(cutoff) && ix.entries.CompareAndDelete(k, v) {
			ix.removed(ctx, k.(string), "expire")
			n++
		}
		return true
	})
	return n
}

func (ix *Index) removed(ctx context.Context, key, kind string) {
	ix.count.Add(-1)
	ix.metrics.IndexChange(kind, 1)
	ix.metrics.SetDiscoveryEntries(ix.Len())
	ix.log.DebugContext(ctx, "location removed", "location", key, "reason", kind)
	if ix.store == nil {
		return
	}
	if err := ix.store.Delete(ctx, key); err != nil {
		ix.log.WarnContext(ctx, "rdc store delete failed", "location", key, "error", err)
	}
}

func (ix *Index) persist(ctx context.Context, e *Entry) {
	if ix.store == nil {
		return
	}
	if err := ix.store.Put(ctx, e.record()); err != nil {
		ix.log.WarnContext(ctx, "rdc store put failed", "location", e.Location.Key(), "error", err)
	}
}

// Discover returns, in first-announcement order, every location with at
// least one endpoint passing q. The quota of q is ignored.
func (ix *Index) Discover(q *query.Query) []location.Location {
	q = q.WithMatches(query.Unlimited)
	var hits []*Entry
	for _, e := range ix.snapshot() {
		if q.MatchesAny(e.Endpoints) {
			hits = append(hits, e)
		}
	}
	out := make([]location.Location, len(hits))
	for i, e := range hits {
		out[i] = e.Location.Clone()
	}
	return out
}

// Get returns the entry for a location key.
func (ix *Index) Get(key string) (*Entry, bool) {
	v, ok := ix.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// Entries returns every entry in first-announcement order.
func (ix *Index) Entries() []*Entry {
	return ix.snapshot()
}

// Len returns the number of indexed locations.
func (ix *Index) Len() int {
	return int(ix.count.Load())
}

func (ix *Index) snapshot() []*Entry {
	var out []*Entry
	ix.entries.Range(func(_, v any) bool {
		out = append(out, v.(*Entry))
		return true
	})
	slices.SortFunc(out, func(a, b *Entry) int { return cmp.Compare(a.Seq, b.Seq) })
	return out
}
