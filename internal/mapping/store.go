package mapping

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// LinkState is the liveness of a link.
type LinkState int

const (
	Open LinkState = iota
	Closed
)

func (s LinkState) String() string {
	if s == Closed {
		return "CLOSED"
	}
	return "OPEN"
}

func (s LinkState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Link is one connection between a local endpoint and a remote endpoint.
type Link struct {
	ID       string            `json:"id"`
	Remote   endpoint.Details  `json:"remote"`
	Location location.Location `json:"location"`
	State    LinkState         `json:"state"`
	Created  time.Time         `json:"created"`
	// Inbound marks links recorded because a peer mapped to us.
	Inbound bool `json:"inbound,omitempty"`
}

func (l Link) pairKey() string {
	return l.Location.Key() + "/" + l.Remote.Name
}

// Handle is a generational reference to a mapping slot. A handle goes stale
// once its mapping is removed, even if the slot is reused.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool { return h.gen == 0 }

// Mapping is one subscription from a local endpoint under one persistence
// policy. Its links are guarded by its own mutex.
type Mapping struct {
	id       string
	handle   Handle
	endpoint string
	policy   persistence.Policy
	query    *query.Query

	mu      sync.Mutex
	links   []*Link
	removed bool
}

func (m *Mapping) ID() string                      { return m.id }
func (m *Mapping) Handle() Handle                  { return m.handle }
func (m *Mapping) Endpoint() string                { return m.endpoint }
func (m *Mapping) Persistence() persistence.Policy { return m.policy }

// Query returns the query stored when the mapping was created, or nil for
// mappings created by inbound links.
func (m *Mapping) Query() *query.Query { return m.query }

// Links returns a snapshot of the mapping's links.
func (m *Mapping) Links() []Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Link, len(m.links))
	for i, l := range m.links {
		out[i] = *l
	}
	return out
}

// add appends links not already open in this mapping. It reports false if
// the mapping was removed concurrently.
func (m *Mapping) add(links []Link) ([]Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return nil, false
	}
	open := make(map[string]bool, len(m.links))
	for _, l := range m.links {
		if l.State == Open {
			open[l.pairKey()] = true
		}
	}
	var added []Link
	for _, l := range links {
		if open[l.pairKey()] {
			continue
		}
		open[l.pairKey()] = true
		nl := l
		if nl.ID == "" {
			nl.ID = uuid.NewString()
		}
		if nl.Created.IsZero() {
			nl.Created = time.Now()
		}
		nl.State = Open
		m.links = append(m.links, &nl)
		added = append(added, nl)
	}
	return added, true
}

// close marks open links matching match as CLOSED. wasComplete reports
// whether every link of the mapping is closed afterwards.
func (m *Mapping) close(match func(Link) bool) (closed []Link, wasComplete bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.State == Open && match(*l) {
			l.State = Closed
			closed = append(closed, *l)
		}
	}
	wasComplete = len(m.links) > 0
	for _, l := range m.links {
		if l.State == Open {
			wasComplete = false
			break
		}
	}
	return closed, wasComplete
}

// remove deletes links matching match regardless of state.
func (m *Mapping) remove(match func(Link) bool) []Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []Link
	m.links = slices.DeleteFunc(m.links, func(l *Link) bool {
		if match(*l) {
			removed = append(removed, *l)
			return true
		}
		return false
	})
	return removed
}

func (m *Mapping) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.links {
		if l.State == Open {
			n++
		}
	}
	return n
}

type slot struct {
	gen     uint32
	mapping *Mapping
}

type key struct {
	endpoint string
	policy   persistence.Policy
}

// Store owns every mapping of one middleware instance. Lock order is store
// then mapping; a mapping's mutex is never held while taking the store's.
type Store struct {
	mu      sync.Mutex
	slots   []slot
	free    []uint32
	byKey   map[key]Handle
	waiters map[string]chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byKey:   make(map[key]Handle),
		waiters: make(map[string]chan struct{}),
	}
}

// acquire returns the mapping for (endpoint, policy), creating it with q if absent.
func (s *Store) acquire(ep string, policy persistence.Policy, q *query.Query) *Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{ep, policy}
	if h, ok := s.byKey[k]; ok {
		return s.slots[h.index].mapping
	}

	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.slots = append(s.slots, slot{})
		idx = uint32(len(s.slots) - 1)
	}
	s.slots[idx].gen++
	h := Handle{index: idx, gen: s.slots[idx].gen}
	m := &Mapping{
		id:       uuid.NewString(),
		handle:   h,
		endpoint: ep,
		policy:   policy,
		query:    q,
	}
	s.slots[idx].mapping = m
	s.byKey[k] = h
	return m
}

// Merge adds links to the mapping for (endpoint, policy), creating it if
// needed, and returns the links actually added.
func (s *Store) Merge(ep string, policy persistence.Policy, q *query.Query, links []Link) (*Mapping, []Link) {
	for {
		m := s.acquire(ep, policy, q)
		added, ok := m.add(links)
		if !ok {
			continue
		}
		if len(added) > 0 {
			s.signal(ep)
		}
		return m, added
	}
}

// Get resolves a handle.
func (s *Store) Get(h Handle) (*Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.IsZero() || int(h.index) >= len(s.slots) {
		return nil, mwerrors.ErrMappingNotFound
	}
	sl := s.slots[h.index]
	if sl.gen != h.gen || sl.mapping == nil {
		return nil, mwerrors.ErrMappingNotFound
	}
	return sl.mapping, nil
}

// Lookup returns the mapping for (endpoint, policy) if one exists.
func (s *Store) Lookup(ep string, policy persistence.Policy) (*Mapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byKey[key{ep, policy}]
	if !ok {
		return nil, false
	}
	return s.slots[h.index].mapping, true
}

// ForEndpoint returns the endpoint's mappings.
func (s *Store) ForEndpoint(ep string) []*Mapping {
	return s.collect(func(m *Mapping) bool { return m.endpoint == ep })
}

// All returns every mapping.
func (s *Store) All() []*Mapping {
	return s.collect(func(*Mapping) bool { return true })
}

func (s *Store) collect(keep func(*Mapping) bool) []*Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Mapping
	for _, sl := range s.slots {
		if sl.mapping != nil && keep(sl.mapping) {
			out = append(out, sl.mapping)
		}
	}
	return out
}

// RemoveIfEmpty drops the mapping when it holds no links. It reports
// whether the mapping was removed.
func (s *Store) RemoveIfEmpty(m *Mapping) bool {
	return s.drop(m, false)
}

// Remove drops the mapping and returns the links it still held.
func (s *Store) Remove(m *Mapping) []Link {
	links := m.Links()
	s.drop(m, true)
	return links
}

func (s *Store) drop(m *Mapping, force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.slots[m.handle.index]
	if sl.gen != m.handle.gen || sl.mapping != m {
		return false
	}

	m.mu.Lock()
	if !force && len(m.links) > 0 {
		m.mu.Unlock()
		return false
	}
	m.links = nil
	m.removed = true
	m.mu.Unlock()

	sl.mapping = nil
	s.free = append(s.free, m.handle.index)
	delete(s.byKey, key{m.endpoint, m.policy})
	return true
}

// OpenCount returns the number of open links across every mapping.
func (s *Store) OpenCount() int {
	n := 0
	for _, m := range s.All() {
		n += m.openCount()
	}
	return n
}

// HasOpen reports whether the endpoint has at least one open link.
func (s *Store) HasOpen(ep string) bool {
	for _, m := range s.ForEndpoint(ep) {
		if m.openCount() > 0 {
			return true
		}
	}
	return false
}

func (s *Store) signal(ep string) {
	s.mu.Lock()
	ch, ok := s.waiters[ep]
	delete(s.waiters, ep)
	s.mu.Unlock()
	if ok {
		close(ch)
	}
}

// WaitForLink blocks until ep has an open link or ctx ends, in which case
// it returns ErrDisconnected.
func (s *Store) WaitForLink(ctx context.Context, ep string) error {
	for {
		if s.HasOpen(ep) {
			return nil
		}
		s.mu.Lock()
		ch, ok := s.waiters[ep]
		if !ok {
			ch = make(chan struct{})
			s.waiters[ep] = ch
		}
		s.mu.Unlock()

		// A link may have been added between HasOpen and registering.
		if s.HasOpen(ep) {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return mwerrors.ErrDisconnected
		}
	}
}
