// Package registry owns the endpoints created on a middleware instance.
//
// Create and Destroy are mutually exclusive per endpoint name; every other
// operation runs concurrently.
package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
)

// TeardownFunc releases everything an endpoint owns outside the registry
// (its mappings and their links). It runs after the endpoint has been
// unregistered but while its name is still held, so Create cannot reuse the
// name until teardown finishes.
type TeardownFunc func(ctx context.Context, name string) error

// ChangeKind classifies registry changes.
type ChangeKind int

const (
	Created ChangeKind = iota
	Destroyed
	ExposureChanged
	ForceabilityChanged
)

// Change describes one registry mutation.
type Change struct {
	Kind    ChangeKind
	Details endpoint.Details
}

// Registry is a concurrency-safe name → endpoint map.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	names     *keyedMutex
	log       *logging.Logger

	hookMu    sync.RWMutex
	teardown  TeardownFunc
	observers []func(Change)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		endpoints: make(map[string]*Endpoint),
		names:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.New(nil)
	}
	r.log = r.log.WithComponent("registry")
	return r
}

// SetTeardown installs the function Destroy uses to drop an endpoint's mappings.
func (r *Registry) SetTeardown(fn TeardownFunc) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.teardown = fn
}

// OnChange registers an observer called after every successful mutation.
func (r *Registry) OnChange(fn func(Change)) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.observers = append(r.observers, fn)
}

// Create registers a new endpoint. Fails with ErrEndpointCollision when the
// name is already active.
func (r *Registry) Create(d endpoint.Details, exposed, forceable bool) (*Endpoint, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	unlock := r.names.Lock(d.Name)
	defer unlock()

	r.mu.Lock()
	if _, exists := r.endpoints[d.Name]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", mwerrors.ErrEndpointCollision, d.Name)
	}
	e := newEndpoint(d, exposed, forceable)
	r.endpoints[d.Name] = e
	r.mu.Unlock()

	r.log.WithEndpoint(d).Debug("endpoint created", "exposed", exposed, "forceable", forceable)
	r.notify(Change{Kind: Created, Details: e.Details()})
	return e, nil
}

// Destroy tears down the endpoint's mappings, drops its listeners and frees
// its name. Fails with ErrEndpointNotFound when absent.
func (r *Registry) Destroy(ctx context.Context, name string) error {
	unlock := r.names.Lock(name)
	defer unlock()

	// Unregister first: a mapping call that merges links after teardown
	// then finds the endpoint gone and removes them itself.
	r.mu.Lock()
	e, ok := r.endpoints[name]
	delete(r.endpoints, name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", mwerrors.ErrEndpointNotFound, name)
	}

	r.hookMu.RLock()
	teardown := r.teardown
	r.hookMu.RUnlock()
	if teardown != nil {
		if err := teardown(ctx, name); err != nil {
			r.log.WarnContext(ctx, "endpoint teardown incomplete", "endpoint", name, "error", err)
		}
	}
	e.dropListeners()

	r.log.DebugContext(ctx, "endpoint destroyed", "endpoint", name)
	r.notify(Change{Kind: Destroyed, Details: e.Details()})
	return nil
}

// Get returns the endpoint with the given name.
func (r *Registry) Get(name string) (*Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", mwerrors.ErrEndpointNotFound, name)
	}
	return e, nil
}

// List returns all endpoints in no particular order.
func (r *Registry) List() []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, e)
	}
	return out
}

// ListDetails returns the details of every endpoint, sorted by name.
func (r *Registry) ListDetails() []endpoint.Details {
	return r.collect(func(*Endpoint) bool { return true })
}

// ExposedDetails returns the details of exposed endpoints, sorted by name.
func (r *Registry) ExposedDetails() []endpoint.Details {
	return r.collect((*Endpoint).Exposed)
}

func (r *Registry) collect(keep func(*Endpoint) bool) []endpoint.Details {
	r.mu.RLock()
	out := make([]endpoint.Details, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		if keep(e) {
			out = append(out, e.Details())
		}
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b endpoint.Details) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Count returns the number of active endpoints.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

// SetExposed changes whether the endpoint is visible to discovery.
func (r *Registry) SetExposed(name string, exposed bool) error {
	e, err := r.Get(name)
	if err != nil {
		return err
	}
	if e.exposed.Swap(exposed) != exposed {
		r.notify(Change{Kind: ExposureChanged, Details: e.Details()})
	}
	return nil
}

// SetForceable changes whether the endpoint accepts remote commands.
func (r *Registry) SetForceable(name string, forceable bool) error {
	e, err := r.Get(name)
	if err != nil {
		return err
	}
	if e.forceable.Swap(forceable) != forceable {
		r.notify(Change{Kind: ForceabilityChanged, Details: e.Details()})
	}
	return nil
}

func (r *Registry) notify(c Change) {
	r.hookMu.RLock()
	observers := slices.Clone(r.observers)
	r.hookMu.RUnlock()
	for _, fn := range observers {
		fn(c)
	}
}
