package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
)

// Message is a payload delivered to a local endpoint.
type Message struct {
	Endpoint     string
	From         location.Location
	FromEndpoint string
	Payload      []byte
}

// Listener receives messages delivered to an endpoint.
type Listener func(ctx context.Context, msg Message)

// Endpoint is a locally created endpoint. Its Details never change; the
// exposed and forceable flags and the listener set are mutable.
type Endpoint struct {
	details   endpoint.Details
	exposed   atomic.Bool
	forceable atomic.Bool

	mu        sync.RWMutex
	listeners map[string]Listener
	order     []string
}

func newEndpoint(d endpoint.Details, exposed, forceable bool) *Endpoint {
	e := &Endpoint{
		details:   d.Clone(),
		listeners: make(map[string]Listener),
	}
	e.exposed.Store(exposed)
	e.forceable.Store(forceable)
	return e
}

// Details returns a copy of the endpoint description.
func (e *Endpoint) Details() endpoint.Details { return e.details.Clone() }

// Name returns the endpoint name.
func (e *Endpoint) Name() string { return e.details.Name }

// Exposed reports whether the endpoint is visible to discovery.
func (e *Endpoint) Exposed() bool { return e.exposed.Load() }

// Forceable reports whether the endpoint accepts remote commands.
func (e *Endpoint) Forceable() bool { return e.forceable.Load() }

// AddListener registers l and returns its id.
func (e *Endpoint) AddListener(l Listener) string {
	id := uuid.NewString()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[id] = l
	e.order = append(e.order, id)
	return id
}

// RemoveListener unregisters the listener with the given id.
func (e *Endpoint) RemoveListener(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.listeners[id]; !ok {
		return mwerrors.ErrListenerNotFound
	}
	delete(e.listeners, id)
	for i, o := range e.order {
		if o == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Listeners returns the registered listeners in registration order.
func (e *Endpoint) Listeners() []Listener {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Listener, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.listeners[id])
	}
	return out
}

// ListenerCount returns the number of registered listeners.
func (e *Endpoint) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

func (e *Endpoint) dropListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.listeners)
	e.order = nil
}
