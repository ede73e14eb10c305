package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Homlet/middleware-android-sub001/internal/observability"
)

// Factory opens a store from its backend settings.
type Factory func(ctx context.Context, s Settings) (Store, error)

// DefaultsFunc returns the default configuration for a store.
type DefaultsFunc func() map[string]string

type backendEntry struct {
	Factory  Factory
	Defaults DefaultsFunc
}

var (
	backends   = make(map[string]backendEntry)
	backendsMu sync.RWMutex
)

// Register registers a store factory with the given name.
// Panics if a store with the same name is already registered.
func Register(name string, factory Factory, defaults DefaultsFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, exists := backends[name]; exists {
		panic(fmt.Sprintf("rdc store %q already registered", name))
	}
	backends[name] = backendEntry{Factory: factory, Defaults: defaults}
}

// GetDefaults returns the default configuration for a store.
func GetDefaults(name string) map[string]string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	entry, ok := backends[name]
	if !ok || entry.Defaults == nil {
		return nil
	}
	return entry.Defaults()
}

// ListBackends returns the names of all registered stores.
func ListBackends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New opens the named store, layering config over its defaults.
func New(ctx context.Context, name string, config map[string]string, metrics *observability.Metrics) (Store, error) {
	op, ctx := observability.StartOperation(ctx, metrics, "rdc.store.open")
	var err error
	defer func() { op.End(err) }()

	backendsMu.RLock()
	entry, ok := backends[name]
	backendsMu.RUnlock()

	if !ok {
		err = &ConfigError{Backend: name, Message: fmt.Sprintf("unknown rdc store (available: %v)", ListBackends())}
		return nil, err
	}

	var defaults map[string]string
	if entry.Defaults != nil {
		defaults = entry.Defaults()
	}

	var st Store
	st, err = entry.Factory(ctx, NewSettings(name, defaults, config))
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "rdc store opened", "backend", name)
	return st, nil
}

// IsRegistered returns true if a store with the given name is registered.
func IsRegistered(name string) bool {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	_, ok := backends[name]
	return ok
}
