package rdc

import (
	"context"
	"fmt"
	"maps"

	"github.com/Homlet/middleware-android-sub001/internal/config"
	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"

	// Register announcement store backends
	_ "github.com/Homlet/middleware-android-sub001/internal/rdc/store/badger"
	_ "github.com/Homlet/middleware-android-sub001/internal/rdc/store/memory"
	_ "github.com/Homlet/middleware-android-sub001/internal/rdc/store/redis"
	_ "github.com/Homlet/middleware-android-sub001/internal/rdc/store/sqlite"
)

// OpenStore creates the announcement store named by cfg. A relative "path"
// setting is resolved against the data directory.
func OpenStore(ctx context.Context, cfg config.BackendConfig, base config.BaseConfig, metrics *observability.Metrics) (store.Store, error) {
	settings := maps.Clone(cfg.Config)
	if settings == nil {
		settings = make(map[string]string)
	}
	if p, ok := settings["path"]; ok {
		settings["path"] = base.Path(p)
	}
	st, err := store.New(ctx, cfg.Backend, settings, metrics)
	if err != nil {
		return nil, fmt.Errorf("create announcement store: %w", err)
	}
	return st, nil
}
