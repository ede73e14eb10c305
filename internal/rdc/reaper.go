package rdc

import (
	"context"
	"time"
)

const (
	DefaultTTL          = 90 * time.Second
	DefaultReapInterval = 15 * time.Second
)

// Reaper periodically expires locations that stopped announcing.
type Reaper struct {
	index    *Index
	interval time.Duration
	ttl      time.Duration
}

// NewReaper creates a reaper. Zero durations take the defaults.
func NewReaper(index *Index, ttl, interval time.Duration) *Reaper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{index: index, interval: interval, ttl: ttl}
}

// Run starts the reaper loop. Blocks until context is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	if n := r.index.Expire(ctx, r.ttl); n > 0 {
		r.index.log.InfoContext(ctx, "reaper: expired stale locations", "count", n, "ttl", r.ttl)
	}
}
