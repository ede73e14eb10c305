// Package recovery replays a mapping's persistence policy after its links
// close.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Homlet/middleware-android-sub001/internal/mapping"
	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// DefaultTimeout bounds one recovery run.
const DefaultTimeout = 30 * time.Second

// Mapper is the part of the mapping coordinator recovery re-enters.
type Mapper interface {
	MapIndirect(ctx context.Context, name string, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error)
	MapDirectTo(ctx context.Context, name string, target location.Location, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error)
	PruneClosed(h mapping.Handle) (int, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records recovery outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine's logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTimeout bounds each recovery run.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// Engine runs recoveries off the goroutine that reported the failure.
type Engine struct {
	mapper  Mapper
	metrics *observability.Metrics
	log     *logging.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New creates an engine that re-enters mapper.
func New(mapper Mapper, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		mapper:  mapper,
		timeout: DefaultTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logging.New(nil)
	}
	e.log = e.log.WithComponent("recovery")
	return e
}

// Handle schedules recovery for ev and returns immediately.
func (e *Engine) Handle(ev mapping.Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
		defer cancel()
		if err := e.Recover(ctx, ev); err != nil {
			e.log.WarnContext(ctx, "recovery failed",
				"endpoint", ev.Endpoint,
				"persistence", ev.Persistence.String(),
				"error", err,
			)
		}
	}()
}

// Recover applies ev.Persistence synchronously.
func (e *Engine) Recover(ctx context.Context, ev mapping.Event) (err error) {
	op, ctx := observability.StartOperation(ctx, e.metrics, "recover",
		attribute.String("endpoint", ev.Endpoint),
		attribute.String("persistence", ev.Persistence.String()),
		attribute.Int("closed", len(ev.Closed)),
	)
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		e.metrics.Recovery(ev.Persistence.String(), outcome)
		op.End(err)
	}()

	switch ev.Persistence {
	case persistence.None:
		outcome = "skipped"
		return e.prune(ev)

	case persistence.ResendQuery:
		// Closed links stay until the mapping fails completely so the
		// completeness check sees them.
		if !ev.WasComplete {
			outcome = "skipped"
			return nil
		}
		if err := e.prune(ev); err != nil {
			return err
		}
		_, err := e.mapper.MapIndirect(ctx, ev.Endpoint, storedQuery(ev), ev.Persistence)
		return err

	case persistence.ResendQueryIndividual:
		if err := e.prune(ev); err != nil {
			return err
		}
		q := storedQuery(ev).WithMatches(len(ev.Closed))
		_, err := e.mapper.MapIndirect(ctx, ev.Endpoint, q, ev.Persistence)
		return err

	case persistence.Exact:
		if err := e.prune(ev); err != nil {
			return err
		}
		return e.reconnectExact(ctx, ev)
	}
	return fmt.Errorf("unknown persistence policy %d", ev.Persistence)
}

func storedQuery(ev mapping.Event) *query.Query {
	if ev.Query == nil {
		return query.All()
	}
	return ev.Query
}

func (e *Engine) prune(ev mapping.Event) error {
	_, err := e.mapper.PruneClosed(ev.Mapping)
	if errors.Is(err, mwerrors.ErrMappingNotFound) {
		// The mapping went away (unmapped or endpoint destroyed) meanwhile.
		return nil
	}
	return err
}

// reconnectExact makes one direct attempt per closed link back to the
// exact remote endpoint it pointed at.
func (e *Engine) reconnectExact(ctx context.Context, ev mapping.Event) error {
	var errs []error
	for _, l := range ev.Closed {
		q, err := ExactQuery(l.Remote.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got, err := e.mapper.MapDirectTo(ctx, ev.Endpoint, l.Location, q, persistence.Exact)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconnect %s at %s: %w", l.Remote.Name, l.Location.Key(), err))
			continue
		}
		if len(got) == 0 {
			errs = append(errs, fmt.Errorf("reconnect %s at %s: endpoint no longer offered", l.Remote.Name, l.Location.Key()))
		}
	}
	return errors.Join(errs...)
}

// ExactQuery matches exactly one endpoint by name.
func ExactQuery(name string) (*query.Query, error) {
	return query.New().Name(regexp.QuoteMeta(name)).Matches(1).Build()
}

// Close stops scheduling, cancels running recoveries and waits for them.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()
	e.wg.Wait()
}

// Wait blocks until every scheduled recovery has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}
