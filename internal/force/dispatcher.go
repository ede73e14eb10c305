// Package force authorizes and executes commands sent by remote instances.
package force

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/internal/registry"
	"github.com/Homlet/middleware-android-sub001/pkg/command"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// Mapper is the mapping surface commands are replayed against.
type Mapper interface {
	MapIndirect(ctx context.Context, name string, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error)
	MapDirect(ctx context.Context, name, host string, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error)
	UnmapAll(ctx context.Context, name string) ([]endpoint.Details, error)
	CloseAll(name string) (int, error)
}

// Result is what an executed command produced.
type Result struct {
	Endpoints []endpoint.Details
	Closed    int
}

// Dispatcher gates commands on the instance and endpoint forceable flags.
type Dispatcher struct {
	registry  *registry.Registry
	mapper    Mapper
	setRDC    func(ctx context.Context, addr string) error
	forceable atomic.Bool
	metrics   *observability.Metrics
	log       *logging.Logger
}

// Options configures a Dispatcher.
type Options struct {
	Registry  *registry.Registry
	Mapper    Mapper
	SetRDC    func(ctx context.Context, addr string) error
	Forceable bool
	Metrics   *observability.Metrics
	Logger    *logging.Logger
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		registry: opts.Registry,
		mapper:   opts.Mapper,
		setRDC:   opts.SetRDC,
		metrics:  opts.Metrics,
		log:      opts.Logger,
	}
	d.forceable.Store(opts.Forceable)
	if d.log == nil {
		d.log = logging.New(nil)
	}
	d.log = d.log.WithComponent("force")
	return d
}

// Forceable reports the instance-level flag.
func (d *Dispatcher) Forceable() bool { return d.forceable.Load() }

// SetForceable sets the instance-level flag.
func (d *Dispatcher) SetForceable(v bool) { d.forceable.Store(v) }

// Authorize checks cmd without executing it. The instance flag is checked
// first and overrides the endpoint flag.
func (d *Dispatcher) Authorize(cmd command.Command) error {
	if !d.forceable.Load() {
		return fmt.Errorf("%w: instance is not forceable", mwerrors.ErrAuthorizationDenied)
	}
	name := cmd.Endpoint()
	if name == "" {
		return nil
	}
	ep, err := d.registry.Get(name)
	if err != nil {
		return err
	}
	if !ep.Forceable() {
		return fmt.Errorf("%w: endpoint %q is not forceable", mwerrors.ErrAuthorizationDenied, name)
	}
	return nil
}

// Execute authorizes cmd and replays it against the registry and mapper.
func (d *Dispatcher) Execute(ctx context.Context, cmd command.Command) (res Result, err error) {
	if cmd == nil {
		return Result{}, fmt.Errorf("%w: empty command", mwerrors.ErrProtocol)
	}
	op, ctx := observability.StartOperation(ctx, d.metrics, "force",
		attribute.String("kind", string(cmd.Kind())),
		attribute.String("endpoint", cmd.Endpoint()),
	)
	defer func() {
		result := "ok"
		switch {
		case mwerrors.Is(err, mwerrors.ErrAuthorizationDenied):
			result = "denied"
		case err != nil:
			result = "error"
		}
		d.metrics.Command(string(cmd.Kind()), result)
		op.End(err)
	}()

	if err := d.Authorize(cmd); err != nil {
		d.log.WarnContext(ctx, "command rejected", "kind", cmd.Kind(), "endpoint", cmd.Endpoint(), "error", err)
		return Result{}, err
	}

	switch c := cmd.(type) {
	case command.Map:
		q, err := query.FromSpec(c.Query)
		if err != nil {
			return Result{}, err
		}
		mapped, err := d.mapper.MapIndirect(ctx, c.Target, q, c.Persistence)
		return Result{Endpoints: mapped}, err

	case command.MapTo:
		q, err := query.FromSpec(c.Query)
		if err != nil {
			return Result{}, err
		}
		mapped, err := d.mapper.MapDirect(ctx, c.Target, c.Host, q, c.Persistence)
		return Result{Endpoints: mapped}, err

	case command.UnmapAll:
		unmapped, err := d.mapper.UnmapAll(ctx, c.Target)
		return Result{Endpoints: unmapped}, err

	case command.CloseAll:
		n, err := d.mapper.CloseAll(c.Target)
		return Result{Closed: n}, err

	case command.SetRDCAddress:
		if d.setRDC == nil {
			return Result{}, fmt.Errorf("%w: rdc address cannot be changed", mwerrors.ErrBadHost)
		}
		return Result{}, d.setRDC(ctx, c.Address)
	}
	return Result{}, fmt.Errorf("%w: unsupported command %T", mwerrors.ErrProtocol, cmd)
}

// ExecuteEnvelope decodes and executes a wire command.
func (d *Dispatcher) ExecuteEnvelope(ctx context.Context, env command.Envelope) (Result, error) {
	cmd, err := command.Decode(env)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", mwerrors.ErrProtocol, err)
	}
	return d.Execute(ctx, cmd)
}
