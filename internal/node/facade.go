package node

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Homlet/middleware-android-sub001/internal/mapping"
	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/internal/registry"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/command"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

type schemaCompiler interface {
	Compile(doc string) error
}

// CreateEndpoint registers a local endpoint. A schema the validator cannot
// compile fails with ErrBadSchema.
func (n *Node) CreateEndpoint(d endpoint.Details, exposed, forceable bool) (*registry.Endpoint, error) {
	if c, ok := n.validator.(schemaCompiler); ok && d.Schema != "" {
		if err := c.Compile(d.Schema); err != nil {
			return nil, fmt.Errorf("%w: endpoint %q: %w", mwerrors.ErrBadSchema, d.Name, err)
		}
	}
	ep, err := n.registry.Create(d, exposed, forceable)
	if err != nil {
		return nil, err
	}
	n.log.WithEndpoint(d).Info("endpoint created", "exposed", exposed, "forceable", forceable)
	return ep, nil
}

// DestroyEndpoint tears down the endpoint's mappings and frees its name.
func (n *Node) DestroyEndpoint(ctx context.Context, name string) error {
	return n.registry.Destroy(ctx, name)
}

// Endpoint returns the details of a local endpoint.
func (n *Node) Endpoint(name string) (endpoint.Details, error) {
	ep, err := n.registry.Get(name)
	if err != nil {
		return endpoint.Details{}, err
	}
	return ep.Details(), nil
}

// Endpoints lists the details of every local endpoint.
func (n *Node) Endpoints() []endpoint.Details {
	return n.registry.ListDetails()
}

// Send validates payload against the endpoint schema and delivers it over
// every open link. It returns the number of links that accepted the message.
// A link whose peer cannot be reached is closed, which triggers recovery.
func (n *Node) Send(ctx context.Context, name string, payload []byte) (delivered int, err error) {
	op, ctx := observability.StartOperation(ctx, n.metrics, "node.send",
		attribute.String("endpoint", name),
	)
	defer func() { op.End(err) }()

	ep, err := n.registry.Get(name)
	if err != nil {
		return 0, err
	}
	d := ep.Details()
	if d.Polarity != endpoint.Source {
		return 0, fmt.Errorf("%w: endpoint %q is %s", mwerrors.ErrWrongPolarity, name, d.Polarity)
	}
	if !n.validator.Validate(d.Schema, payload) {
		n.metrics.Message("out", "rejected", len(payload))
		return 0, fmt.Errorf("%w: endpoint %q", mwerrors.ErrSchemaMismatch, name)
	}

	var errs []error
	for _, link := range n.coord.OpenLinks(name) {
		if derr := n.deliver(ctx, name, link, payload); derr != nil {
			errs = append(errs, derr)
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

func (n *Node) deliver(ctx context.Context, name string, link mapping.Link, payload []byte) error {
	client, err := n.pool.Peer(link.Location)
	if err == nil {
		cctx, cancel := n.callContext(ctx)
		_, err = client.Deliver(cctx, &transport.DeliverRequest{
			From:         n.Location(),
			FromEndpoint: name,
			Endpoint:     link.Remote.Name,
			Payload:      payload,
		})
		cancel()
	}
	if err == nil {
		n.metrics.Message("out", "ok", len(payload))
		return nil
	}

	n.metrics.Message("out", "failed", len(payload))
	if errors.Is(err, mwerrors.ErrConnectionFailed) {
		n.log.WarnContext(ctx, "delivery failed, closing link",
			"endpoint", name,
			"remote", link.Remote.Name,
			"location", link.Location.String(),
			"error", err,
		)
		n.coord.FailLink(ctx, name, link.ID)
	}
	return fmt.Errorf("deliver to %s on %s: %w", link.Remote.Name, link.Location.Key(), err)
}

// AddListener registers fn for messages delivered to endpoint name.
func (n *Node) AddListener(name string, fn registry.Listener) (string, error) {
	ep, err := n.registry.Get(name)
	if err != nil {
		return "", err
	}
	return ep.AddListener(fn), nil
}

// RemoveListener unregisters a listener by the id AddListener returned.
func (n *Node) RemoveListener(name, id string) error {
	ep, err := n.registry.Get(name)
	if err != nil {
		return err
	}
	return ep.RemoveListener(id)
}

// Map runs an indirect mapping through the configured RDC.
func (n *Node) Map(ctx context.Context, name string, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error) {
	return n.coord.MapIndirect(ctx, name, q, policy)
}

// MapTo runs a direct mapping against host.
func (n *Node) MapTo(ctx context.Context, name, host string, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error) {
	return n.coord.MapDirect(ctx, name, host, q, policy)
}

// Unmap gracefully drops the links of name whose remote endpoint matches q.
func (n *Node) Unmap(ctx context.Context, name string, q *query.Query) ([]endpoint.Details, error) {
	return n.coord.Unmap(ctx, name, q)
}

// UnmapFrom is Unmap restricted to links on host.
func (n *Node) UnmapFrom(ctx context.Context, host, name string, q *query.Query) ([]endpoint.Details, error) {
	return n.coord.UnmapFrom(ctx, host, name, q)
}

// UnmapAll gracefully drops every link of name.
func (n *Node) UnmapAll(ctx context.Context, name string) ([]endpoint.Details, error) {
	return n.coord.UnmapAll(ctx, name)
}

// Close forcibly drops the links of name matching q without notifying peers.
func (n *Node) Close(name string, q *query.Query) (int, error) {
	return n.coord.Close(name, q)
}

// CloseAll forcibly drops every link of name.
func (n *Node) CloseAll(name string) (int, error) {
	return n.coord.CloseAll(name)
}

// Mappings describes the mappings of endpoint name.
func (n *Node) Mappings(name string) []mapping.Info {
	return n.coord.Mappings(name)
}

// WaitForLink blocks until endpoint name has an open link or ctx ends.
func (n *Node) WaitForLink(ctx context.Context, name string) error {
	return n.coord.WaitForLink(ctx, name)
}

// SetExposed toggles whether discovery can see endpoint name.
func (n *Node) SetExposed(name string, exposed bool) error {
	return n.registry.SetExposed(name, exposed)
}

// SetEndpointForceable toggles whether endpoint name accepts remote commands.
func (n *Node) SetEndpointForceable(name string, forceable bool) error {
	return n.registry.SetForceable(name, forceable)
}

// SetForceable sets the instance-wide forceable flag.
func (n *Node) SetForceable(forceable bool) {
	n.force.SetForceable(forceable)
}

// Forceable reports the instance-wide forceable flag.
func (n *Node) Forceable() bool { return n.force.Forceable() }

// SetDiscoverable controls whether the instance announces itself. Turning it
// off withdraws the current announcement.
func (n *Node) SetDiscoverable(discoverable bool) {
	if n.discoverable.Swap(discoverable) != discoverable {
		n.announcer.Trigger()
	}
}

// Discoverable reports whether the instance announces itself.
func (n *Node) Discoverable() bool { return n.discoverable.Load() }

// RDCAddress returns the configured RDC address.
func (n *Node) RDCAddress() (location.Address, bool) {
	n.rdcMu.RLock()
	defer n.rdcMu.RUnlock()
	return n.rdcAddr, n.hasRDC
}

// SetRDCAddress points the instance at another RDC. The old RDC is asked to
// withdraw this instance, best effort.
func (n *Node) SetRDCAddress(ctx context.Context, addr string) error {
	parsed, err := location.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("%w: %w", mwerrors.ErrBadHost, err)
	}

	n.rdcMu.Lock()
	old, had := n.rdcAddr, n.hasRDC
	n.rdcAddr, n.hasRDC = parsed, true
	n.rdcMu.Unlock()

	if had && old != parsed {
		if err := n.withdrawFrom(ctx, old); err != nil {
			n.log.DebugContext(ctx, "withdraw from previous rdc", "rdc", old.String(), "error", err)
		}
	}
	n.log.InfoContext(ctx, "rdc address set", "rdc", parsed.String())
	n.announcer.Trigger()
	return nil
}

// Force sends an instance-wide command to host.
func (n *Node) Force(ctx context.Context, host string, cmd command.Command) (*transport.ForceResponse, error) {
	if cmd == nil || cmd.Endpoint() != "" {
		return nil, fmt.Errorf("%w: force needs an instance-wide command", mwerrors.ErrBadQuery)
	}
	return n.sendCommand(ctx, host, cmd)
}

// ForceEndpoint sends a command targeting one remote endpoint to host.
func (n *Node) ForceEndpoint(ctx context.Context, host string, cmd command.Command) (*transport.ForceResponse, error) {
	if cmd == nil || cmd.Endpoint() == "" {
		return nil, fmt.Errorf("%w: force endpoint needs an endpoint-targeted command", mwerrors.ErrBadQuery)
	}
	return n.sendCommand(ctx, host, cmd)
}

func (n *Node) sendCommand(ctx context.Context, host string, cmd command.Command) (*transport.ForceResponse, error) {
	target, err := location.ParseHost(host)
	if err != nil {
		return nil, err
	}
	env, err := command.Encode(cmd)
	if err != nil {
		return nil, err
	}
	client, err := n.pool.Peer(target)
	if err != nil {
		return nil, err
	}
	cctx, cancel := n.callContext(ctx)
	defer cancel()
	return client.Force(cctx, &transport.ForceRequest{Command: env, From: n.Location()})
}

// RemoteEndpoints lists the endpoints of the instance at host.
func (n *Node) RemoteEndpoints(ctx context.Context, host string, exposedOnly bool) (*transport.EndpointsResponse, error) {
	target, err := location.ParseHost(host)
	if err != nil {
		return nil, err
	}
	client, err := n.pool.Peer(target)
	if err != nil {
		return nil, err
	}
	cctx, cancel := n.callContext(ctx)
	defer cancel()
	return client.Endpoints(cctx, &transport.EndpointsRequest{ExposedOnly: exposedOnly})
}
