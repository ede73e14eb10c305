package node

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Homlet/middleware-android-sub001/internal/registry"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
)

// peerService is the instance's side of the peer wire protocol.
type peerService struct {
	n *Node
}

var _ transport.PeerServer = (*peerService)(nil)

func (s *peerService) Map(ctx context.Context, req *transport.MapRequest) (*transport.MapResponse, error) {
	return s.n.coord.Accept(ctx, req)
}

func (s *peerService) Unlink(ctx context.Context, req *transport.UnlinkRequest) (*transport.UnlinkResponse, error) {
	return &transport.UnlinkResponse{Removed: s.n.coord.HandleUnlink(ctx, req)}, nil
}

func (s *peerService) Deliver(ctx context.Context, req *transport.DeliverRequest) (*transport.DeliverResponse, error) {
	n := s.n
	ep, err := n.registry.Get(req.Endpoint)
	if err != nil {
		n.metrics.Message("in", "rejected", len(req.Payload))
		return nil, err
	}
	d := ep.Details()
	if d.Polarity != endpoint.Sink {
		n.metrics.Message("in", "rejected", len(req.Payload))
		return nil, fmt.Errorf("%w: endpoint %q is %s", mwerrors.ErrWrongPolarity, d.Name, d.Polarity)
	}
	if !n.validator.Validate(d.Schema, req.Payload) {
		n.metrics.Message("in", "rejected", len(req.Payload))
		return nil, fmt.Errorf("%w: endpoint %q", mwerrors.ErrBadSchema, d.Name)
	}

	msg := registry.Message{
		Endpoint:     d.Name,
		From:         req.From.Clone(),
		FromEndpoint: req.FromEndpoint,
		Payload:      req.Payload,
	}
	listeners := ep.Listeners()
	for _, l := range listeners {
		l(ctx, msg)
	}
	n.metrics.Message("in", "ok", len(req.Payload))
	return &transport.DeliverResponse{Listeners: len(listeners)}, nil
}

func (s *peerService) Ping(_ context.Context, _ *transport.PingRequest) (*transport.PingResponse, error) {
	return &transport.PingResponse{Location: s.n.Location(), Time: time.Now().UTC()}, nil
}

func (s *peerService) Force(ctx context.Context, req *transport.ForceRequest) (*transport.ForceResponse, error) {
	s.n.log.InfoContext(ctx, "remote command",
		"kind", string(req.Command.Kind),
		"from", req.From.String(),
	)
	res, err := s.n.force.ExecuteEnvelope(ctx, req.Command)
	if err != nil {
		return nil, err
	}
	return &transport.ForceResponse{Endpoints: res.Endpoints, Closed: res.Closed}, nil
}

func (s *peerService) Endpoints(_ context.Context, req *transport.EndpointsRequest) (*transport.EndpointsResponse, error) {
	n := s.n
	eps := n.registry.List()
	slices.SortFunc(eps, func(a, b *registry.Endpoint) int { return strings.Compare(a.Name(), b.Name()) })

	out := make([]transport.EndpointStatus, 0, len(eps))
	for _, ep := range eps {
		if req.ExposedOnly && !ep.Exposed() {
			continue
		}
		out = append(out, transport.EndpointStatus{
			Details:   ep.Details(),
			Exposed:   ep.Exposed(),
			Forceable: ep.Forceable(),
			Links:     len(n.coord.OpenLinks(ep.Name())),
		})
	}
	return &transport.EndpointsResponse{
		Location:  n.Location(),
		Forceable: n.Forceable(),
		Endpoints: out,
	}, nil
}
