package node

import (
	"context"
	"fmt"

	"github.com/Homlet/middleware-android-sub001/internal/mapping"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// peers reaches other instances through the connection pool.
type peers struct {
	pool *transport.Pool
}

var _ mapping.Peers = peers{}

func (p peers) client(target location.Location) (*transport.PeerClient, error) {
	c, err := p.pool.Peer(target)
	if err != nil {
		return nil, fmt.Errorf("peer %s: %w", target, err)
	}
	return c, nil
}

func (p peers) Map(ctx context.Context, target location.Location, req *transport.MapRequest) (*transport.MapResponse, error) {
	c, err := p.client(target)
	if err != nil {
		return nil, err
	}
	return c.Map(ctx, req)
}

func (p peers) Unlink(ctx context.Context, target location.Location, req *transport.UnlinkRequest) error {
	c, err := p.client(target)
	if err != nil {
		return err
	}
	_, err = c.Unlink(ctx, req)
	return err
}

// rdcClient is the configured RDC as seen by the coordinator and announcer.
type rdcClient struct {
	client *transport.RDCClient
	self   func() location.Location
}

var _ mapping.Discovery = rdcClient{}

func (r rdcClient) Discover(ctx context.Context, q query.Spec) ([]location.Location, error) {
	resp, err := r.client.Discover(ctx, &transport.DiscoverRequest{Query: q})
	if err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

func (r rdcClient) ReportFailed(ctx context.Context, failed []location.Location) error {
	_, err := r.client.ReportFailed(ctx, &transport.ReportFailedRequest{Reporter: r.self(), Failed: failed})
	return err
}

// discovery resolves the currently configured RDC.
func (n *Node) discovery() (mapping.Discovery, error) {
	addr, ok := n.RDCAddress()
	if !ok {
		return nil, fmt.Errorf("%w: no rdc configured", mwerrors.ErrBadHost)
	}
	c, err := n.pool.RDC(addr)
	if err != nil {
		return nil, err
	}
	return rdcClient{client: c, self: n.Location}, nil
}
