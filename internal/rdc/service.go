package rdc

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// Service exposes an Index as transport.RDCServer.
type Service struct {
	index   *Index
	metrics *observability.Metrics
}

var _ transport.RDCServer = (*Service)(nil)

// NewService wraps index.
func NewService(index *Index, metrics *observability.Metrics) *Service {
	return &Service{index: index, metrics: metrics}
}

func (s *Service) Announce(ctx context.Context, req *transport.AnnounceRequest) (*transport.AnnounceResponse, error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "rdc.announce",
		attribute.String("location", req.Location.Key()),
		attribute.Int("endpoints", len(req.Endpoints)))
	err := s.index.Announce(ctx, req.Location, req.Endpoints)
	op.End(err)
	if err != nil {
		return nil, err
	}
	return &transport.AnnounceResponse{}, nil
}

func (s *Service) Withdraw(ctx context.Context, req *transport.WithdrawRequest) (*transport.WithdrawResponse, error) {
	key := req.Location.Key()
	if key == "" {
		return nil, fmt.Errorf("%w: withdraw: empty location", mwerrors.ErrBadHost)
	}
	return &transport.WithdrawResponse{Removed: s.index.Withdraw(ctx, key)}, nil
}

func (s *Service) Discover(ctx context.Context, req *transport.DiscoverRequest) (*transport.DiscoverResponse, error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "rdc.discover")
	q, err := query.FromSpec(req.Query)
	if err != nil {
		op.End(err)
		return nil, err
	}
	locs := s.index.Discover(q)
	op.Logger().DebugContext(ctx, "discover answered", "query", q.String(), "locations", len(locs))
	op.End(nil)
	return &transport.DiscoverResponse{Locations: locs}, nil
}

func (s *Service) ReportFailed(ctx context.Context, req *transport.ReportFailedRequest) (*transport.ReportFailedResponse, error) {
	n := s.index.ReportFailed(ctx, req.Failed)
	if n > 0 {
		s.index.log.InfoContext(ctx, "withdrew reported locations",
			"reporter", req.Reporter.Key(), "reported", len(req.Failed), "withdrawn", n)
	}
	return &transport.ReportFailedResponse{Withdrawn: n}, nil
}

func (s *Service) Hosts(_ context.Context, _ *transport.HostsRequest) (*transport.HostsResponse, error) {
	entries := s.index.Entries()
	hosts := make([]transport.Host, len(entries))
	for i, e := range entries {
		hosts[i] = transport.Host{Location: e.Location.Clone(), Endpoints: e.Endpoints, Updated: e.Updated}
	}
	return &transport.HostsResponse{Hosts: hosts}, nil
}
