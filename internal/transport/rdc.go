package transport

import (
	"context"

	"google.golang.org/grpc"
)

// RDCServiceName is the gRPC service exposed by the Resource Discovery Center.
const RDCServiceName = "mw.rdc.v1.RDCService"

// RDCServer is implemented by the Resource Discovery Center.
type RDCServer interface {
	Announce(ctx context.Context, req *AnnounceRequest) (*AnnounceResponse, error)
	Withdraw(ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error)
	Discover(ctx context.Context, req *DiscoverRequest) (*DiscoverResponse, error)
	ReportFailed(ctx context.Context, req *ReportFailedRequest) (*ReportFailedResponse, error)
	Hosts(ctx context.Context, req *HostsRequest) (*HostsResponse, error)
}

// RDCServiceDesc describes RDCService for grpc.Server.RegisterService.
var RDCServiceDesc = grpc.ServiceDesc{
	ServiceName: RDCServiceName,
	HandlerType: (*RDCServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(RDCServiceName, "Announce", func(srv any, ctx context.Context, req *AnnounceRequest) (*AnnounceResponse, error) {
			return srv.(RDCServer).Announce(ctx, req)
		}),
		unary(RDCServiceName, "Withdraw", func(srv any, ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error) {
			return srv.(RDCServer).Withdraw(ctx, req)
		}),
		unary(RDCServiceName, "Discover", func(srv any, ctx context.Context, req *DiscoverRequest) (*DiscoverResponse, error) {
			return srv.(RDCServer).Discover(ctx, req)
		}),
		unary(RDCServiceName, "ReportFailed", func(srv any, ctx context.Context, req *ReportFailedRequest) (*ReportFailedResponse, error) {
			return srv.(RDCServer).ReportFailed(ctx, req)
		}),
		unary(RDCServiceName, "Hosts", func(srv any, ctx context.Context, req *HostsRequest) (*HostsResponse, error) {
			return srv.(RDCServer).Hosts(ctx, req)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mw/rdc/v1",
}

// RegisterRDCServer registers srv on s.
func RegisterRDCServer(s grpc.ServiceRegistrar, srv RDCServer) {
	s.RegisterService(&RDCServiceDesc, srv)
}

// RDCClient calls RDCService.
type RDCClient struct {
	cc grpc.ClientConnInterface
}

// NewRDCClient wraps an established connection.
func NewRDCClient(cc grpc.ClientConnInterface) *RDCClient {
	return &RDCClient{cc: cc}
}

func rdcMethod(name string) string { return "/" + RDCServiceName + "/" + name }

func (c *RDCClient) Announce(ctx context.Context, req *AnnounceRequest) (*AnnounceResponse, error) {
	return invoke[AnnounceResponse](ctx, c.cc, rdcMethod("Announce"), req)
}

func (c *RDCClient) Withdraw(ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error) {
	return invoke[WithdrawResponse](ctx, c.cc, rdcMethod("Withdraw"), req)
}

func (c *RDCClient) Discover(ctx context.Context, req *DiscoverRequest) (*DiscoverResponse, error) {
	return invoke[DiscoverResponse](ctx, c.cc, rdcMethod("Discover"), req)
}

func (c *RDCClient) ReportFailed(ctx context.Context, req *ReportFailedRequest) (*ReportFailedResponse, error) {
	return invoke[ReportFailedResponse](ctx, c.cc, rdcMethod("ReportFailed"), req)
}

func (c *RDCClient) Hosts(ctx context.Context, req *HostsRequest) (*HostsResponse, error) {
	return invoke[HostsResponse](ctx, c.cc, rdcMethod("Hosts"), req)
}
