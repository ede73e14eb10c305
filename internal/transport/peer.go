package transport

import (
	"context"

	"google.golang.org/grpc"
)

// PeerServiceName is the gRPC service every middleware instance exposes.
const PeerServiceName = "mw.peer.v1.PeerService"

// PeerServer is implemented by a middleware instance.
type PeerServer interface {
	Map(ctx context.Context, req *MapRequest) (*MapResponse, error)
	Unlink(ctx context.Context, req *UnlinkRequest) (*UnlinkResponse, error)
	Deliver(ctx context.Context, req *DeliverRequest) (*DeliverResponse, error)
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
	Force(ctx context.Context, req *ForceRequest) (*ForceResponse, error)
	Endpoints(ctx context.Context, req *EndpointsRequest) (*EndpointsResponse, error)
}

// PeerServiceDesc describes PeerService for grpc.Server.RegisterService.
var PeerServiceDesc = grpc.ServiceDesc{
	ServiceName: PeerServiceName,
	HandlerType: (*PeerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(PeerServiceName, "Map", func(srv any, ctx context.Context, req *MapRequest) (*MapResponse, error) {
			return srv.(PeerServer).Map(ctx, req)
		}),
		unary(PeerServiceName, "Unlink", func(srv any, ctx context.Context, req *UnlinkRequest) (*UnlinkResponse, error) {
			return srv.(PeerServer).Unlink(ctx, req)
		}),
		unary(PeerServiceName, "Deliver", func(srv any, ctx context.Context, req *DeliverRequest) (*DeliverResponse, error) {
			return srv.(PeerServer).Deliver(ctx, req)
		}),
		unary(PeerServiceName, "Ping", func(srv any, ctx context.Context, req *PingRequest) (*PingResponse, error) {
			return srv.(PeerServer).Ping(ctx, req)
		}),
		unary(PeerServiceName, "Force", func(srv any, ctx context.Context, req *ForceRequest) (*ForceResponse, error) {
			return srv.(PeerServer).Force(ctx, req)
		}),
		unary(PeerServiceName, "Endpoints", func(srv any, ctx context.Context, req *EndpointsRequest) (*EndpointsResponse, error) {
			return srv.(PeerServer).Endpoints(ctx, req)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mw/peer/v1",
}

// RegisterPeerServer registers srv on s.
func RegisterPeerServer(s grpc.ServiceRegistrar, srv PeerServer) {
	s.RegisterService(&PeerServiceDesc, srv)
}

// PeerClient calls PeerService on one remote instance.
type PeerClient struct {
	cc grpc.ClientConnInterface
}

// NewPeerClient wraps an established connection.
func NewPeerClient(cc grpc.ClientConnInterface) *PeerClient {
	return &PeerClient{cc: cc}
}

func peerMethod(name string) string { return "/" + PeerServiceName + "/" + name }

func (c *PeerClient) Map(ctx context.Context, req *MapRequest) (*MapResponse, error) {
	return invoke[MapResponse](ctx, c.cc, peerMethod("Map"), req)
}

func (c *PeerClient) Unlink(ctx context.Context, req *UnlinkRequest) (*UnlinkResponse, error) {
	return invoke[UnlinkResponse](ctx, c.cc, peerMethod("Unlink"), req)
}

func (c *PeerClient) Deliver(ctx context.Context, req *DeliverRequest) (*DeliverResponse, error) {
	return invoke[DeliverResponse](ctx, c.cc, peerMethod("Deliver"), req)
}

func (c *PeerClient) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, peerMethod("Ping"), req)
}

func (c *PeerClient) Force(ctx context.Context, req *ForceRequest) (*ForceResponse, error) {
	return invoke[ForceResponse](ctx, c.cc, peerMethod("Force"), req)
}

func (c *PeerClient) Endpoints(ctx context.Context, req *EndpointsRequest) (*EndpointsResponse, error) {
	return invoke[EndpointsResponse](ctx, c.cc, peerMethod("Endpoints"), req)
}
