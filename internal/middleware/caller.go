package middleware

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// InstanceHeader carries the calling middleware instance id.
const InstanceHeader = "mw-instance"

// Caller identifies the remote side of an incoming call.
type Caller struct {
	Instance string
	Addr     string
}

type callerKey struct{}

// WithCaller attaches caller to ctx.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored by IdentifyCaller.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// IdentifyCaller is a pre hook that records the peer address and the
// instance header of the call.
func IdentifyCaller(ctx context.Context, _ *CallInfo) (context.Context, error) {
	var c Caller
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		c.Addr = p.Addr.String()
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(InstanceHeader); len(v) > 0 {
			c.Instance = v[0]
		}
	}
	return WithCaller(ctx, c), nil
}

// LogCalls returns a post hook that logs each call at debug level.
func LogCalls(logger *slog.Logger) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, info *CallInfo) (context.Context, error) {
		c, _ := CallerFrom(ctx)
		if info.Err != nil {
			logger.DebugContext(ctx, "call failed", "method", info.FullMethod, "caller", c.Instance, "addr", c.Addr, "error", info.Err)
		} else {
			logger.DebugContext(ctx, "call handled", "method", info.FullMethod, "caller", c.Instance, "addr", c.Addr)
		}
		return ctx, nil
	}
}

// OutgoingInstance tags outgoing calls with the local instance id.
func OutgoingInstance(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, InstanceHeader, id)
}

// InstanceClientInterceptor tags every outgoing unary call with id.
func InstanceClientInterceptor(id string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(OutgoingInstance(ctx, id), method, req, reply, cc, opts...)
	}
}
