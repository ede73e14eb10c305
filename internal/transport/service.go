package transport

import (
	"context"

	"google.golang.org/grpc"
)

// unary builds a method descriptor for a JSON request/response pair. Errors
// returned by call are converted with ToStatus before interceptors see them.
func unary[Req, Resp any](service, method string, call func(srv any, ctx context.Context, req *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	invoke := func(srv any, ctx context.Context, req *Req) (any, error) {
		resp, err := call(srv, ctx, req)
		if err != nil {
			return nil, ToStatus(err)
		}
		return resp, nil
	}
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return invoke(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return invoke(srv, ctx, req.(*Req))
			})
		},
	}
}

// invoke performs a unary call with the JSON codec and maps the error back
// into the domain taxonomy.
func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, CallOption()); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}
