package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/Homlet/middleware-android-sub001/internal/middleware"
)

// UnaryServerInterceptor runs chain's pre hooks before the handler and its
// post hooks after it. A failing pre hook rejects the call.
func UnaryServerInterceptor(chain *middleware.Chain) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		callInfo := &middleware.CallInfo{FullMethod: info.FullMethod}
		ctx, err := chain.RunPre(ctx, callInfo)
		if err != nil {
			return nil, err
		}

		resp, err := handler(ctx, req)

		callInfo.Err = err
		if _, postErr := chain.RunPost(ctx, callInfo); postErr != nil && err == nil {
			return nil, postErr
		}
		return resp, err
	}
}
