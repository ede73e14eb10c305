package server

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Homlet/middleware-android-sub001/internal/middleware"
)

type markKey struct{}

func TestUnaryServerInterceptorRunsHooksAroundHandler(t *testing.T) {
	var order []string
	var postErr error
	chain := &middleware.Chain{
		Pre: []middleware.Hook{func(ctx context.Context, _ *middleware.CallInfo) (context.Context, error) {
			order = append(order, "pre")
			return context.WithValue(ctx, markKey{}, "seen"), nil
		}},
		Post: []middleware.Hook{func(ctx context.Context, info *middleware.CallInfo) (context.Context, error) {
			order = append(order, "post")
			postErr = info.Err
			return ctx, nil
		}},
	}

	handlerErr := errors.New("boom")
	info := &grpc.UnaryServerInfo{FullMethod: "/mw.peer.v1.PeerService/Ping"}
	_, err := UnaryServerInterceptor(chain)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		order = append(order, "handler")
		if ctx.Value(markKey{}) != "seen" {
			t.Error("handler did not see the pre hook context")
		}
		return nil, handlerErr
	})

	if !errors.Is(err, handlerErr) {
		t.Fatalf("err = %v, want handler error", err)
	}
	if !errors.Is(postErr, handlerErr) {
		t.Errorf("post hook saw %v, want handler error", postErr)
	}
	want := []string{"pre", "handler", "post"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestUnaryServerInterceptorPreHookRejects(t *testing.T) {
	chain := &middleware.Chain{
		Pre: []middleware.Hook{func(ctx context.Context, _ *middleware.CallInfo) (context.Context, error) {
			return ctx, status.Error(codes.PermissionDenied, "no")
		}},
	}
	called := false
	info := &grpc.UnaryServerInfo{FullMethod: "/mw.peer.v1.PeerService/Force"}
	_, err := UnaryServerInterceptor(chain)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		called = true
		return nil, nil
	})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("code = %v, want PermissionDenied", status.Code(err))
	}
	if called {
		t.Error("handler ran after a rejecting pre hook")
	}
}

func TestUnaryServerInterceptorPostErrorOnlyOnSuccess(t *testing.T) {
	postFail := errors.New("post")
	chain := &middleware.Chain{
		Post: []middleware.Hook{func(ctx context.Context, _ *middleware.CallInfo) (context.Context, error) {
			return ctx, postFail
		}},
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/mw.rdc.v1.RDCService/Hosts"}

	resp, err := UnaryServerInterceptor(chain)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if !errors.Is(err, postFail) || resp != nil {
		t.Fatalf("resp, err = %v, %v; want nil, post error", resp, err)
	}

	handlerErr := errors.New("handler")
	_, err = UnaryServerInterceptor(chain)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, handlerErr
	})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("err = %v, want handler error to win", err)
	}
}

func TestUnaryServerInterceptorNilChain(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/mw.peer.v1.PeerService/Ping"}
	resp, err := UnaryServerInterceptor(nil)(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return req, nil
	})
	if err != nil || resp != "req" {
		t.Fatalf("resp, err = %v, %v", resp, err)
	}
}
