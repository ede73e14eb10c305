package middleware

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

func TestRunPreEmpty(t *testing.T) {
	c := &Chain{}
	ctx := context.Background()
	resultCtx, err := c.RunPre(ctx, &CallInfo{FullMethod: "test.Service/Method"})
	if err != nil {
		t.Errorf("RunPre() with empty chain returned error: %v", err)
	}
	if resultCtx != ctx {
		t.Error("RunPre() should return the same context when chain is empty")
	}
}

func TestNilChain(t *testing.T) {
	var c *Chain
	if _, err := c.RunPre(context.Background(), &CallInfo{}); err != nil {
		t.Errorf("RunPre on nil chain: %v", err)
	}
	if _, err := c.RunPost(context.Background(), &CallInfo{}); err != nil {
		t.Errorf("RunPost on nil chain: %v", err)
	}
}

func TestRunPreStopsOnError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	c := &Chain{Pre: []Hook{
		func(ctx context.Context, _ *CallInfo) (context.Context, error) {
			calls = append(calls, "first")
			return ctx, nil
		},
		func(ctx context.Context, _ *CallInfo) (context.Context, error) {
			calls = append(calls, "second")
			return ctx, boom
		},
		func(ctx context.Context, _ *CallInfo) (context.Context, error) {
			calls = append(calls, "third")
			return ctx, nil
		},
	}}

	_, err := c.RunPre(context.Background(), &CallInfo{})
	if !errors.Is(err, boom) {
		t.Fatalf("RunPre() error = %v, want boom", err)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v, want [first second]", calls)
	}
}

func TestRunPostSeesError(t *testing.T) {
	var seen error
	c := &Chain{Post: []Hook{func(ctx context.Context, info *CallInfo) (context.Context, error) {
		seen = info.Err
		return ctx, nil
	}}}
	boom := errors.New("handler failed")
	if _, err := c.RunPost(context.Background(), &CallInfo{Err: boom}); err != nil {
		t.Fatal(err)
	}
	if seen != boom {
		t.Errorf("post hook saw %v, want %v", seen, boom)
	}
}

func TestIdentifyCaller(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(InstanceHeader, "inst-42"))
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 7400}})

	ctx, err := IdentifyCaller(ctx, &CallInfo{})
	if err != nil {
		t.Fatal(err)
	}
	c, ok := CallerFrom(ctx)
	if !ok {
		t.Fatal("caller not stored")
	}
	if c.Instance != "inst-42" || c.Addr != "10.0.0.7:7400" {
		t.Errorf("caller = %+v", c)
	}
}

func TestOutgoingInstance(t *testing.T) {
	ctx := OutgoingInstance(context.Background(), "inst-1")
	md, _ := metadata.FromOutgoingContext(ctx)
	if got := md.Get(InstanceHeader); len(got) != 1 || got[0] != "inst-1" {
		t.Errorf("outgoing metadata = %v", md)
	}
	if OutgoingInstance(context.Background(), "") != context.Background() {
		t.Error("empty id should leave ctx untouched")
	}
}
