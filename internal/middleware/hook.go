// Package middleware runs ordered hooks around incoming peer and RDC calls.
package middleware

import "context"

// CallInfo describes the current gRPC call for hook processing.
type CallInfo struct {
	FullMethod string
	// Err is the handler's result. It is only set for post hooks.
	Err error
}

// Hook processes a call. Return a gRPC status error to reject.
type Hook func(ctx context.Context, info *CallInfo) (context.Context, error)

// Chain holds ordered pre and post hooks.
type Chain struct {
	Pre  []Hook
	Post []Hook
}

// RunPre executes pre-hooks in order. Stops on first error.
func (c *Chain) RunPre(ctx context.Context, info *CallInfo) (context.Context, error) {
	if c == nil {
		return ctx, nil
	}
	return run(ctx, c.Pre, info)
}

// RunPost executes post-hooks in order. Stops on first error.
func (c *Chain) RunPost(ctx context.Context, info *CallInfo) (context.Context, error) {
	if c == nil {
		return ctx, nil
	}
	return run(ctx, c.Post, info)
}

func run(ctx context.Context, hooks []Hook, info *CallInfo) (context.Context, error) {
	for _, h := range hooks {
		var err error
		ctx, err = h(ctx, info)
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}
