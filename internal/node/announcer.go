package node

import (
	"context"
	"time"

	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
)

// announcer keeps the RDC entry for this instance current. Changes are
// coalesced through a one-slot kick channel.
type announcer struct {
	n        *Node
	interval time.Duration
	kick     chan struct{}
	log      *logging.Logger
}

func newAnnouncer(n *Node, interval time.Duration, log *logging.Logger) *announcer {
	return &announcer{
		n:        n,
		interval: interval,
		kick:     make(chan struct{}, 1),
		log:      log.WithComponent("announcer"),
	}
}

// Trigger schedules an announcement without blocking.
func (a *announcer) Trigger() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Run announces on every trigger and every interval until ctx is done.
func (a *announcer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-a.kick:
		}
		if err := a.n.Announce(ctx); err != nil {
			a.log.WarnContext(ctx, "announce failed", "error", err)
		}
	}
}

// Announce publishes the exposed endpoints to the configured RDC, or
// withdraws when the instance is not discoverable. Without an RDC it is a
// no-op.
func (n *Node) Announce(ctx context.Context) error {
	addr, ok := n.RDCAddress()
	if !ok {
		return nil
	}
	if !n.Discoverable() {
		return n.withdrawFrom(ctx, addr)
	}
	client, err := n.pool.RDC(addr)
	if err != nil {
		return err
	}
	details := n.registry.ExposedDetails()
	cctx, cancel := n.callContext(ctx)
	defer cancel()
	if _, err := client.Announce(cctx, &transport.AnnounceRequest{Location: n.Location(), Endpoints: details}); err != nil {
		return err
	}
	n.log.DebugContext(ctx, "announced", "rdc", addr.String(), "endpoints", len(details))
	return nil
}

func (n *Node) withdraw(ctx context.Context) error {
	addr, ok := n.RDCAddress()
	if !ok {
		return nil
	}
	return n.withdrawFrom(ctx, addr)
}

func (n *Node) withdrawFrom(ctx context.Context, addr location.Address) error {
	client, err := n.pool.RDC(addr)
	if err != nil {
		return err
	}
	cctx, cancel := n.callContext(ctx)
	defer cancel()
	_, err = client.Withdraw(cctx, &transport.WithdrawRequest{Location: n.Location()})
	return err
}
