package node

import (
	"context"
	"time"

	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
)

func (n *Node) runLiveness(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.Probe(ctx)
		}
	}
}

// Probe pings every location holding an open link. A location that does not
// answer, or answers with a different instance id, has all its links closed.
// It returns the number of links closed.
func (n *Node) Probe(ctx context.Context) int {
	closed := 0
	for _, loc := range n.coord.Locations() {
		if err := n.ping(ctx, loc); err != nil {
			n.log.WithLocation("location", loc).WarnContext(ctx, "location unreachable", "error", err)
			closed += n.coord.FailLocation(ctx, loc)
			n.pool.Forget(loc)
		}
	}
	return closed
}

type instanceChangedError struct {
	want, got string
}

func (e instanceChangedError) Error() string {
	return "instance changed from " + e.want + " to " + e.got
}

func (n *Node) ping(ctx context.Context, loc location.Location) error {
	client, err := n.pool.Peer(loc)
	if err != nil {
		return err
	}
	cctx, cancel := n.callContext(ctx)
	defer cancel()
	resp, err := client.Ping(cctx, &transport.PingRequest{From: n.Location()})
	if err != nil {
		return err
	}
	if loc.ID != "" && resp.Location.ID != "" && resp.Location.ID != loc.ID {
		return instanceChangedError{want: loc.ID, got: resp.Location.ID}
	}
	return nil
}
