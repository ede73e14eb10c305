package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/Homlet/middleware-android-sub001/internal/config"
)

// ConfigFrom maps the loaded instance configuration onto node settings.
func ConfigFrom(cfg config.NodeConfig) Config {
	return Config{
		InstanceID:       cfg.Instance.ID,
		ListenAddr:       cfg.GRPC.Addr,
		Advertise:        cfg.GRPC.Advertise,
		RDCAddr:          cfg.RDC.Addr,
		Forceable:        cfg.Instance.Forceable,
		Discoverable:     cfg.Instance.Discoverable,
		EnableReflection: cfg.GRPC.EnableReflection,
		CallTimeout:      cfg.Timeouts.Call,
		AnnounceInterval: cfg.Timeouts.AnnounceInterval,
		LivenessInterval: cfg.Timeouts.LivenessInterval,
	}
}

// Bootstrap creates the declared endpoints, then runs the declared mappings.
// Endpoint failures abort; mapping failures are logged and skipped.
func (n *Node) Bootstrap(ctx context.Context, cfg config.NodeConfig) error {
	for _, ec := range cfg.Endpoints {
		d, err := ec.Details(cfg.BaseConfig)
		if err != nil {
			return err
		}
		if _, err := n.CreateEndpoint(d, ec.Exposed, ec.Forceable); err != nil {
			return fmt.Errorf("create endpoint %q: %w", ec.Name, err)
		}
	}

	for i, mc := range cfg.Mappings {
		if err := n.runMapping(ctx, mc); err != nil {
			n.log.WarnContext(ctx, "declared mapping failed",
				"index", i,
				"endpoint", mc.Endpoint,
				"host", mc.Host,
				"error", err,
			)
		}
	}
	return nil
}

func (n *Node) runMapping(ctx context.Context, mc config.MappingConfig) error {
	if mc.Endpoint == "" {
		return errors.New("mapping without endpoint")
	}
	q, err := mc.Query.Build()
	if err != nil {
		return err
	}
	policy, err := mc.Policy()
	if err != nil {
		return err
	}
	var mapped int
	if mc.Host == "" {
		got, err := n.Map(ctx, mc.Endpoint, q, policy)
		if err != nil {
			return err
		}
		mapped = len(got)
	} else {
		got, err := n.MapTo(ctx, mc.Endpoint, mc.Host, q, policy)
		if err != nil {
			return err
		}
		mapped = len(got)
	}
	n.log.InfoContext(ctx, "declared mapping done", "endpoint", mc.Endpoint, "links", mapped)
	return nil
}
