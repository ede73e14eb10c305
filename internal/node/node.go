// Package node assembles one middleware instance: the endpoint registry, the
// mapping coordinator, recovery, the force dispatcher, the peer service and
// the background announcer and liveness loops.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Homlet/middleware-android-sub001/internal/force"
	"github.com/Homlet/middleware-android-sub001/internal/mapping"
	"github.com/Homlet/middleware-android-sub001/internal/middleware"
	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/internal/recovery"
	"github.com/Homlet/middleware-android-sub001/internal/registry"
	"github.com/Homlet/middleware-android-sub001/internal/server"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
	"github.com/Homlet/middleware-android-sub001/pkg/schema"
)

// Config configures a Node.
type Config struct {
	// InstanceID identifies the instance; a random id is used when empty.
	InstanceID string
	// ListenAddr is the gRPC listen address.
	ListenAddr string
	// Advertise lists addresses announced ahead of the listen address.
	Advertise []string
	// RDCAddr is the initial RDC address. Empty leaves discovery unconfigured.
	RDCAddr          string
	Forceable        bool
	Discoverable     bool
	EnableReflection bool
	CallTimeout      time.Duration
	AnnounceInterval time.Duration
	LivenessInterval time.Duration
	// Validator checks message payloads; JSON Schema when nil.
	Validator schema.Validator
}

// Node is one running middleware instance.
type Node struct {
	cfg     Config
	id      string
	self    location.Location
	log     *logging.Logger
	metrics *observability.Metrics

	server    *server.Server
	pool      *transport.Pool
	registry  *registry.Registry
	coord     *mapping.Coordinator
	recovery  *recovery.Engine
	force     *force.Dispatcher
	validator schema.Validator
	announcer *announcer

	rdcMu   sync.RWMutex
	rdcAddr location.Address
	hasRDC  bool

	discoverable atomic.Bool
	shutdownOnce sync.Once
}

// New builds a node and binds its listener. Call Run to start serving.
func New(cfg Config, obs *observability.Observability) (*Node, error) {
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = mapping.DefaultCallTimeout
	}
	if cfg.AnnounceInterval <= 0 {
		cfg.AnnounceInterval = 30 * time.Second
	}
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = 10 * time.Second
	}
	if cfg.Validator == nil {
		cfg.Validator = schema.NewJSONSchema()
	}

	var metrics *observability.Metrics
	log := logging.New(nil)
	if obs != nil {
		metrics = obs.Metrics
		log = logging.New(obs.Logger)
	}
	log = log.WithInstance(cfg.InstanceID)

	n := &Node{
		cfg:       cfg,
		id:        cfg.InstanceID,
		log:       log.WithComponent("node"),
		metrics:   metrics,
		validator: cfg.Validator,
	}
	n.discoverable.Store(cfg.Discoverable)

	if cfg.RDCAddr != "" {
		addr, err := location.ParseAddress(cfg.RDCAddr)
		if err != nil {
			return nil, fmt.Errorf("rdc address: %w", err)
		}
		n.rdcAddr, n.hasRDC = addr, true
	}

	chain := &middleware.Chain{
		Pre:  []middleware.Hook{middleware.IdentifyCaller},
		Post: []middleware.Hook{middleware.LogCalls(log.Slog())},
	}
	srv, err := server.New(cfg.ListenAddr, obs, cfg.EnableReflection, chain)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	self, err := location.Local(cfg.InstanceID, srv.Addr(), cfg.Advertise...)
	if err != nil {
		srv.Stop(context.Background())
		return nil, err
	}
	n.server = srv
	n.self = self
	n.pool = transport.NewPool(grpc.WithChainUnaryInterceptor(middleware.InstanceClientInterceptor(cfg.InstanceID)))

	n.registry = registry.New(registry.WithLogger(log))
	n.coord = mapping.NewCoordinator(mapping.Options{
		Registry:    n.registry,
		Peers:       peers{pool: n.pool},
		Discovery:   n.discovery,
		Self:        n.Location,
		CallTimeout: cfg.CallTimeout,
		Metrics:     metrics,
		Logger:      log,
	})
	n.recovery = recovery.New(n.coord,
		recovery.WithMetrics(metrics),
		recovery.WithLogger(log),
	)
	n.coord.OnFailure(n.recovery.Handle)
	n.registry.SetTeardown(n.coord.Teardown)

	n.force = force.New(force.Options{
		Registry:  n.registry,
		Mapper:    n.coord,
		SetRDC:    n.SetRDCAddress,
		Forceable: cfg.Forceable,
		Metrics:   metrics,
		Logger:    log,
	})

	n.announcer = newAnnouncer(n, cfg.AnnounceInterval, log)
	n.registry.OnChange(func(registry.Change) {
		n.metrics.SetEndpoints(n.registry.Count())
		n.announcer.Trigger()
	})

	transport.RegisterPeerServer(srv.GRPCServer(), &peerService{n: n})

	n.log.Info("instance ready",
		"location", logging.FormatLocation(self),
		"petname", self.Petname(),
	)
	return n, nil
}

// Run serves the peer service and runs the announcer and liveness loops
// until ctx is done or one of them fails. It shuts the node down on return.
func (n *Node) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := n.server.Serve(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error { return n.announcer.Run(gctx) })
	g.Go(func() error { return n.runLiveness(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return n.Shutdown(shutdownCtx)
	})

	n.announcer.Trigger()
	return g.Wait()
}

// Shutdown withdraws from the RDC, stops recovery and the server, and closes
// outbound connections. It is safe to call more than once.
func (n *Node) Shutdown(ctx context.Context) error {
	n.shutdownOnce.Do(func() {
		n.server.SetServingStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		if err := n.withdraw(ctx); err != nil {
			n.log.DebugContext(ctx, "withdraw on shutdown", "error", err)
		}
		n.recovery.Close()
		n.server.Stop(ctx)
		if err := n.pool.Close(); err != nil {
			n.log.DebugContext(ctx, "close pool", "error", err)
		}
		n.log.InfoContext(ctx, "instance stopped")
	})
	return nil
}

// ID returns the instance id.
func (n *Node) ID() string { return n.id }

// Location returns this instance's advertised location.
func (n *Node) Location() location.Location { return n.self.Clone() }

// Addr returns the bound listen address.
func (n *Node) Addr() string { return n.server.Addr() }

func (n *Node) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, n.cfg.CallTimeout)
}
