package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/Homlet/middleware-android-sub001/internal/config"
	"github.com/Homlet/middleware-android-sub001/internal/middleware"
	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
)

// DefaultRDCAddr is used when neither --rdc nor MW_RDC is set.
const DefaultRDCAddr = "localhost:7500"

// Env is what a client command runs with.
type Env struct {
	Pool   *transport.Pool
	Viper  *viper.Viper
	Logger *logging.Logger
	// ID identifies this client to peers in the mw-instance header.
	ID string
}

// Peer returns a PeerService client for a user supplied host.
func (e *Env) Peer(host string) (*transport.PeerClient, location.Location, error) {
	loc, err := location.ParseHost(host)
	if err != nil {
		return nil, location.Location{}, err
	}
	c, err := e.Pool.Peer(loc)
	if err != nil {
		return nil, location.Location{}, err
	}
	return c, loc, nil
}

// RDC returns an RDCService client for addr, or for the resolved default.
func (e *Env) RDC(addr string) (*transport.RDCClient, location.Address, error) {
	parsed, err := location.ParseAddress(ResolveRDCAddr(addr))
	if err != nil {
		return nil, "", err
	}
	c, err := e.Pool.RDC(parsed)
	if err != nil {
		return nil, "", err
	}
	return c, parsed, nil
}

// ResolveRDCAddr picks the RDC address: explicit addr, then MW_RDC, then
// DefaultRDCAddr.
func ResolveRDCAddr(addr string) string {
	if addr != "" {
		return addr
	}
	if env := os.Getenv("MW_RDC"); env != "" {
		return env
	}
	return DefaultRDCAddr
}

// CommandConfig configures a one-shot client command.
type CommandConfig struct {
	// Name identifies this command in logs.
	Name string

	// Viper holds the command's configuration.
	Viper *viper.Viper

	// Timeout for the command operation. Zero means no timeout.
	Timeout time.Duration

	// Run is the command's business logic.
	Run func(ctx context.Context, env *Env, out *Output) error
}

// RunCommand sets up logging, a connection pool, signal cancellation and
// the timeout, then runs cfg.Run and closes the pool.
func RunCommand(cfg CommandConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("command name required")
	}
	if cfg.Viper == nil {
		return fmt.Errorf("viper required")
	}
	if cfg.Run == nil {
		return fmt.Errorf("run function required")
	}

	logger := commandLogger(cfg.Viper).WithComponent(cfg.Name)
	id := "cli-" + uuid.NewString()
	pool := transport.NewPool(grpc.WithChainUnaryInterceptor(middleware.InstanceClientInterceptor(id)))
	defer func() { _ = pool.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	env := &Env{Pool: pool, Viper: cfg.Viper, Logger: logger, ID: id}
	out := NewOutputFromViper(cfg.Viper)
	err := cfg.Run(ctx, env, out)
	if err != nil {
		logger.Error("command failed", "error", err)
		// Text errors are printed by cobra; structured formats get a
		// parseable error document as well.
		if out.Format() != FormatText {
			_ = out.Error(cfg.Name, err).WithCode(mwerrors.Kind(err)).Render()
		}
	}
	return err
}

// commandLogger writes client logs to {data_dir}/log/cli.log so they never
// mix with rendered output.
func commandLogger(v *viper.Viper) *logging.Logger {
	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	level := v.GetString("observability.log_level")
	if level == "" {
		level = "info"
	}

	var w io.Writer = io.Discard
	logDir := filepath.Join(dataDir, "log")
	if err := os.MkdirAll(logDir, 0o700); err == nil {
		f, err := os.OpenFile(filepath.Join(logDir, "cli.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is constructed from known data dir
		if err == nil {
			w = f
		}
	}
	return logging.New(observability.SetupLogger(level, "json", w))
}
