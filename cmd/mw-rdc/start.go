package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/Homlet/middleware-android-sub001/internal/config"
	"github.com/Homlet/middleware-android-sub001/internal/middleware"
	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/internal/rdc"
	"github.com/Homlet/middleware-android-sub001/internal/server"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
)

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Resource Discovery Center",
		Long: `Start the Resource Discovery Center.

The RDC indexes the endpoints instances announce and answers discovery
queries. Entries not refreshed within the TTL are expired.

Examples:
  mw-rdc start                                  # in-memory index on :7500
  mw-rdc start --backend badger                 # durable index under ~/.mw
  MW_RDC_STORAGE_BACKEND=redis mw-rdc start     # shared index in redis`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, v)
		},
	}
	config.BindRDCFlags(cmd, v)
	return cmd
}

func runStart(cmd *cobra.Command, v *viper.Viper) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRDC(v, configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Observability.ServiceVersion == "dev" {
		cfg.Observability.ServiceVersion = version
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	obs, err := observability.New(ctx, cfg.Observability.Obs(), os.Stderr)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	slog.SetDefault(obs.Logger)
	if cfg.Observability.MetricsAddr != "" {
		if _, err := obs.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			return err
		}
	}

	st, err := rdc.OpenStore(ctx, cfg.Storage, cfg.BaseConfig, obs.Metrics)
	if err != nil {
		return err
	}
	obs.Shutdown.Register("store", func(context.Context) error {
		return st.Close()
	})

	index := rdc.NewIndex(
		rdc.WithStore(st),
		rdc.WithMetrics(obs.Metrics),
		rdc.WithLogger(logging.New(obs.Logger)),
	)
	restored, err := index.Load(ctx)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	slog.Info("index loaded", "backend", cfg.Storage.Backend, "locations", restored)

	reaper := rdc.NewReaper(index, cfg.Index.TTL, cfg.Index.ReapInterval)
	go reaper.Run(ctx)

	chain := &middleware.Chain{
		Pre:  []middleware.Hook{middleware.IdentifyCaller},
		Post: []middleware.Hook{middleware.LogCalls(obs.Logger)},
	}
	srv, err := server.New(cfg.GRPC.Addr, obs, cfg.GRPC.EnableReflection, chain)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	transport.RegisterRDCServer(srv.GRPCServer(), rdc.NewService(index, obs.Metrics))
	obs.Shutdown.Register("grpc-server", func(ctx context.Context) error {
		srv.Stop(ctx)
		return nil
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()
	slog.Info("serving", "addr", srv.Addr(), "ttl", cfg.Index.TTL, "metrics", cfg.Observability.MetricsAddr)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		err = nil
	case err = <-serveErr:
		if errors.Is(err, grpc.ErrServerStopped) {
			err = nil
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if cerr := obs.Close(shutdownCtx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}
