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

	"github.com/Homlet/middleware-android-sub001/internal/config"
	"github.com/Homlet/middleware-android-sub001/internal/node"
	"github.com/Homlet/middleware-android-sub001/internal/observability"
)

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a middleware instance",
		Long: `Start a middleware instance.

The instance serves the peer protocol, creates the endpoints declared in its
config file, runs the declared mappings and keeps its RDC entry current.

Examples:
  mw start                                  # defaults, no RDC
  mw start --rdc 10.0.0.1:7500              # announce to an RDC
  mw start --config ./phone.hcl --forceable # accept remote commands`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, v)
		},
	}
	config.BindNodeFlags(cmd, v)
	return cmd
}

func runStart(cmd *cobra.Command, v *viper.Viper) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadNode(v, configFile)
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

	n, err := node.New(node.ConfigFrom(cfg), obs)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	obs.Shutdown.Register("instance", n.Shutdown)

	runErr := make(chan error, 1)
	go func() { runErr <- n.Run(ctx) }()

	if err := n.Bootstrap(ctx, cfg); err != nil {
		cancel()
		<-runErr
		return fmt.Errorf("bootstrap: %w", err)
	}

	slog.Info("serving",
		"addr", n.Addr(),
		"instance", n.ID(),
		"endpoints", len(n.Endpoints()),
		"metrics", cfg.Observability.MetricsAddr,
	)

	err = <-runErr
	slog.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if cerr := obs.Close(shutdownCtx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}
