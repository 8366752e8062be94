package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/config"
	"github.com/conductorhq/conductor/internal/observability"
)

// shutdownTimeout bounds how long runServe waits for in-flight requests
// and subprocesses to drain once a shutdown signal arrives.
const shutdownTimeout = 30 * time.Second

// buildServeCmd creates the "serve" command that starts the gateway.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Conductor gateway",
		Long: `Start the Conductor gateway server.

The server will:
1. Load configuration from the specified file (or conductor.yaml)
2. Open the durable network catalog and on-disk persistence root
3. Construct the permission engine, tool servers, and agent network manager
4. Start the loopback HTTP/WebSocket gateway

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  conductor serve

  # Start with a custom config
  conductor serve --config /etc/conductor/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{Level: logLevel})
	slog.SetDefault(logger)

	logger.Info("starting conductor gateway", "version", version, "commit", commit, "config", configPath, "debug", debug)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Logging.Level != "" && !debug {
		logger = observability.NewLogger(observability.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		slog.SetDefault(logger)
	}

	_, shutdownTracing := observability.NewTracer(observability.TraceConfig{ServiceName: "conductor", ServiceVersion: version})
	defer func() {
		shutdownCtx, shutdownTraceCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownTraceCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("conductor: tracer shutdown failed", "error", err)
		}
	}()

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			logger.Warn("conductor: runtime close failed", "error", closeErr)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	if err := rt.gateway.Start(addr); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go rt.syncCatalog(ctx)

	logger.Info("conductor gateway started", "addr", rt.gateway.Addr())

	<-ctx.Done()
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := rt.gateway.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("conductor gateway stopped gracefully")
	return nil
}
