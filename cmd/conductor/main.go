// Package main provides the CLI entry point for Conductor, a local
// multi-agent orchestration runtime.
//
// Conductor runs a tree of agent subprocesses under one or more agent
// networks, each rooted at a working directory, and exposes them over a
// loopback HTTP/WebSocket gateway for an interactive host to drive.
//
// # Basic Usage
//
// Start the gateway:
//
//	conductor serve --config conductor.yaml
//
// Check system status:
//
//	conductor status
//
// List known agent networks:
//
//	conductor networks list
//
// Validate configuration:
//
//	conductor doctor
//
// # Environment Variables
//
//   - CONDUCTOR_CONFIG: path to the configuration file (default: conductor.yaml)
//   - CONDUCTOR_HOST, CONDUCTOR_HTTP_PORT, CONDUCTOR_STORE_ROOT,
//     CONDUCTOR_SESSION_COMMAND, CONDUCTOR_PERMISSION_BEHAVIOR,
//     CONDUCTOR_NOTIFY_WEBHOOK_URL, CONDUCTOR_LOG_LEVEL: see internal/config.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// version, commit, and date are set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conductor",
		Short: "Conductor - local multi-agent orchestration runtime",
		Long: `Conductor runs trees of agent subprocesses under one or more agent
networks and exposes them over a loopback HTTP/WebSocket gateway.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildStatusCmd(),
		buildNetworksCmd(),
		buildDoctorCmd(),
	)

	return rootCmd
}

// resolveConfigPath returns path unless it's empty, in which case it
// falls back to CONDUCTOR_CONFIG, then the literal default.
func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("CONDUCTOR_CONFIG")); env != "" {
		return env
	}
	return defaultConfigPath
}

const defaultConfigPath = "conductor.yaml"
