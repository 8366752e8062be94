package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/catalog"
	"github.com/conductorhq/conductor/internal/config"
)

// buildStatusCmd creates the "status" command.
func buildStatusCmd() *cobra.Command {
	var (
		configPath string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Conductor's network catalog summary",
		Long: `Display a summary of every agent network Conductor has ever created,
read from the durable network catalog rather than a live server
connection. The catalog is refreshed periodically while "conductor serve"
is running, so this reflects the state as of the last sync.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runStatus(cmd.Context(), cmd.OutOrStdout(), configPath, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runStatus(ctx context.Context, out io.Writer, configPath string, jsonOutput bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	summaries, err := readCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	active := 0
	for _, s := range summaries {
		active += s.ActiveAgentCount
	}

	if jsonOutput {
		return json.NewEncoder(out).Encode(map[string]any{
			"networks":     len(summaries),
			"activeAgents": active,
			"storeRoot":    cfg.Store.RootDir,
			"httpAddr":     fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		})
	}

	fmt.Fprintf(out, "store root:    %s\n", cfg.Store.RootDir)
	fmt.Fprintf(out, "http address:  %s:%d\n", cfg.Server.Host, cfg.Server.HTTPPort)
	fmt.Fprintf(out, "networks:      %d\n", len(summaries))
	fmt.Fprintf(out, "active agents: %d\n", active)
	return nil
}

// buildNetworksCmd creates the "networks" command group.
func buildNetworksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "Inspect agent networks recorded in the catalog",
	}
	cmd.AddCommand(buildNetworksListCmd())
	return cmd
}

func buildNetworksListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every network in the durable catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runNetworksList(cmd.Context(), cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func runNetworksList(ctx context.Context, out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	summaries, err := readCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "no networks recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGOAL\tWORKING DIR\tAGENTS\tACTIVE\tLAST ACTIVE")
	for _, s := range summaries {
		goal := s.Goal
		if goal == "" {
			goal = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, goal, s.WorkingDirectory, s.AgentCount, s.ActiveAgentCount,
			s.LastActiveAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// readCatalog opens the durable catalog under cfg's store root (creating
// the root and the catalog schema if absent) and returns every recorded
// network summary, closing the catalog before returning.
func readCatalog(ctx context.Context, cfg *config.Config) ([]catalog.NetworkSummary, error) {
	if err := os.MkdirAll(cfg.Store.RootDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	catalogPath := filepath.Join(cfg.Store.RootDir, "catalog.db")
	cat, err := catalog.Open(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	return cat.List(ctx)
}
