package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/config"
)

// buildDoctorCmd creates the "doctor" command for config validation.
func buildDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and the local environment",
		Long: `Load and validate conductor.yaml, confirm the configured session
command is resolvable on PATH, and confirm the store root directory is
writable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runDoctor(cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func runDoctor(out io.Writer, configPath string) error {
	var failures int

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(out, "[FAIL] config: %v\n", err)
		return fmt.Errorf("doctor: config invalid")
	}
	fmt.Fprintf(out, "[ OK ] config loaded from %s\n", configPath)

	if _, err := exec.LookPath(cfg.Session.Command); err != nil {
		fmt.Fprintf(out, "[FAIL] session command %q not found on PATH\n", cfg.Session.Command)
		failures++
	} else {
		fmt.Fprintf(out, "[ OK ] session command %q resolvable\n", cfg.Session.Command)
	}

	if err := checkWritable(cfg.Store.RootDir); err != nil {
		fmt.Fprintf(out, "[FAIL] store root %q not writable: %v\n", cfg.Store.RootDir, err)
		failures++
	} else {
		fmt.Fprintf(out, "[ OK ] store root %q writable\n", cfg.Store.RootDir)
	}

	if cfg.Tools.Notify.WebhookURL == "" {
		fmt.Fprintln(out, "[WARN] tools.notify.webhook_url is unset; notifyAskUser/notifyCompletion will return an error")
	}

	if failures > 0 {
		return fmt.Errorf("doctor: %d check(s) failed", failures)
	}
	return nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := dir + "/.doctor-write-probe"
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return err
	}
	return os.Remove(probe)
}
