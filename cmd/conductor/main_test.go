package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "status", "networks", "doctor"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestResolveConfigPathFallsBackToDefault(t *testing.T) {
	if got := resolveConfigPath(""); got != defaultConfigPath {
		t.Fatalf("expected default config path, got %q", got)
	}
	if got := resolveConfigPath("custom.yaml"); got != "custom.yaml" {
		t.Fatalf("expected explicit path to pass through, got %q", got)
	}
}

func TestResolveConfigPathUsesEnvironmentOverride(t *testing.T) {
	t.Setenv("CONDUCTOR_CONFIG", "/etc/conductor/env.yaml")
	if got := resolveConfigPath(""); got != "/etc/conductor/env.yaml" {
		t.Fatalf("expected env override, got %q", got)
	}
}
