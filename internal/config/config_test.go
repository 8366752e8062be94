package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "conductor.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  host: 127.0.0.1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 8741 {
		t.Fatalf("expected default http_port, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Session.Command != "claude" {
		t.Fatalf("expected default session command, got %q", cfg.Session.Command)
	}
	if cfg.Permission.Behavior != "deny" {
		t.Fatalf("expected default permission behavior, got %q", cfg.Permission.Behavior)
	}
	if cfg.Tools.SandboxExec.MaxTimeout <= cfg.Tools.SandboxExec.DefaultTimeout {
		t.Fatalf("expected sandbox max timeout to exceed default timeout")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "server:\n  bogus_field: true\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "server:\n  host: 127.0.0.1\n---\nserver:\n  host: 0.0.0.0\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for multiple YAML documents")
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("CONDUCTOR_TEST_WEBHOOK", "https://hooks.example.com/abc")
	path := writeConfig(t, "tools:\n  notify:\n    webhook_url: ${CONDUCTOR_TEST_WEBHOOK}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tools.Notify.WebhookURL != "https://hooks.example.com/abc" {
		t.Fatalf("expected expanded webhook URL, got %q", cfg.Tools.Notify.WebhookURL)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("CONDUCTOR_PERMISSION_BEHAVIOR", "allow")
	path := writeConfig(t, "server:\n  host: 127.0.0.1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Permission.Behavior != "allow" {
		t.Fatalf("expected env override to win, got %q", cfg.Permission.Behavior)
	}
}

func TestLoadValidatesPermissionBehavior(t *testing.T) {
	path := writeConfig(t, "permission:\n  behavior: maybe\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	validationErr, ok := err.(*ConfigValidationError)
	if !ok {
		t.Fatalf("expected *ConfigValidationError, got %T", err)
	}
	if len(validationErr.Issues) == 0 {
		t.Fatal("expected at least one validation issue")
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
