// Package config loads Conductor's YAML configuration file into a typed
// Config, following the teacher's internal/config three-phase pipeline:
// decode with unknown-field rejection, apply environment overrides, apply
// defaults, then validate.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Conductor.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Session    SessionConfig    `yaml:"session"`
	Permission PermissionConfig `yaml:"permission"`
	Tools      ToolsConfig      `yaml:"tools"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the loopback HTTP/WebSocket gateway.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// StoreConfig configures the on-disk network/session catalog root.
type StoreConfig struct {
	RootDir string `yaml:"root_dir"`
}

// SessionConfig configures how the assistant-CLI subprocess is launched.
type SessionConfig struct {
	Command          string        `yaml:"command"`
	Args             []string      `yaml:"args"`
	WorkingDirectory string        `yaml:"working_directory"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace"`
}

// PermissionConfig configures the Permission Engine's fallback behavior
// for the AskUser decision and where its on-disk settings live.
type PermissionConfig struct {
	// Behavior is one of "ask", "deny", "allow" — see
	// internal/permission.AskUserBehavior.
	Behavior     string `yaml:"behavior"`
	SettingsPath string `yaml:"settings_path"`
	IgnoreFile   string `yaml:"ignore_file"`
}

// ToolsConfig groups the per-tool-server settings.
type ToolsConfig struct {
	Memory      MemoryToolConfig      `yaml:"memory"`
	VCS         VCSToolConfig         `yaml:"vcs"`
	WebSearch   WebSearchToolConfig   `yaml:"websearch"`
	SandboxExec SandboxExecToolConfig `yaml:"sandbox_exec"`
	Notify      NotifyToolConfig      `yaml:"notify"`
	TaskApp     TaskAppToolConfig     `yaml:"task_app"`
}

type MemoryToolConfig struct {
	Directory string `yaml:"directory"`
}

type VCSToolConfig struct {
	BinaryPath string `yaml:"binary_path"`
}

type WebSearchToolConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type SandboxExecToolConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	MaxTimeout     time.Duration `yaml:"max_timeout"`
}

type NotifyToolConfig struct {
	WebhookURL    string  `yaml:"webhook_url"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

type TaskAppToolConfig struct {
	VisionBackendURL string `yaml:"vision_backend_url"`
}

// LoggingConfig configures internal/observability's slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path, expands environment variable
// references, rejects unknown fields, applies CONDUCTOR_* environment
// overrides, fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applySessionDefaults(&cfg.Session)
	applyPermissionDefaults(&cfg.Permission)
	applyToolsDefaults(&cfg.Tools)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8741
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 8742
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.RootDir == "" {
		cfg.RootDir = ".conductor"
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	if cfg.WorkingDirectory == "" {
		cfg.WorkingDirectory = "."
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
}

func applyPermissionDefaults(cfg *PermissionConfig) {
	if cfg.Behavior == "" {
		cfg.Behavior = "deny"
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "settings.json"
	}
	if cfg.IgnoreFile == "" {
		cfg.IgnoreFile = ".conductorignore"
	}
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg.Memory.Directory == "" {
		cfg.Memory.Directory = "memory"
	}
	if cfg.VCS.BinaryPath == "" {
		cfg.VCS.BinaryPath = "git"
	}
	if cfg.WebSearch.FetchTimeout == 0 {
		cfg.WebSearch.FetchTimeout = 15 * time.Second
	}
	if cfg.SandboxExec.DefaultTimeout == 0 {
		cfg.SandboxExec.DefaultTimeout = 30 * time.Second
	}
	if cfg.SandboxExec.MaxTimeout == 0 {
		cfg.SandboxExec.MaxTimeout = 5 * time.Minute
	}
	if cfg.Notify.RatePerSecond == 0 {
		cfg.Notify.RatePerSecond = 1
	}
	if cfg.Notify.Burst == 0 {
		cfg.Notify.Burst = 5
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_STORE_ROOT")); value != "" {
		cfg.Store.RootDir = value
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_SESSION_COMMAND")); value != "" {
		cfg.Session.Command = value
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_PERMISSION_BEHAVIOR")); value != "" {
		cfg.Permission.Behavior = value
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_NOTIFY_WEBHOOK_URL")); value != "" {
		cfg.Tools.Notify.WebhookURL = value
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
}

// ConfigValidationError reports every validation issue found, not just
// the first, so a misconfigured deployment can be fixed in one pass.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	var issues []string

	if cfg.Server.HTTPPort < 0 || cfg.Server.HTTPPort > 65535 {
		issues = append(issues, "server.http_port must be between 0 and 65535")
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		issues = append(issues, "server.metrics_port must be between 0 and 65535")
	}
	if strings.TrimSpace(cfg.Session.Command) == "" {
		issues = append(issues, "session.command must not be empty")
	}
	if cfg.Session.ShutdownGrace < 0 {
		issues = append(issues, "session.shutdown_grace must be >= 0")
	}
	if !validBehavior(cfg.Permission.Behavior) {
		issues = append(issues, `permission.behavior must be "ask", "deny", or "allow"`)
	}
	if cfg.Tools.WebSearch.FetchTimeout < 0 {
		issues = append(issues, "tools.websearch.fetch_timeout must be >= 0")
	}
	if cfg.Tools.SandboxExec.MaxTimeout < cfg.Tools.SandboxExec.DefaultTimeout {
		issues = append(issues, "tools.sandbox_exec.max_timeout must be >= tools.sandbox_exec.default_timeout")
	}
	if cfg.Tools.Notify.RatePerSecond < 0 {
		issues = append(issues, "tools.notify.rate_per_second must be >= 0")
	}
	if cfg.Tools.Notify.Burst < 0 {
		issues = append(issues, "tools.notify.burst must be >= 0")
	}
	if !validLogLevel(cfg.Logging.Level) {
		issues = append(issues, `logging.level must be "debug", "info", "warn", or "error"`)
	}
	if !validLogFormat(cfg.Logging.Format) {
		issues = append(issues, `logging.format must be "json" or "text"`)
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

func validBehavior(s string) bool {
	switch s {
	case "ask", "deny", "allow":
		return true
	default:
		return false
	}
}

func validLogLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validLogFormat(s string) bool {
	switch s {
	case "json", "text":
		return true
	default:
		return false
	}
}
