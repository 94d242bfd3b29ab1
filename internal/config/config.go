// Package config handles loading and validating opsbox configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for opsbox.
//
// The three base directories are fixed at startup and never created by the
// service: a missing directory surfaces as a per-request configuration
// error, not a startup failure.
type Config struct {
	Server        ServerConfig         `json:"server" yaml:"server"`
	Sandbox       SandboxConfig        `json:"sandbox" yaml:"sandbox"`
	Downloads     DownloadsConfig      `json:"downloads" yaml:"downloads"`
	Logs          LogsConfig           `json:"logs" yaml:"logs"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled

	// WorkingDir is the process working directory captured during Load.
	// Not read from the file; used by the default-log fallback search.
	WorkingDir string `json:"-" yaml:"-"`
}

// ServerConfig configures the HTTP listener and authentication.
type ServerConfig struct {
	ListenAddr string     `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080". Override: OPSBOX_LISTEN_ADDR.
	EnableDocs bool       `json:"enable_docs" yaml:"enable_docs"` // Serve OpenAPI docs.
	Auth       AuthConfig `json:"auth" yaml:"auth"`
}

// AuthConfig holds the single in-memory HTTP Basic credential.
// When the password is empty, authentication is disabled.
type AuthConfig struct {
	Username string `json:"username" yaml:"username"` // Default: "admin". Override: OPSBOX_AUTH_USERNAME.
	Password string `json:"password" yaml:"password"` // Override: OPSBOX_AUTH_PASSWORD.
}

// Enabled reports whether HTTP Basic auth should be enforced.
func (a AuthConfig) Enabled() bool {
	return a.Password != ""
}

// SandboxConfig configures command execution.
type SandboxConfig struct {
	Dir            string `json:"dir" yaml:"dir"`                         // Default: "sandbox". Override: OPSBOX_SANDBOX_DIR.
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"` // Default: 60.
}

// Timeout returns the command timeout with its 60 second default.
func (s SandboxConfig) Timeout() time.Duration {
	if s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return 60 * time.Second
}

// DownloadsConfig configures file downloads.
type DownloadsConfig struct {
	Dir            string `json:"dir" yaml:"dir"`                         // Default: "downloads". Override: OPSBOX_DOWNLOADS_DIR.
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"` // 0 = transport defaults.
}

// Timeout returns the transfer timeout. Zero means no explicit bound.
func (d DownloadsConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// LogsConfig configures log retrieval.
type LogsConfig struct {
	Dir         string `json:"dir" yaml:"dir"`                   // Default: "logs_data". Override: OPSBOX_LOGS_DIR.
	DefaultFile string `json:"default_file" yaml:"default_file"` // Default: "application.log". Override: OPSBOX_DEFAULT_LOG_FILE.
}

// ObservabilityConfig configures metrics and tracing.
// When nil, both are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "opsbox"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return "opsbox.yaml"
}

// Default returns a configuration with all defaults applied, relative
// directories resolved against the current working directory.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config file at path (YAML or JSON by extension), applies
// environment overrides, and normalizes all directories to absolute paths.
// A missing file at the default location falls back to Default().
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultConfigPath() {
			return Default()
		}
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize applies env overrides, fills defaults, and resolves every base
// directory to an absolute, cleaned path. Directories are NOT created here.
func (c *Config) normalize() error {
	// Environment variable overrides — env vars take precedence over config values.
	if v := os.Getenv("OPSBOX_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("OPSBOX_AUTH_USERNAME"); v != "" {
		c.Server.Auth.Username = v
	}
	if v := os.Getenv("OPSBOX_AUTH_PASSWORD"); v != "" {
		c.Server.Auth.Password = v
	}
	if v := os.Getenv("OPSBOX_SANDBOX_DIR"); v != "" {
		c.Sandbox.Dir = v
	}
	if v := os.Getenv("OPSBOX_DOWNLOADS_DIR"); v != "" {
		c.Downloads.Dir = v
	}
	if v := os.Getenv("OPSBOX_LOGS_DIR"); v != "" {
		c.Logs.Dir = v
	}
	if v := os.Getenv("OPSBOX_DEFAULT_LOG_FILE"); v != "" {
		c.Logs.DefaultFile = v
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.Auth.Username == "" {
		c.Server.Auth.Username = "admin"
	}
	if c.Sandbox.Dir == "" {
		c.Sandbox.Dir = "sandbox"
	}
	if c.Downloads.Dir == "" {
		c.Downloads.Dir = "downloads"
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = "logs_data"
	}
	if c.Logs.DefaultFile == "" {
		c.Logs.DefaultFile = "application.log"
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	c.WorkingDir = wd

	for name, dir := range map[string]*string{
		"sandbox":   &c.Sandbox.Dir,
		"downloads": &c.Downloads.Dir,
		"logs":      &c.Logs.Dir,
	} {
		abs, err := resolvePath(*dir)
		if err != nil {
			return fmt.Errorf("resolving %s directory %q: %w", name, *dir, err)
		}
		*dir = abs
	}

	return nil
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
