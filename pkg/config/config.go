// Package config provides unified configuration for the fragmentd gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (FRAGMENTD_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the fragmentd gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Model         ModelConfig         `yaml:"model"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Storage       StorageConfig       `yaml:"storage"`
	Templates     TemplatesConfig     `yaml:"templates"`
	Auth          AuthConfig          `yaml:"auth"`
	Billing       BillingConfig       `yaml:"billing"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 300s, SSE streams are long-lived
}

// ModelConfig holds model backend settings.
type ModelConfig struct {
	BackendURL   string        `yaml:"backend_url"`   // required
	APIKey       string        `yaml:"api_key"`       // optional
	APIKeyFile   string        `yaml:"api_key_file"`  // _file variant for api_key
	DefaultModel string        `yaml:"default_model"` // optional
	Timeout      time.Duration `yaml:"timeout"`       // request setup timeout, default: 30s
}

// SandboxConfig holds sandbox provisioning settings.
type SandboxConfig struct {
	Mode             string        `yaml:"mode"`              // "static" or "kubernetes", default: "static"
	RunnerURL        string        `yaml:"runner_url"`        // required for mode=static
	Namespace        string        `yaml:"namespace"`         // required for mode=kubernetes
	ProvisionTimeout time.Duration `yaml:"provision_timeout"` // default: 60s
}

// StorageConfig holds workspace persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// TemplatesConfig holds template manifest settings.
type TemplatesConfig struct {
	ManifestPath string `yaml:"manifest_path"` // empty: embedded manifest
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none" or "apikey", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	UserID  string `yaml:"user_id"`
}

// BillingConfig holds billing webhook settings. The webhook endpoint is
// disabled when no signing secret is configured.
type BillingConfig struct {
	WebhookSecret     string `yaml:"webhook_secret"`
	WebhookSecretFile string `yaml:"webhook_secret_file"` // _file variant for webhook_secret
}

// MCPConfig holds the Model Context Protocol tool server settings.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Path    string `yaml:"path"`    // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
		},
		Model: ModelConfig{
			Timeout: 30 * time.Second,
		},
		Sandbox: SandboxConfig{
			Mode:             "static",
			ProvisionTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Path: "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
