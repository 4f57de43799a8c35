package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, FRAGMENTD_CONFIG env, ./config.yaml, /etc/fragmentd/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. FRAGMENTD_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/fragmentd/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("FRAGMENTD_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/fragmentd/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FRAGMENTD_BACKEND_URL"); v != "" {
		cfg.Model.BackendURL = v
	}
	if v := os.Getenv("FRAGMENTD_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("FRAGMENTD_MODEL"); v != "" {
		cfg.Model.DefaultModel = v
	}
	if v := os.Getenv("FRAGMENTD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FRAGMENTD_SANDBOX_MODE"); v != "" {
		cfg.Sandbox.Mode = v
	}
	if v := os.Getenv("FRAGMENTD_RUNNER_URL"); v != "" {
		cfg.Sandbox.RunnerURL = v
	}
	if v := os.Getenv("FRAGMENTD_SANDBOX_NAMESPACE"); v != "" {
		cfg.Sandbox.Namespace = v
	}
	if v := os.Getenv("FRAGMENTD_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("FRAGMENTD_TEMPLATES_MANIFEST"); v != "" {
		cfg.Templates.ManifestPath = v
	}
	if v := os.Getenv("FRAGMENTD_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("FRAGMENTD_BILLING_WEBHOOK_SECRET"); v != "" {
		cfg.Billing.WebhookSecret = v
	}
	if v := os.Getenv("FRAGMENTD_MCP_ENABLED"); v != "" {
		cfg.MCP.Enabled = v == "true" || v == "1"
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	if cfg.Model.APIKeyFile != "" && cfg.Model.APIKey == "" {
		val, err := readSecretFile(cfg.Model.APIKeyFile)
		if err != nil {
			return fmt.Errorf("model.api_key_file: %w", err)
		}
		cfg.Model.APIKey = val
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	if cfg.Billing.WebhookSecretFile != "" && cfg.Billing.WebhookSecret == "" {
		val, err := readSecretFile(cfg.Billing.WebhookSecretFile)
		if err != nil {
			return fmt.Errorf("billing.webhook_secret_file: %w", err)
		}
		cfg.Billing.WebhookSecret = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
