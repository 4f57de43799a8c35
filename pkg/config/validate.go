package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Model.BackendURL == "" {
		errs = append(errs, fmt.Errorf("model.backend_url is required"))
	}

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Sandbox.Mode {
	case "static":
		if c.Sandbox.RunnerURL == "" {
			errs = append(errs, fmt.Errorf("sandbox.runner_url is required when sandbox.mode is \"static\""))
		}
	case "kubernetes":
		if c.Sandbox.Namespace == "" {
			errs = append(errs, fmt.Errorf("sandbox.namespace is required when sandbox.mode is \"kubernetes\""))
		}
	default:
		errs = append(errs, fmt.Errorf("sandbox.mode must be \"static\" or \"kubernetes\", got %q", c.Sandbox.Mode))
	}

	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	switch c.Auth.Type {
	case "none", "apikey":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\" or \"apikey\", got %q", c.Auth.Type))
	}

	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
	}

	return errors.Join(errs...)
}
