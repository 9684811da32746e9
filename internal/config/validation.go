package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateGCP()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateSandbox()...)
	errors = append(errors, c.validateObserver()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{Field: "app.name", Message: "application name is required"})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{Field: "app.environment", Message: "environment is required (development, staging, or production)"})
	} else {
		valid := false
		for _, env := range []string{"development", "staging", "production"} {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("invalid environment %q; must be development, staging, or production", c.App.Environment),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{Field: "app.log_level", Message: "log level is required (debug, info, warn, error)"})
	}

	return errors
}

func (c *Config) validateGCP() ValidationErrors {
	var errors ValidationErrors
	if c.App.Environment == "production" && c.GCP.ProjectID == "" {
		errors = append(errors, ValidationError{Field: "gcp.project_id", Message: "GCP project id is required in production"})
	}
	return errors
}

func (c *Config) validatePort(field string, port int) ValidationErrors {
	var errors ValidationErrors
	if port < 1 || port > 65535 {
		errors = append(errors, ValidationError{Field: field, Message: fmt.Sprintf("invalid port %d, must be between 1-65535", port)})
	}
	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors
	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{Field: "redis.host", Message: "redis host is required"})
	}
	errors = append(errors, c.validatePort("redis.port", c.Redis.Port)...)
	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors
	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{Field: "nats.url", Message: "NATS URL is required"})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") {
		errors = append(errors, ValidationError{Field: "nats.url", Message: "NATS URL must start with 'nats://'"})
	}
	return errors
}

func (c *Config) validateSandbox() ValidationErrors {
	var errors ValidationErrors
	if c.Sandbox.RunTimeoutS < 1 {
		errors = append(errors, ValidationError{Field: "sandbox.run_timeout_s", Message: "sandbox run timeout must be at least 1 second"})
	}
	return errors
}

func (c *Config) validateObserver() ValidationErrors {
	var errors ValidationErrors
	errors = append(errors, c.validatePort("observer.http_port", c.Observer.HTTPPort)...)
	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	if c.App.Environment == "production" {
		errors = append(errors, ValidateProductionSecrets(c)...)
	}

	return errors
}

// ValidateAndLoad loads and validates configuration. configPath can be empty to use
// default config locations.
func ValidateAndLoad(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
