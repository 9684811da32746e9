package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ValidatorOptions contains options for configuration validation
type ValidatorOptions struct {
	VerifyConnectivity bool // check Redis connectivity
	Timeout            time.Duration
}

// DefaultValidatorOptions returns default validator options for startup
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		VerifyConnectivity: true,
		Timeout:            5 * time.Second,
	}
}

// Validator handles configuration validation at startup
type Validator struct {
	config  *Config
	options ValidatorOptions
}

// NewValidator creates a new configuration validator
func NewValidator(config *Config, options ValidatorOptions) *Validator {
	return &Validator{config: config, options: options}
}

// ValidateStartup performs comprehensive startup validation. Call this before
// starting any service's main loop.
func (v *Validator) ValidateStartup(ctx context.Context) error {
	log.Info().Msg("validating configuration")

	if err := v.validateProductionRequirements(); err != nil {
		return fmt.Errorf("production requirements validation failed: %w", err)
	}

	if v.options.VerifyConnectivity {
		if err := v.checkRedisConnectivity(ctx); err != nil {
			return fmt.Errorf("redis connectivity check failed: %w", err)
		}
	}

	log.Info().Msg("configuration validation completed successfully")
	return nil
}

// validateProductionRequirements checks production-specific security requirements.
func (v *Validator) validateProductionRequirements() error {
	appEnv := strings.ToLower(v.config.App.Environment)
	if appEnv != "production" {
		log.Info().Str("environment", appEnv).Msg("non-production environment, skipping production requirements")
		return nil
	}

	log.Info().Msg("production environment detected, enforcing production security requirements")

	var errors []string

	vaultEnabled := strings.ToLower(os.Getenv("VAULT_ENABLED"))
	if vaultEnabled != "true" && vaultEnabled != "1" {
		errors = append(errors, "Vault must be enabled in production (set VAULT_ENABLED=true)")
	}
	if vaultEnabled == "true" || vaultEnabled == "1" {
		if os.Getenv("VAULT_ADDR") == "" {
			errors = append(errors, "VAULT_ADDR must be set when Vault is enabled")
		}
		authMethod := os.Getenv("VAULT_AUTH_METHOD")
		switch authMethod {
		case "kubernetes":
			tokenPath := "/var/run/secrets/kubernetes.io/serviceaccount/token"
			if _, err := os.Stat(tokenPath); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("kubernetes service account token not found at %s", tokenPath))
			}
		case "token":
			if os.Getenv("VAULT_TOKEN") == "" {
				errors = append(errors, "VAULT_TOKEN must be set when using token auth method")
			}
		case "approle":
			if os.Getenv("VAULT_ROLE_ID") == "" || os.Getenv("VAULT_SECRET_ID") == "" {
				errors = append(errors, "VAULT_ROLE_ID and VAULT_SECRET_ID must be set when using approle auth method")
			}
		default:
			errors = append(errors, fmt.Sprintf("unknown VAULT_AUTH_METHOD: %s (must be kubernetes, token, or approle)", authMethod))
		}
	}

	if v.config.GCP.ProjectID == "" {
		errors = append(errors, "gcp.project_id must be set in production")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL != "" && strings.HasPrefix(redisURL, "redis://") && !strings.HasPrefix(redisURL, "rediss://") {
		errors = append(errors, "Redis TLS must be enabled in production (use rediss:// instead of redis://)")
	}

	if len(errors) > 0 {
		var sb strings.Builder
		sb.WriteString("production security requirements not met:\n")
		for i, e := range errors {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, e))
		}
		return fmt.Errorf("%s", sb.String())
	}

	log.Info().Msg("production security requirements validated successfully")
	return nil
}

// checkRedisConnectivity tests Redis connection with timeout.
func (v *Validator) checkRedisConnectivity(ctx context.Context) error {
	log.Info().Msg("checking redis connectivity")

	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     v.config.Redis.GetRedisAddr(),
		Password: v.config.Redis.Password,
		DB:       v.config.Redis.DB,
	})
	defer client.Close()

	if err := client.Ping(connCtx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", v.config.Redis.GetRedisAddr()).Msg("redis connectivity check passed")
	return nil
}

// isPlaceholderValue checks if a value is likely a placeholder.
func isPlaceholderValue(value string) bool {
	lowerValue := strings.ToLower(value)
	for _, placeholder := range []string{"your_api_key", "your_secret", "changeme", "placeholder", "example", "test", "sample", "demo"} {
		if strings.Contains(lowerValue, placeholder) {
			return true
		}
	}
	return false
}
