package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "shadowtrader",
			Version:     "0.1.0",
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		GCP:   GCPConfig{ProjectID: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		NATS:  NATSConfig{URL: "nats://localhost:4222", EnableJetStream: true},
		Audit: AuditConfig{ArtifactsDir: "audit", DecisionsBaseDir: "audit/execution_decisions"},
		Sandbox: SandboxConfig{
			RunTimeoutS: 30,
			VsockCID:    3,
			VsockPort:   5005,
		},
		Observer: ObserverConfig{HTTPHost: "0.0.0.0", HTTPPort: 8090, MCPEnabled: true},
		Monitoring: MonitoringConfig{
			PrometheusPort: 9100,
			EnableMetrics:  true,
		},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingAppName(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.name")
}

func TestValidateRejectsUnknownEnvironment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "sandbox-mode"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.environment")
}

func TestValidateRejectsMissingRedisHost(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Host = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.host")
}

func TestValidateRejectsBadRedisPort(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Port = 70000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.port")
}

func TestValidateRejectsBadNATSURL(t *testing.T) {
	cfg := validConfig()
	cfg.NATS.URL = "http://localhost:4222"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats.url")
}

func TestValidateRejectsNonPositiveSandboxTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Sandbox.RunTimeoutS = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox.run_timeout_s")
}

func TestValidateRejectsBadObserverPort(t *testing.T) {
	cfg := validConfig()
	cfg.Observer.HTTPPort = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observer.http_port")
}

func TestValidateRequiresGCPProjectInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "production"
	cfg.GCP.ProjectID = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gcp.project_id")
}

func TestValidationErrorsFormatsMultipleErrors(t *testing.T) {
	ve := ValidationErrors{
		{Field: "a", Message: "bad a"},
		{Field: "b", Message: "bad b"},
	}
	msg := ve.Error()
	assert.Contains(t, msg, "2 error(s)")
	assert.Contains(t, msg, "a: bad a")
	assert.Contains(t, msg, "b: bad b")
}
