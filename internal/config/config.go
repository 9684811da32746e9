// Package config provides ambient configuration for the platform's long-running
// processes. Per-operation, exact-literal env vars (REPO_ID, AGENT_NAME,
// PROPOSALS_PATH, DECISIONS_BASE_DIR, ...) are read directly by their owning
// package (execagent.ConfigFromEnv; proposal.SupersedeWindowFromEnv) since spec-mandated
// matching must not be blurred by a generic mapstructure loader. This package governs
// everything else: timeouts, log level, ports, connection settings.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds ambient application configuration for every long-running process.
type Config struct {
	App            AppConfig            `mapstructure:"app"`
	GCP            GCPConfig            `mapstructure:"gcp"`
	Redis          RedisConfig          `mapstructure:"redis"`
	NATS           NATSConfig           `mapstructure:"nats"`
	Audit          AuditConfig          `mapstructure:"audit"`
	ExecutionAgent ExecutionAgentConfig `mapstructure:"execution_agent"`
	Consumer       ConsumerConfig       `mapstructure:"consumer"`
	Sandbox        SandboxConfig        `mapstructure:"sandbox"`
	Watchdog       WatchdogConfig       `mapstructure:"watchdog"`
	Observer       ObserverConfig       `mapstructure:"observer"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
}

// AppConfig contains process-wide settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or console
}

// GCPConfig addresses the Firestore project the platform's document store talks to.
type GCPConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// RedisConfig contains the watchdog's rolling-window/regime cache connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains the subject-addressed transport settings C2/C11 publish and
// subscribe against.
type NATSConfig struct {
	URL             string `mapstructure:"url"`
	EnableJetStream bool   `mapstructure:"enable_jetstream"`
}

// AuditConfig locates the day-partitioned NDJSON artifact trees every component reads
// or writes (proposals, execution decisions, stdout log fallbacks for C14).
type AuditConfig struct {
	ArtifactsDir     string   `mapstructure:"artifacts_dir"`
	DecisionsBaseDir string   `mapstructure:"decisions_base_dir"`
	StdoutLogPaths   []string `mapstructure:"stdout_log_paths"`
}

// ExecutionAgentConfig carries the ambient (non-literal-gated) execution-agent knobs;
// PROPOSALS_PATH/AGENT_NAME/etc. are read directly by execagent.ConfigFromEnv.
type ExecutionAgentConfig struct {
	PollIntervalMS        int `mapstructure:"poll_interval_ms"`
	MarketdataStaleAfterS int `mapstructure:"marketdata_stale_after_s"`
}

// ConsumerConfig carries the dedupe/worker-pool consumer's ambient tuning knobs.
type ConsumerConfig struct {
	WorkerCount               int    `mapstructure:"worker_count"`
	DedupeWindowS             int    `mapstructure:"dedupe_window_s"`
	CircuitBreakerMaxFailures uint32 `mapstructure:"circuit_breaker_max_failures"`
	BrokerBaseURL             string `mapstructure:"broker_base_url"`
}

// SandboxConfig carries the vsock sandbox runner's ambient tuning knobs.
type SandboxConfig struct {
	RunTimeoutS int    `mapstructure:"run_timeout_s"`
	VsockCID    uint32 `mapstructure:"vsock_cid"`
	VsockPort   uint32 `mapstructure:"vsock_port"`
}

// WatchdogConfig carries the anomaly-detection sweep's thresholds and cadence.
type WatchdogConfig struct {
	ScanIntervalS int `mapstructure:"scan_interval_s"`
}

// ObserverConfig locates the read-only explainer's HTTP/MCP surface.
type ObserverConfig struct {
	HTTPHost   string `mapstructure:"http_host"`
	HTTPPort   int    `mapstructure:"http_port"`
	MCPEnabled bool   `mapstructure:"mcp_enabled"`
}

// MonitoringConfig contains Prometheus exposition settings.
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("TRADER")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// config file not found; defaults and environment variables still apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "shadowtrader")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("gcp.project_id", "")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enable_jetstream", true)

	v.SetDefault("audit.artifacts_dir", "audit")
	v.SetDefault("audit.decisions_base_dir", "audit/execution_decisions")
	v.SetDefault("audit.stdout_log_paths", []string{})

	v.SetDefault("execution_agent.poll_interval_ms", 250)
	v.SetDefault("execution_agent.marketdata_stale_after_s", 120)

	v.SetDefault("consumer.worker_count", 4)
	v.SetDefault("consumer.dedupe_window_s", 3600)
	v.SetDefault("consumer.circuit_breaker_max_failures", 5)
	v.SetDefault("consumer.broker_base_url", "https://paper-api.alpaca.markets")

	v.SetDefault("sandbox.run_timeout_s", 30)
	v.SetDefault("sandbox.vsock_cid", 3)
	v.SetDefault("sandbox.vsock_port", 5005)

	v.SetDefault("watchdog.scan_interval_s", 60)

	v.SetDefault("observer.http_host", "0.0.0.0")
	v.SetDefault("observer.http_port", 8090)
	v.SetDefault("observer.mcp_enabled", true)

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetRedisAddr returns the Redis address in host:port form.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetObserverAddr returns the observer HTTP server's listen address.
func (c *ObserverConfig) GetObserverAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// PollInterval returns the execution agent's poll interval as a time.Duration.
func (c *ExecutionAgentConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// MarketdataStaleAfter returns the staleness threshold as a time.Duration.
func (c *ExecutionAgentConfig) MarketdataStaleAfter() time.Duration {
	return time.Duration(c.MarketdataStaleAfterS) * time.Second
}

// ScanInterval returns the watchdog sweep cadence as a time.Duration.
func (c *WatchdogConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalS) * time.Second
}
