// Package config provides configuration management for the platform.
// This file centralizes port constants to avoid duplication across cmd/*.
package config

// ============================================================================
// CENTRALIZED PORT CONFIGURATION
// ============================================================================
//
// Port Allocation Strategy:
//   8090-8099: observer's read-only HTTP surface
//   8200-8299: infrastructure services (Vault)
//   9100-9199: Prometheus metrics endpoints, one per long-running process
//
// ============================================================================

// Observer and infrastructure ports
const (
	// ObserverHTTPPort is the default port for the C14 read-only explainer surface.
	ObserverHTTPPort = 8090

	// VaultPort is the default port for HashiCorp Vault.
	VaultPort = 8200

	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222
)

// Prometheus metrics ports, one per long-running process.
const (
	MetricsPortExecutionAgent = 9101
	MetricsPortConsumer       = 9102
	MetricsPortSandboxRunner  = 9103
	MetricsPortWatchdog       = 9104
	MetricsPortObserver       = 9105
)

// ComponentMetricsPorts maps a process name to its metrics port, for Prometheus
// scrape-config generation and health checks.
var ComponentMetricsPorts = map[string]int{
	"execution-agent": MetricsPortExecutionAgent,
	"consumer":        MetricsPortConsumer,
	"sandbox-runner":  MetricsPortSandboxRunner,
	"watchdog":        MetricsPortWatchdog,
	"observer-server": MetricsPortObserver,
}

// GetComponentMetricsPort returns the metrics port for a given process name.
// Returns 0 if the process is not found.
func GetComponentMetricsPort(name string) int {
	if port, ok := ComponentMetricsPorts[name]; ok {
		return port
	}
	return 0
}
