package config

import "testing"

func TestGetComponentMetricsPort(t *testing.T) {
	tests := []struct {
		name     string
		expected int
	}{
		{"execution-agent", MetricsPortExecutionAgent},
		{"consumer", MetricsPortConsumer},
		{"sandbox-runner", MetricsPortSandboxRunner},
		{"watchdog", MetricsPortWatchdog},
		{"observer-server", MetricsPortObserver},
		{"unknown-process", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetComponentMetricsPort(tt.name)
			if got != tt.expected {
				t.Errorf("GetComponentMetricsPort(%q) = %d, want %d", tt.name, got, tt.expected)
			}
		})
	}
}

func TestComponentMetricsPortsUnique(t *testing.T) {
	seen := make(map[int]string)
	for name, port := range ComponentMetricsPorts {
		if existing, ok := seen[port]; ok {
			t.Errorf("port %d used by both %q and %q", port, existing, name)
		}
		seen[port] = name
		if port < 9100 || port > 9199 {
			t.Errorf("port %d for %q outside 9100-9199 range", port, name)
		}
	}
}

func TestComponentMetricsPortsConsistency(t *testing.T) {
	for name, expected := range ComponentMetricsPorts {
		if got := GetComponentMetricsPort(name); got != expected {
			t.Errorf("GetComponentMetricsPort(%q) = %d, want %d", name, got, expected)
		}
	}
}
