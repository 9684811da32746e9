package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEvent_Defaults(t *testing.T) {
	event := &Event{
		EventType: EventTypeKillSwitchActivated,
		Severity:  SeverityCritical,
		Action:    "losing streak breached threshold",
		Success:   true,
	}

	// ID and timestamp should be set by the logger
	assert.Equal(t, uuid.Nil, event.ID)
	assert.True(t, event.Timestamp.IsZero())
}

func TestLogger_LogWithoutDatabase(t *testing.T) {
	// Create logger without database connection
	logger := NewLogger(nil, true)

	event := &Event{
		EventType: EventTypeKillSwitchActivated,
		Severity:  SeverityCritical,
		Resource:  "tenant-1",
		Action:    "losing streak breached threshold",
		Success:   true,
	}

	// Should not error even without database
	err := logger.Log(context.Background(), event)
	assert.NoError(t, err)

	// ID and timestamp should be set
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestLogger_Disabled(t *testing.T) {
	// Create disabled logger
	logger := NewLogger(nil, false)

	event := &Event{
		EventType: EventTypeKillSwitchActivated,
		Severity:  SeverityCritical,
		Resource:  "tenant-1",
		Action:    "losing streak breached threshold",
		Success:   true,
	}

	// Should be no-op when disabled
	err := logger.Log(context.Background(), event)
	assert.NoError(t, err)
}

func TestLogger_LogKillSwitchEvent(t *testing.T) {
	logger := NewLogger(nil, true)

	err := logger.LogKillSwitchEvent(
		context.Background(),
		EventTypeKillSwitchActivated,
		"tenant-1",
		"losing_streak",
		"losing streak breached threshold",
		true,
	)

	assert.NoError(t, err)
}

func TestLogger_LogDispatchFailure(t *testing.T) {
	logger := NewLogger(nil, true)

	err := logger.LogDispatchFailure(
		context.Background(),
		"msg-123",
		"market.ticks.BTC",
		"market_tick",
		"docstore breaker open",
	)

	assert.NoError(t, err)
}

func TestLogger_LogSandboxRun(t *testing.T) {
	logger := NewLogger(nil, true)

	err := logger.LogSandboxRun(context.Background(), "strategy-1", 3, true, "")
	assert.NoError(t, err)

	err = logger.LogSandboxRun(context.Background(), "strategy-2", 0, false, "boot failed")
	assert.NoError(t, err)
}

func TestLogger_LogExecutionDecision(t *testing.T) {
	logger := NewLogger(nil, true)

	err := logger.LogExecutionDecision(context.Background(), "proposal-1", "decision-1", "executed")
	assert.NoError(t, err)
}

func TestLogger_LogConfigChange(t *testing.T) {
	logger := NewLogger(nil, true)

	err := logger.LogConfigChange(
		context.Background(),
		"admin",
		"192.168.1.1",
		"scan_interval_s",
		30,
		60,
		true,
		"",
	)

	assert.NoError(t, err)
}

func TestQueryFilters(t *testing.T) {
	filters := &QueryFilters{
		EventType: EventTypeKillSwitchActivated,
		UserID:    "user123",
		IPAddress: "192.168.1.1",
		StartTime: time.Now().Add(-24 * time.Hour),
		EndTime:   time.Now(),
		Success:   boolPtr(true),
		Limit:     100,
	}

	assert.Equal(t, EventTypeKillSwitchActivated, filters.EventType)
	assert.Equal(t, "user123", filters.UserID)
	assert.Equal(t, "192.168.1.1", filters.IPAddress)
	assert.NotNil(t, filters.Success)
	assert.True(t, *filters.Success)
	assert.Equal(t, 100, filters.Limit)
}

func TestEventTypes(t *testing.T) {
	// Test that event types are unique strings
	types := []EventType{
		EventTypeKillSwitchActivated,
		EventTypeWatchdogWarning,
		EventTypeDispatchFailed,
		EventTypeDLQSampleWritten,
		EventTypeSandboxRunCompleted,
		EventTypeSandboxRunFailed,
		EventTypeExecutionDecision,
		EventTypeConfigUpdated,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		assert.False(t, seen[et], "Duplicate event type: %s", et)
		assert.NotEmpty(t, string(et), "Event type should not be empty")
		seen[et] = true
	}
}

func TestSeverityLevels(t *testing.T) {
	// Test severity levels
	severities := []Severity{
		SeverityInfo,
		SeverityWarning,
		SeverityError,
		SeverityCritical,
	}

	for _, s := range severities {
		assert.NotEmpty(t, string(s), "Severity should not be empty")
	}
}

// Helper function
func boolPtr(b bool) *bool {
	return &b
}
