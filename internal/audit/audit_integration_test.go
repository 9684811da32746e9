package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/shadowtrader/platform/internal/audit"
	"github.com/shadowtrader/platform/internal/db/testhelpers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuditLogger_PersistEvent tests that audit events are persisted to the database
func TestAuditLogger_PersistEvent(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()

	logger := audit.NewLogger(tc.DB, true)

	event := &audit.Event{
		EventType: audit.EventTypeKillSwitchActivated,
		Severity:  audit.SeverityCritical,
		UserID:    "user123",
		IPAddress: "192.168.1.1",
		UserAgent: "Mozilla/5.0",
		Resource:  "tenant-456",
		Action:    "losing streak breached threshold",
		Success:   true,
		RequestID: "req-789",
		Duration:  150,
		Metadata: map[string]interface{}{
			"tenant_id":    "tenant-456",
			"anomaly_type": "losing_streak",
			"activated":    true,
		},
	}

	err = logger.Log(ctx, event)
	require.NoError(t, err)

	filters := &audit.QueryFilters{
		UserID: "user123",
		Limit:  10,
	}

	events, err := logger.Query(ctx, filters)
	require.NoError(t, err)
	require.Len(t, events, 1)

	retrieved := events[0]
	assert.Equal(t, event.ID, retrieved.ID)
	assert.Equal(t, event.EventType, retrieved.EventType)
	assert.Equal(t, event.Severity, retrieved.Severity)
	assert.Equal(t, event.UserID, retrieved.UserID)
	assert.Equal(t, event.IPAddress, retrieved.IPAddress)
	assert.Equal(t, event.UserAgent, retrieved.UserAgent)
	assert.Equal(t, event.Resource, retrieved.Resource)
	assert.Equal(t, event.Action, retrieved.Action)
	assert.Equal(t, event.Success, retrieved.Success)
	assert.Equal(t, event.RequestID, retrieved.RequestID)
	assert.Equal(t, event.Duration, retrieved.Duration)

	assert.NotNil(t, retrieved.Metadata)
	assert.Equal(t, "tenant-456", retrieved.Metadata["tenant_id"])
	assert.Equal(t, "losing_streak", retrieved.Metadata["anomaly_type"])
	assert.Equal(t, true, retrieved.Metadata["activated"])
}

// TestAuditLogger_PersistEventWithDefaults tests that ID and timestamp are auto-generated
func TestAuditLogger_PersistEventWithDefaults(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	event := &audit.Event{
		EventType: audit.EventTypeWatchdogWarning,
		Severity:  audit.SeverityWarning,
		IPAddress: "192.168.1.2",
		Action:    "drawdown approaching threshold",
		Success:   true,
	}

	assert.Equal(t, uuid.Nil, event.ID)
	assert.True(t, event.Timestamp.IsZero())

	err = logger.Log(ctx, event)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	events, err := logger.Query(ctx, &audit.QueryFilters{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
}

// TestAuditLogger_QueryByEventType tests filtering by event type
func TestAuditLogger_QueryByEventType(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	events := []*audit.Event{
		{
			EventType: audit.EventTypeKillSwitchActivated,
			Severity:  audit.SeverityCritical,
			IPAddress: "192.168.1.1",
			Action:    "kill switch activated",
			Success:   true,
		},
		{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "watchdog warning",
			Success:   true,
		},
		{
			EventType: audit.EventTypeDispatchFailed,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "dispatch failed",
			Success:   false,
		},
		{
			EventType: audit.EventTypeKillSwitchActivated,
			Severity:  audit.SeverityCritical,
			IPAddress: "192.168.1.2",
			Action:    "another kill switch",
			Success:   true,
		},
	}

	for _, event := range events {
		err := logger.Log(ctx, event)
		require.NoError(t, err)
	}

	filters := &audit.QueryFilters{
		EventType: audit.EventTypeKillSwitchActivated,
	}

	results, err := logger.Query(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	for _, result := range results {
		assert.Equal(t, audit.EventTypeKillSwitchActivated, result.EventType)
	}
}

// TestAuditLogger_QueryByUserID tests filtering by user ID
func TestAuditLogger_QueryByUserID(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	users := []string{"alice", "bob", "alice", "charlie", "alice"}
	for _, userID := range users {
		err := logger.Log(ctx, &audit.Event{
			EventType: audit.EventTypeConfigUpdated,
			Severity:  audit.SeverityInfo,
			UserID:    userID,
			IPAddress: "192.168.1.1",
			Action:    "configuration updated",
			Success:   true,
		})
		require.NoError(t, err)
	}

	filters := &audit.QueryFilters{
		UserID: "alice",
	}

	results, err := logger.Query(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	for _, result := range results {
		assert.Equal(t, "alice", result.UserID)
	}
}

// TestAuditLogger_QueryByIPAddress tests filtering by IP address
func TestAuditLogger_QueryByIPAddress(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	ips := []string{"192.168.1.1", "192.168.1.2", "192.168.1.1", "10.0.0.1"}
	for _, ip := range ips {
		err := logger.Log(ctx, &audit.Event{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			IPAddress: ip,
			Action:    "watchdog warning",
			Success:   true,
		})
		require.NoError(t, err)
	}

	filters := &audit.QueryFilters{
		IPAddress: "192.168.1.1",
	}

	results, err := logger.Query(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	for _, result := range results {
		assert.Equal(t, "192.168.1.1", result.IPAddress)
	}
}

// TestAuditLogger_QueryByTimeRange tests filtering by time range
func TestAuditLogger_QueryByTimeRange(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)
	twoDaysAgo := now.Add(-48 * time.Hour)

	events := []*audit.Event{
		{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "old event",
			Success:   true,
			Timestamp: twoDaysAgo,
		},
		{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "yesterday event",
			Success:   true,
			Timestamp: yesterday,
		},
		{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "today event",
			Success:   true,
			Timestamp: now,
		},
	}

	for _, event := range events {
		err := logger.Log(ctx, event)
		require.NoError(t, err)
	}

	filters := &audit.QueryFilters{
		StartTime: now.Add(-36 * time.Hour),
		EndTime:   now.Add(1 * time.Hour),
	}

	results, err := logger.Query(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, results, 2) // Should get yesterday and today, not two days ago
}

// TestAuditLogger_QueryBySuccess tests filtering by success/failure
func TestAuditLogger_QueryBySuccess(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	successes := []bool{true, false, true, true, false}
	for _, success := range successes {
		errorMsg := ""
		if !success {
			errorMsg = "dispatch failed"
		}
		err := logger.Log(ctx, &audit.Event{
			EventType: audit.EventTypeDispatchFailed,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "consumer dispatch",
			Success:   success,
			ErrorMsg:  errorMsg,
		})
		require.NoError(t, err)
	}

	successFilter := true
	filters := &audit.QueryFilters{
		Success: &successFilter,
	}

	results, err := logger.Query(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	for _, result := range results {
		assert.True(t, result.Success)
		assert.Empty(t, result.ErrorMsg)
	}

	failureFilter := false
	filters = &audit.QueryFilters{
		Success: &failureFilter,
	}

	results, err = logger.Query(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	for _, result := range results {
		assert.False(t, result.Success)
		assert.Equal(t, "dispatch failed", result.ErrorMsg)
	}
}

// TestAuditLogger_QueryWithLimit tests query result limiting
func TestAuditLogger_QueryWithLimit(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	for i := 0; i < 10; i++ {
		err := logger.Log(ctx, &audit.Event{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "watchdog warning",
			Success:   true,
		})
		require.NoError(t, err)
	}

	filters := &audit.QueryFilters{
		Limit: 5,
	}

	results, err := logger.Query(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

// TestAuditLogger_QueryMultipleFilters tests combining multiple filters
func TestAuditLogger_QueryMultipleFilters(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	now := time.Now()

	events := []*audit.Event{
		{
			EventType: audit.EventTypeKillSwitchActivated,
			Severity:  audit.SeverityCritical,
			UserID:    "alice",
			IPAddress: "192.168.1.1",
			Action:    "kill switch activated",
			Success:   true,
			Timestamp: now,
		},
		{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			UserID:    "alice",
			IPAddress: "192.168.1.1",
			Action:    "watchdog warning",
			Success:   true,
			Timestamp: now,
		},
		{
			EventType: audit.EventTypeKillSwitchActivated,
			Severity:  audit.SeverityCritical,
			UserID:    "bob",
			IPAddress: "192.168.1.1",
			Action:    "kill switch activated",
			Success:   true,
			Timestamp: now,
		},
		{
			EventType: audit.EventTypeKillSwitchActivated,
			Severity:  audit.SeverityCritical,
			UserID:    "alice",
			IPAddress: "192.168.1.2",
			Action:    "kill switch activated",
			Success:   true,
			Timestamp: now,
		},
	}

	for _, event := range events {
		err := logger.Log(ctx, event)
		require.NoError(t, err)
	}

	filters := &audit.QueryFilters{
		EventType: audit.EventTypeKillSwitchActivated,
		UserID:    "alice",
		IPAddress: "192.168.1.1",
	}

	results, err := logger.Query(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, results, 1) // Only first event matches all filters

	result := results[0]
	assert.Equal(t, audit.EventTypeKillSwitchActivated, result.EventType)
	assert.Equal(t, "alice", result.UserID)
	assert.Equal(t, "192.168.1.1", result.IPAddress)
}

// TestAuditLogger_LogKillSwitchEvent_Integration tests the helper function with DB
func TestAuditLogger_LogKillSwitchEvent_Integration(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	err = logger.LogKillSwitchEvent(
		ctx,
		audit.EventTypeKillSwitchActivated,
		"tenant-456",
		"losing_streak",
		"losing streak breached threshold",
		true,
	)
	require.NoError(t, err)

	filters := &audit.QueryFilters{
		EventType: audit.EventTypeKillSwitchActivated,
	}

	events, err := logger.Query(ctx, filters)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, audit.EventTypeKillSwitchActivated, event.EventType)
	assert.Equal(t, audit.SeverityCritical, event.Severity)
	assert.Equal(t, "tenant-456", event.Resource)
	assert.True(t, event.Success)
}

// TestAuditLogger_LogDispatchFailure_Integration tests dispatch failure logging with DB
func TestAuditLogger_LogDispatchFailure_Integration(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	err = logger.LogDispatchFailure(
		ctx,
		"msg-123",
		"market.ticks.BTC",
		"market_tick",
		"docstore breaker open",
	)
	require.NoError(t, err)

	events, err := logger.Query(ctx, &audit.QueryFilters{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, "msg-123", event.Resource)
	assert.False(t, event.Success)
	assert.Equal(t, "docstore breaker open", event.ErrorMsg)
	assert.NotNil(t, event.Metadata)
	assert.Equal(t, "market.ticks.BTC", event.Metadata["topic"])
	assert.Equal(t, "market_tick", event.Metadata["handler"])
}

// TestAuditLogger_LogSandboxRun_Integration tests sandbox run outcome logging
func TestAuditLogger_LogSandboxRun_Integration(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	err = logger.LogSandboxRun(ctx, "strategy-1", 3, true, "")
	require.NoError(t, err)

	events, err := logger.Query(ctx, &audit.QueryFilters{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, audit.EventTypeSandboxRunCompleted, event.EventType)
	assert.Equal(t, "strategy-1", event.Resource)
	assert.True(t, event.Success)
	assert.NotNil(t, event.Metadata)
	assert.Equal(t, float64(3), event.Metadata["order_intent_count"])
}

// TestAuditLogger_LogExecutionDecision_Integration tests execution decision logging
func TestAuditLogger_LogExecutionDecision_Integration(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	err = logger.LogExecutionDecision(ctx, "proposal-1", "decision-1", "executed")
	require.NoError(t, err)

	events, err := logger.Query(ctx, &audit.QueryFilters{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, audit.EventTypeExecutionDecision, event.EventType)
	assert.Equal(t, "proposal-1", event.Resource)
	assert.Equal(t, "executed", event.Action)
	assert.NotNil(t, event.Metadata)
	assert.Equal(t, "decision-1", event.Metadata["decision_id"])
}

// TestAuditLogger_LogConfigChange_Integration tests config change logging
func TestAuditLogger_LogConfigChange_Integration(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	err = logger.LogConfigChange(
		ctx,
		"admin",
		"192.168.1.5",
		"scan_interval_s",
		30,
		60,
		true,
		"",
	)
	require.NoError(t, err)

	events, err := logger.Query(ctx, &audit.QueryFilters{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, audit.EventTypeConfigUpdated, event.EventType)
	assert.Equal(t, "scan_interval_s", event.Resource)
	assert.True(t, event.Success)
	assert.NotNil(t, event.Metadata)
	assert.Equal(t, "scan_interval_s", event.Metadata["config_key"])
	assert.Equal(t, float64(30), event.Metadata["old_value"])
	assert.Equal(t, float64(60), event.Metadata["new_value"])
}

// TestAuditLogger_QueryOrdering tests that events are returned in descending timestamp order
func TestAuditLogger_QueryOrdering(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	logger := audit.NewLogger(tc.DB, true)

	now := time.Now()
	events := []*audit.Event{
		{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "first",
			Success:   true,
			Timestamp: now.Add(-3 * time.Minute),
		},
		{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "second",
			Success:   true,
			Timestamp: now.Add(-2 * time.Minute),
		},
		{
			EventType: audit.EventTypeWatchdogWarning,
			Severity:  audit.SeverityWarning,
			IPAddress: "192.168.1.1",
			Action:    "third",
			Success:   true,
			Timestamp: now.Add(-1 * time.Minute),
		},
	}

	for _, event := range events {
		err := logger.Log(ctx, event)
		require.NoError(t, err)
	}

	results, err := logger.Query(ctx, &audit.QueryFilters{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "third", results[0].Action)
	assert.Equal(t, "second", results[1].Action)
	assert.Equal(t, "first", results[2].Action)
}
