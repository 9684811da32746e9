package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/shadowtrader/platform/internal/db"
	"github.com/shadowtrader/platform/internal/metrics"
)

// EventType represents the type of audit event
type EventType string

const (
	// Watchdog events (C13)
	EventTypeKillSwitchActivated EventType = "KILL_SWITCH_ACTIVATED"
	EventTypeWatchdogWarning     EventType = "WATCHDOG_WARNING"

	// Consumer events (C11)
	EventTypeDispatchFailed    EventType = "DISPATCH_FAILED"
	EventTypeDLQSampleWritten  EventType = "DLQ_SAMPLE_WRITTEN"

	// Sandbox runner events (C12)
	EventTypeSandboxRunCompleted EventType = "SANDBOX_RUN_COMPLETED"
	EventTypeSandboxRunFailed    EventType = "SANDBOX_RUN_FAILED"

	// Execution agent events (C8)
	EventTypeExecutionDecision EventType = "EXECUTION_DECISION"

	// Configuration events
	EventTypeConfigUpdated EventType = "CONFIG_UPDATED"
	EventTypeConfigViewed  EventType = "CONFIG_VIEWED"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event represents a single audit log event
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType EventType              `json:"event_type"`
	Severity  Severity               `json:"severity"`
	UserID    string                 `json:"user_id,omitempty"`       // User/API key if authenticated
	IPAddress string                 `json:"ip_address"`              // Client IP
	UserAgent string                 `json:"user_agent,omitempty"`    // Browser/client info
	Resource  string                 `json:"resource,omitempty"`      // Affected resource (order ID, session ID, etc.)
	Action    string                 `json:"action"`                  // Human-readable action description
	Success   bool                   `json:"success"`                 // Whether action succeeded
	ErrorMsg  string                 `json:"error_message,omitempty"` // Error if failed
	Metadata  map[string]interface{} `json:"metadata,omitempty"`      // Additional context
	RequestID string                 `json:"request_id,omitempty"`    // Request correlation ID
	Duration  int64                  `json:"duration_ms,omitempty"`   // Action duration in ms
}

// Logger handles audit logging operations
type Logger struct {
	db      *db.DB
	enabled bool
}

// NewLogger creates a new audit logger. conn may be nil, in which case events are only
// logged to the structured logger and never persisted.
func NewLogger(conn *db.DB, enabled bool) *Logger {
	return &Logger{
		db:      conn,
		enabled: enabled,
	}
}

// Log records an audit event
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if !l.enabled {
		return nil
	}

	start := time.Now()

	// Set defaults
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Log to structured logger for immediate visibility
	logEvent := log.With().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.EventType)).
		Str("severity", string(event.Severity)).
		Str("user_id", event.UserID).
		Str("ip_address", event.IPAddress).
		Str("resource", event.Resource).
		Str("action", event.Action).
		Bool("success", event.Success).
		Logger()

	if event.ErrorMsg != "" {
		logEvent = logEvent.With().Str("error", event.ErrorMsg).Logger()
	}

	if event.Duration > 0 {
		logEvent = logEvent.With().Int64("duration_ms", event.Duration).Logger()
	}

	// Log at appropriate level
	switch event.Severity {
	case SeverityCritical, SeverityError:
		logEvent.Error().Msg("Audit event")
	case SeverityWarning:
		logEvent.Warn().Msg("Audit event")
	default:
		logEvent.Info().Msg("Audit event")
	}

	// Persist to database if pool is available
	if l.db != nil {
		if err := l.persistEvent(ctx, event); err != nil {
			// Record failure metrics
			durationMs := float64(time.Since(start).Milliseconds())
			metrics.RecordAuditLog(string(event.EventType), false, durationMs)
			metrics.RecordAuditLogFailure("persist_error", string(event.EventType))
			return err
		}
	}

	// Record success metrics
	durationMs := float64(time.Since(start).Milliseconds())
	metrics.RecordAuditLog(string(event.EventType), true, durationMs)

	return nil
}

// persistEvent stores the audit event in the database, behind the pool's circuit
// breaker so a Postgres outage fails fast instead of queuing up blocked writers.
func (l *Logger) persistEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO audit_logs (
			id, timestamp, event_type, severity, user_id, ip_address,
			user_agent, resource, action, success, error_message,
			metadata, request_id, duration_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	// Convert metadata to JSON
	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit event metadata")
			metadataJSON = []byte("{}")
		}
	}

	_, err = l.db.ExecuteWithCircuitBreaker(func() (interface{}, error) {
		return l.db.Pool().Exec(ctx, query,
			event.ID,
			event.Timestamp,
			event.EventType,
			event.Severity,
			event.UserID,
			event.IPAddress,
			event.UserAgent,
			event.Resource,
			event.Action,
			event.Success,
			event.ErrorMsg,
			metadataJSON,
			event.RequestID,
			event.Duration,
		)
	})

	if err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.EventType)).
			Msg("Failed to persist audit event to database")
		return err
	}

	return nil
}

// Query retrieves audit events based on filters
func (l *Logger) Query(ctx context.Context, filters *QueryFilters) ([]Event, error) {
	if l.db == nil {
		return nil, nil
	}

	query := `
		SELECT
			id, timestamp, event_type, severity, user_id, ip_address,
			user_agent, resource, action, success, error_message,
			metadata, request_id, duration_ms
		FROM audit_logs
		WHERE 1=1
	`

	args := []interface{}{}
	argPos := 1

	// Apply filters
	if filters.EventType != "" {
		query += ` AND event_type = $` + string(rune('0'+argPos))
		args = append(args, filters.EventType)
		argPos++
	}

	if filters.UserID != "" {
		query += ` AND user_id = $` + string(rune('0'+argPos))
		args = append(args, filters.UserID)
		argPos++
	}

	if filters.IPAddress != "" {
		query += ` AND ip_address = $` + string(rune('0'+argPos))
		args = append(args, filters.IPAddress)
		argPos++
	}

	if !filters.StartTime.IsZero() {
		query += ` AND timestamp >= $` + string(rune('0'+argPos))
		args = append(args, filters.StartTime)
		argPos++
	}

	if !filters.EndTime.IsZero() {
		query += ` AND timestamp <= $` + string(rune('0'+argPos))
		args = append(args, filters.EndTime)
		argPos++
	}

	if filters.Success != nil {
		query += ` AND success = $` + string(rune('0'+argPos))
		args = append(args, *filters.Success)
		argPos++
	}

	// Order by timestamp descending
	query += ` ORDER BY timestamp DESC`

	// Apply limit
	if filters.Limit > 0 {
		query += ` LIMIT $` + string(rune('0'+argPos))
		args = append(args, filters.Limit)
	}

	result, err := l.db.ExecuteWithCircuitBreaker(func() (interface{}, error) {
		return l.db.Pool().Query(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	rows := result.(pgx.Rows)
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		var metadataJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.EventType,
			&event.Severity,
			&event.UserID,
			&event.IPAddress,
			&event.UserAgent,
			&event.Resource,
			&event.Action,
			&event.Success,
			&event.ErrorMsg,
			&metadataJSON,
			&event.RequestID,
			&event.Duration,
		)
		if err != nil {
			return nil, err
		}

		// Parse metadata JSON
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				log.Warn().Err(err).Msg("Failed to unmarshal audit event metadata")
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

// QueryFilters defines filters for querying audit events
type QueryFilters struct {
	EventType EventType
	UserID    string
	IPAddress string
	StartTime time.Time
	EndTime   time.Time
	Success   *bool
	Limit     int
}

// Helper functions for common audit events

// LogKillSwitchEvent records a watchdog kill-switch activation or warning for a tenant.
func (l *Logger) LogKillSwitchEvent(ctx context.Context, eventType EventType, tenantID, anomalyType, description string, activated bool) error {
	severity := SeverityWarning
	if activated {
		severity = SeverityCritical
	}

	return l.Log(ctx, &Event{
		EventType: eventType,
		Severity:  severity,
		Resource:  tenantID,
		Action:    description,
		Success:   true,
		Metadata: map[string]interface{}{
			"tenant_id":    tenantID,
			"anomaly_type": anomalyType,
			"activated":    activated,
		},
	})
}

// LogDispatchFailure records a consumer dispatch failure that fell through to the DLQ.
func (l *Logger) LogDispatchFailure(ctx context.Context, messageID, topic, handler, reason string) error {
	return l.Log(ctx, &Event{
		EventType: EventTypeDispatchFailed,
		Severity:  SeverityWarning,
		Resource:  messageID,
		Action:    "consumer dispatch failed",
		Success:   false,
		ErrorMsg:  reason,
		Metadata: map[string]interface{}{
			"topic":   topic,
			"handler": handler,
		},
	})
}

// LogSandboxRun records the outcome of a sandbox strategy run.
func (l *Logger) LogSandboxRun(ctx context.Context, strategyID string, orderIntentCount int, success bool, errorMsg string) error {
	eventType := EventTypeSandboxRunCompleted
	severity := SeverityInfo
	if !success {
		eventType = EventTypeSandboxRunFailed
		severity = SeverityError
	}

	return l.Log(ctx, &Event{
		EventType: eventType,
		Severity:  severity,
		Resource:  strategyID,
		Action:    "sandbox run",
		Success:   success,
		ErrorMsg:  errorMsg,
		Metadata: map[string]interface{}{
			"order_intent_count": orderIntentCount,
		},
	})
}

// LogExecutionDecision records an execution-agent decision against a proposal.
func (l *Logger) LogExecutionDecision(ctx context.Context, proposalID, decisionID, outcome string) error {
	return l.Log(ctx, &Event{
		EventType: EventTypeExecutionDecision,
		Severity:  SeverityInfo,
		Resource:  proposalID,
		Action:    outcome,
		Success:   true,
		Metadata: map[string]interface{}{
			"decision_id": decisionID,
		},
	})
}

// LogConfigViewed records a read of the audit/decision trail through the observer's
// explain surface (spec C14). Resource is the plan id being explained: the requested id,
// or, when the caller asked for "the last trade", the id of the plan that was found
// (empty when none was).
func (l *Logger) LogConfigViewed(ctx context.Context, planID string, found bool) error {
	return l.Log(ctx, &Event{
		EventType: EventTypeConfigViewed,
		Severity:  SeverityInfo,
		Resource:  planID,
		Action:    "explain plan viewed",
		Success:   found,
		Metadata: map[string]interface{}{
			"plan_id": planID,
		},
	})
}

// LogConfigChange logs a configuration change
func (l *Logger) LogConfigChange(ctx context.Context, userID, ipAddress, configKey string, oldValue, newValue interface{}, success bool, errorMsg string) error {
	metadata := map[string]interface{}{
		"config_key": configKey,
		"old_value":  oldValue,
		"new_value":  newValue,
	}

	severity := SeverityInfo
	if !success {
		severity = SeverityError
	}

	return l.Log(ctx, &Event{
		EventType: EventTypeConfigUpdated,
		Severity:  severity,
		UserID:    userID,
		IPAddress: ipAddress,
		Resource:  configKey,
		Action:    "Configuration updated",
		Success:   success,
		ErrorMsg:  errorMsg,
		Metadata:  metadata,
	})
}

