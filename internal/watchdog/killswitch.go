package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shadowtrader/platform/internal/firestorex"
)

const (
	statusCollection = "ops_trading_status"
	alertsCollection = "ops_alerts"
	auditCollection  = "ops_watchdog_events"
)

// KillSwitch persists the three documents a critical anomaly produces: the tenant's
// trading-enabled status, a high-priority alert, and an audit event. All three are
// best-effort individually — a failure writing the alert must not stop the status
// update, matching the teacher-adjacent "log and continue" error style.
type KillSwitch struct {
	client firestorex.Client
}

func NewKillSwitch(client firestorex.Client) *KillSwitch {
	return &KillSwitch{client: client}
}

// IsDisabled reports whether the tenant's trading status doc already says disabled.
// A missing doc or a doc with no `enabled` field is treated as enabled, matching the
// original's default-true read.
func (k *KillSwitch) IsDisabled(ctx context.Context, tenantID string) (bool, error) {
	ref := k.client.Collection(statusCollection).Doc(tenantID)
	snap, err := ref.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("watchdog: read trading status: %w", err)
	}
	if !snap.Exists() {
		return false, nil
	}
	data := snap.Data()
	enabled, ok := data["enabled"].(bool)
	if !ok {
		return false, nil
	}
	return !enabled, nil
}

// Activate writes the status/alert/audit documents for a critical anomaly and reports
// the alert and event document ids it created.
func (k *KillSwitch) Activate(ctx context.Context, tenantID string, anomaly Result, explanation string, now time.Time) (alertID, eventID string, err error) {
	statusRef := k.client.Collection(statusCollection).Doc(tenantID)
	statusErr := statusRef.Set(ctx, map[string]any{
		"enabled":      false,
		"disabled_by":  "watchdog",
		"disabled_at":  now.UTC().Format(time.RFC3339Nano),
		"reason":       anomaly.Description,
		"anomaly_type": string(anomaly.Type),
		"severity":     string(anomaly.Severity),
		"explanation":  explanation,
	}, true)

	alertID = uuid.NewString()
	alertErr := k.client.Collection(alertsCollection).Doc(tenantDocKeyed(tenantID, alertID)).Create(ctx, map[string]any{
		"tenant_id":           tenantID,
		"type":                "WATCHDOG_KILL_SWITCH",
		"severity":            string(anomaly.Severity),
		"title":               fmt.Sprintf("Trading halted: %s", anomaly.Type),
		"message":             explanation,
		"anomaly_type":        string(anomaly.Type),
		"anomaly_description": anomaly.Description,
		"metadata":            anomaly.Metadata,
		"created_at":          now.UTC().Format(time.RFC3339Nano),
		"read":                false,
		"acknowledged":        false,
		"priority":            "HIGH",
	})

	eventID = uuid.NewString()
	eventErr := k.logEvent(ctx, tenantID, eventID, anomaly, explanation, true, now)

	if statusErr != nil {
		return alertID, eventID, fmt.Errorf("watchdog: activate kill-switch: %w", statusErr)
	}
	if alertErr != nil {
		return alertID, eventID, fmt.Errorf("watchdog: write alert: %w", alertErr)
	}
	return alertID, eventID, eventErr
}

// LogWarning records a non-halting anomaly to the audit trail without touching the
// trading-status or alert documents.
func (k *KillSwitch) LogWarning(ctx context.Context, tenantID string, anomaly Result, now time.Time) error {
	return k.logEvent(ctx, tenantID, uuid.NewString(), anomaly, anomaly.Description, false, now)
}

func (k *KillSwitch) logEvent(ctx context.Context, tenantID, eventID string, anomaly Result, explanation string, killSwitchActivated bool, now time.Time) error {
	return k.client.Collection(auditCollection).Doc(tenantDocKeyed(tenantID, eventID)).Create(ctx, map[string]any{
		"tenant_id":             tenantID,
		"anomaly_detected":      anomaly.Detected,
		"anomaly_type":          string(anomaly.Type),
		"severity":              string(anomaly.Severity),
		"description":           anomaly.Description,
		"explanation":           explanation,
		"metadata":              anomaly.Metadata,
		"kill_switch_activated": killSwitchActivated,
		"timestamp":             now.UTC().Format(time.RFC3339Nano),
	})
}

func tenantDocKeyed(tenantID, id string) string {
	return tenantID + "__" + id
}
