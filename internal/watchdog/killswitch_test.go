package watchdog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shadowtrader/platform/internal/firestorex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKillSwitchIsDisabledDefaultsFalseWhenNoDoc(t *testing.T) {
	ks := NewKillSwitch(firestorex.NewMemoryClient())
	disabled, err := ks.IsDisabled(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.False(t, disabled)
}

func TestKillSwitchActivateWritesStatusAlertAndEvent(t *testing.T) {
	client := firestorex.NewMemoryClient()
	ks := NewKillSwitch(client)
	anomaly := Result{
		Detected: true, Type: AnomalyLosingStreak, Severity: SeverityCritical,
		Description: "5 consecutive losses", Metadata: map[string]any{"consecutive_losses": 5},
		ShouldHaltTrading: true,
	}

	alertID, eventID, err := ks.Activate(context.Background(), "tenant-1", anomaly, "Agent shut down because of losses", time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, alertID)
	assert.NotEmpty(t, eventID)

	disabled, err := ks.IsDisabled(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.True(t, disabled)

	snapshot := client.Snapshot()
	statusDoc, ok := snapshot[statusCollection+"/tenant-1"]
	require.True(t, ok)
	assert.Equal(t, false, statusDoc["enabled"])
	assert.Equal(t, "watchdog", statusDoc["disabled_by"])

	alertDoc, ok := snapshot[alertsCollection+"/tenant-1__"+alertID]
	require.True(t, ok)
	assert.Equal(t, "WATCHDOG_KILL_SWITCH", alertDoc["type"])

	eventDoc, ok := snapshot[auditCollection+"/tenant-1__"+eventID]
	require.True(t, ok)
	assert.Equal(t, true, eventDoc["kill_switch_activated"])
}

func TestKillSwitchLogWarningDoesNotDisableTrading(t *testing.T) {
	client := firestorex.NewMemoryClient()
	ks := NewKillSwitch(client)
	anomaly := Result{Detected: true, Type: AnomalyMarketMismatch, Severity: SeverityMedium, Description: "mismatch", ShouldHaltTrading: false}

	require.NoError(t, ks.LogWarning(context.Background(), "tenant-1", anomaly, time.Now()))

	disabled, err := ks.IsDisabled(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.False(t, disabled)

	found := false
	for path, doc := range client.Snapshot() {
		if strings.HasPrefix(path, auditCollection+"/") && doc["kill_switch_activated"] == false {
			found = true
		}
	}
	assert.True(t, found)
}
