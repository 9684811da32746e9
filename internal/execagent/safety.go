package execagent

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shadowtrader/platform/internal/decision"
)

func intEnv(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func parseISODateTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasSuffix(raw, "Z") {
		raw = raw[:len(raw)-1] + "+00:00"
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil
		}
	}
	utc := t.UTC()
	return &utc
}

// BuildSafetySnapshot assembles a fresh SafetySnapshot from the kill switch state and
// the MARKETDATA_LAST_TS_UTC/MARKETDATA_STALE_THRESHOLD_S/AGENT_MODE env vars,
// evaluated against now.
func BuildSafetySnapshot(killSwitch KillSwitchState, now time.Time) decision.SafetySnapshot {
	now = now.UTC()

	killEngaged := true
	if killSwitch != nil {
		killEngaged, _ = killSwitch()
	}

	lastTS := parseISODateTime(os.Getenv("MARKETDATA_LAST_TS_UTC"))
	staleThreshold := time.Duration(intEnv("MARKETDATA_STALE_THRESHOLD_S", 120)) * time.Second

	marketdataFresh := false
	if lastTS != nil {
		marketdataFresh = now.Sub(*lastTS) <= staleThreshold
	}

	agentMode := strings.TrimSpace(os.Getenv("AGENT_MODE"))
	if agentMode == "" {
		agentMode = "UNKNOWN"
	}

	return decision.SafetySnapshot{
		KillSwitch:       killEngaged,
		MarketdataFresh:  marketdataFresh,
		MarketdataLastTS: lastTS,
		AgentMode:        agentMode,
	}
}
