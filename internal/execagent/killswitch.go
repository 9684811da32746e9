package execagent

import (
	"encoding/json"
	"os"
	"strings"
)

// KillSwitchState reports whether the kill switch is currently engaged, and where
// that state came from (for logging). Readers must fail safe: any error reading the
// backing store is reported as engaged.
type KillSwitchState func() (engaged bool, source string)

type killSwitchDoc struct {
	Disabled bool `json:"disabled"`
}

// FileKillSwitch reads a small JSON document ({"disabled": true|false}) from path.
// Missing file, unreadable file, or malformed JSON all fail safe (engaged=true) —
// the same conservative default SafetySnapshot carries when nothing else is known.
func FileKillSwitch(path string) KillSwitchState {
	return func() (bool, string) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return true, "file_unreadable"
		}
		var doc killSwitchDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return true, "file_malformed"
		}
		return doc.Disabled, "file"
	}
}

// KillSwitchPathFromEnv reads KILL_SWITCH_STATE_PATH, defaulting to
// audit/kill_switch.json.
func KillSwitchPathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("KILL_SWITCH_STATE_PATH")); v != "" {
		return v
	}
	return "audit/kill_switch.json"
}
