package envelope

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSONCanonicalSnakeCase(t *testing.T) {
	e := New("order_proposal", "scalper-agent", map[string]any{"sma": 1.0})
	raw, err := e.ToJSON()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, key := range []string{"schema_version", "event_type", "agent_name", "git_sha", "ts", "payload", "trace_id"} {
		_, ok := m[key]
		assert.True(t, ok, "expected canonical key %q", key)
	}
}

func TestFromMapAliasTolerance(t *testing.T) {
	data := map[string]any{
		"schemaVersion": float64(1),
		"eventType":     "order_proposal",
		"agentName":     "scalper-agent",
		"sha":           "abc123",
		"producedAt":    "2026-01-01T12:00:00Z",
		"traceId":       "trace-1",
		"payload":       map[string]any{"k": "v"},
	}
	e, err := FromMap(data)
	require.NoError(t, err)
	assert.Equal(t, 1, e.SchemaVersion)
	assert.Equal(t, "order_proposal", e.EventType)
	assert.Equal(t, "scalper-agent", e.AgentName)
	assert.Equal(t, "abc123", e.GitSHA)
	assert.Equal(t, "trace-1", e.TraceID)
	assert.Equal(t, "v", e.Payload["k"])
}

func TestFromMapMissingSchemaVersionFails(t *testing.T) {
	os.Unsetenv("ALLOW_LEGACY_SCHEMALESS_ENVELOPE")
	_, err := FromMap(map[string]any{"event_type": "x"})
	require.Error(t, err)
	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestFromMapLegacyEscapeHatch(t *testing.T) {
	t.Setenv("ALLOW_LEGACY_SCHEMALESS_ENVELOPE", "true")
	e, err := FromMap(map[string]any{"event_type": "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, e.SchemaVersion)
}

func TestRoundTripJSON(t *testing.T) {
	e := New("order_proposal", "scalper-agent", map[string]any{"k": "v"})
	raw, err := e.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, e.EventType, decoded.EventType)
	assert.Equal(t, e.AgentName, decoded.AgentName)
	assert.Equal(t, e.SchemaVersion, decoded.SchemaVersion)
	assert.Equal(t, "v", decoded.Payload["k"])
}
