// Package envelope implements the versioned message envelope: alias-tolerant
// decode, canonical snake_case encode.
package envelope

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CurrentSchemaVersion is the only schema version producers may emit.
const CurrentSchemaVersion = 1

// Envelope is the versioned wire envelope carried over every subject.
type Envelope struct {
	SchemaVersion int
	EventType     string
	AgentName     string
	GitSHA        string
	TS            time.Time
	Payload       map[string]any
	TraceID       string
}

// New constructs an envelope with CurrentSchemaVersion, ts defaulted to now, and a
// fresh trace id, analogous to EventEnvelope.new in the source contract.
func New(eventType, agentName string, payload map[string]any) Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return Envelope{
		SchemaVersion: CurrentSchemaVersion,
		EventType:     eventType,
		AgentName:     agentName,
		GitSHA:        defaultGitSHA(),
		TS:            time.Now().UTC(),
		Payload:       payload,
		TraceID:       uuid.New().String(),
	}
}

func defaultGitSHA() string {
	for _, key := range []string{"GIT_SHA", "GITHUB_SHA", "COMMIT_SHA"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return "unknown"
}

// wireEnvelope is the canonical snake_case wire representation used for encoding.
type wireEnvelope struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	AgentName     string         `json:"agent_name"`
	GitSHA        string         `json:"git_sha"`
	TS            string         `json:"ts"`
	Payload       map[string]any `json:"payload"`
	TraceID       string         `json:"trace_id"`
}

// ToJSON encodes the envelope to its canonical UTF-8 JSON form.
func (e Envelope) ToJSON() ([]byte, error) {
	w := wireEnvelope{
		SchemaVersion: e.SchemaVersion,
		EventType:     e.EventType,
		AgentName:     e.AgentName,
		GitSHA:        e.GitSHA,
		TS:            e.TS.UTC().Format(time.RFC3339Nano),
		Payload:       e.Payload,
		TraceID:       e.TraceID,
	}
	return json.Marshal(w)
}

// DecodeError signals a structural problem with an inbound envelope: a missing
// required field (FromMap returns it for a missing schema version). An unsupported
// schema version is not reported through it; FromMap keeps the value for the caller
// to check. It is a ValidationError kind per the error taxonomy, never auto-retried.
type DecodeError struct {
	Field string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func firstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// allowLegacySchemalessEnvelope reports whether the escape hatch for schema-version-less
// envelopes is enabled. Values 1/true/yes/y/on (case-insensitive) enable it.
func allowLegacySchemalessEnvelope() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_LEGACY_SCHEMALESS_ENVELOPE")))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FromMap decodes a loosely-typed map into an Envelope, tolerating the documented
// field-name aliases. Unknown schema versions other than 0 (escape-hatch default)
// are preserved as-is; the caller (subscriber) is responsible for rejecting anything
// other than CurrentSchemaVersion per §4.C3.
func FromMap(data map[string]any) (Envelope, error) {
	var e Envelope

	schemaVal, hasSchema := firstPresent(data, "schemaVersion", "schema_version")
	if !hasSchema {
		if !allowLegacySchemalessEnvelope() {
			return e, &DecodeError{Field: "schemaVersion"}
		}
		e.SchemaVersion = 0
	} else {
		switch n := schemaVal.(type) {
		case float64:
			e.SchemaVersion = int(n)
		case int:
			e.SchemaVersion = n
		case json.Number:
			iv, _ := n.Int64()
			e.SchemaVersion = int(iv)
		}
	}

	if v, ok := firstPresent(data, "event_type", "eventType", "type"); ok {
		if s, ok := asString(v); ok {
			e.EventType = s
		}
	}
	if v, ok := firstPresent(data, "agent_name", "agentName"); ok {
		if s, ok := asString(v); ok {
			e.AgentName = s
		}
	}
	if v, ok := firstPresent(data, "git_sha", "gitSha", "sha"); ok {
		if s, ok := asString(v); ok {
			e.GitSHA = s
		}
	}
	if v, ok := firstPresent(data, "ts", "producedAt"); ok {
		if s, ok := asString(v); ok {
			if t, err := parseTS(s); err == nil {
				e.TS = t
			}
		}
	}
	if v, ok := firstPresent(data, "trace_id", "traceId"); ok {
		if s, ok := asString(v); ok {
			e.TraceID = s
		}
	}

	if p, ok := data["payload"]; ok {
		if m, ok := p.(map[string]any); ok {
			e.Payload = m
		}
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}

	return e, nil
}

func parseTS(s string) (time.Time, error) {
	if strings.HasSuffix(s, "Z") {
		s = s[:len(s)-1] + "+00:00"
	}
	return time.Parse(time.RFC3339Nano, s)
}

// FromJSON JSON-decodes data then decodes into an Envelope via FromMap.
func FromJSON(data []byte) (Envelope, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Envelope{}, err
	}
	return FromMap(m)
}
