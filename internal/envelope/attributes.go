package envelope

import (
	"fmt"
	"strings"
)

// maxAttributeLength bounds transport attribute values; these ride alongside the
// payload on Pub/Sub-like transports and must stay small.
const maxAttributeLength = 256

// TransportAttributes are Pub/Sub-style message attributes: metadata only, never a
// substitute for the payload body.
type TransportAttributes struct {
	EventType     string
	SchemaVersion string
	Producer      string
	Environment   string
}

// AttributeError names the offending attribute key.
type AttributeError struct {
	Key string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("transport attribute %q is required, non-empty, and length-bounded", e.Key)
}

// Validate checks that every required attribute is present, trimmed-non-empty, and
// within the length bound.
func (a TransportAttributes) Validate() error {
	fields := map[string]string{
		"event_type":     a.EventType,
		"schema_version": a.SchemaVersion,
		"producer":       a.Producer,
		"environment":    a.Environment,
	}
	for key, v := range fields {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || len(trimmed) > maxAttributeLength {
			return &AttributeError{Key: key}
		}
	}
	return nil
}

// ToMap renders the attributes as a string map suitable for a NATS/Pub/Sub message.
func (a TransportAttributes) ToMap() map[string]string {
	return map[string]string{
		"event_type":     a.EventType,
		"schema_version": a.SchemaVersion,
		"producer":       a.Producer,
		"environment":    a.Environment,
	}
}
