// Package consumer implements the at-least-once-delivery-to-exactly-once-effect
// materializer: ordering, deterministic doc ids, three orthogonal dedupe guards, an LWW
// upsert transaction, delivery observability, deterministic DLQ sampling, and handler
// routing across the entity families this platform ingests from its message bus.
package consumer

import "time"

// SourceInfo identifies the wire message that produced a write, for LWW comparisons and
// provenance fields on the written document.
type SourceInfo struct {
	Topic       string
	MessageID   string
	PublishedAt time.Time
}

// ReplayContext marks a consumer as running a named replay: while non-zero, handlers
// consult the applied-events guard and write progress markers.
type ReplayContext struct {
	RunID    string
	Consumer string
	Topic    string
}

// Active reports whether replay bookkeeping should run.
func (r ReplayContext) Active() bool { return r.RunID != "" }

// EventContext is everything a handler needs about the envelope beyond the payload.
type EventContext struct {
	MessageID      string
	Topic          string
	SchemaVersion  string
	PublishedAt    time.Time
	EventType      string
	Subscription   string
	Attributes     map[string]string
	DeliveryAttempt *int
}

// UpsertOutcome is the result of one LWW upsert attempt.
type UpsertOutcome struct {
	Applied bool
	Reason  string
}

const (
	ReasonApplied            = "applied"
	ReasonStaleEventIgnored  = "stale_event_ignored"
	ReasonDuplicateMessage   = "duplicate_message_noop"
	ReasonOutOfOrderIgnored  = "out_of_order_ignored"
	ReasonAlreadyApplied     = "already_applied_noop"
	ReasonNoDedupeKey        = "no_dedupe_key"
)
