package consumer

import (
	"context"
	"strings"
	"time"

	"github.com/shadowtrader/platform/internal/firestorex"
)

// NormalizeOpsServiceStatus maps a provider-reported status string to the platform's
// fixed vocabulary, returning (normalized, raw).
func NormalizeOpsServiceStatus(raw string) (string, string) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "unknown", raw
	}
	switch {
	case isOneOf(s, "ok", "okay", "healthy", "running", "up", "online", "alive", "serving", "ready"):
		return "healthy", raw
	case isOneOf(s, "degraded", "warn", "warning", "partial", "slow", "lagging"):
		return "degraded", raw
	case isOneOf(s, "down", "offline", "error", "failed", "failure", "fatal", "critical", "unhealthy", "crashloop"):
		return "down", raw
	case isOneOf(s, "maintenance", "maint", "draining", "paused", "pause"):
		return "maintenance", raw
	case isOneOf(s, "unknown", "n/a", "na", "none", "null", "undefined", "?"):
		return "unknown", raw
	case isOneOf(s, "healthy", "degraded", "down", "maintenance"):
		return s, raw
	default:
		return "unknown", raw
	}
}

func isOneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

// OpsServiceTransitionAllowed disallows healthy|degraded|down|maintenance -> unknown;
// every other transition (including no-op) is allowed.
func OpsServiceTransitionAllowed(prev, next string) bool {
	p := strings.ToLower(strings.TrimSpace(prev))
	if p == "" {
		p = "unknown"
	}
	n := strings.ToLower(strings.TrimSpace(next))
	if n == "" {
		n = "unknown"
	}
	if p == n {
		return true
	}
	if isOneOf(p, "healthy", "degraded", "down", "maintenance") && n == "unknown" {
		return false
	}
	return true
}

// ResolveOpsServiceStatus applies the transition guard: an incoming "unknown" never
// overwrites a known previous status.
func ResolveOpsServiceStatus(prevRaw, incomingRaw string) (status, raw string) {
	prevStatus, _ := NormalizeOpsServiceStatus(prevRaw)
	nextStatus, nextRaw := NormalizeOpsServiceStatus(incomingRaw)
	if !OpsServiceTransitionAllowed(prevStatus, nextStatus) {
		return prevStatus, nextRaw
	}
	if nextStatus == "unknown" && prevStatus != "unknown" {
		return prevStatus, nextRaw
	}
	return nextStatus, nextRaw
}

// protectTimestamps never lets an incoming null overwrite an existing non-null
// timestamp field.
func protectTimestamps(existing, incoming map[string]any, fields ...string) map[string]any {
	out := make(map[string]any, len(incoming))
	for k, v := range incoming {
		out[k] = v
	}
	for _, f := range fields {
		if out[f] == nil && existing[f] != nil {
			out[f] = existing[f]
		}
	}
	return out
}

// UpsertEventInput bundles a generic event-collection upsert.
type UpsertEventInput struct {
	Collection      string
	DocID           string
	EventTime       time.Time
	Source          SourceInfo
	Doc             map[string]any
	Replay          ReplayContext
	ReplayDedupeKey string
}

// UpsertEvent runs the LWW upsert transaction for market ticks/bars/trade signals: check
// replay-applied guard, read existing, compute existing_max_time, reject if stale, merge
// with timestamp protection, write.
func UpsertEvent(ctx context.Context, client firestorex.Client, in UpsertEventInput) (UpsertOutcome, error) {
	ref := client.Collection(in.Collection).Doc(in.DocID)
	var outcome UpsertOutcome

	err := client.RunTransaction(ctx, func(ctx context.Context, tx firestorex.Transaction) error {
		if in.Replay.Active() {
			key := in.ReplayDedupeKey
			if key == "" {
				key = in.DocID
			}
			ok, reason, err := EnsureEventNotApplied(tx, client, in.Replay, key, in.EventTime, in.Source.MessageID)
			if err != nil {
				return err
			}
			if !ok {
				outcome = UpsertOutcome{Applied: false, Reason: reason}
				return nil
			}
		}

		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		existing := snap.Data()
		if existing == nil {
			existing = map[string]any{}
		}

		existingMax := existingMaxEventTime(existing)
		incoming := in.EventTime.UTC()
		if !existingMax.IsZero() && incoming.Before(existingMax) {
			outcome = UpsertOutcome{Applied: false, Reason: ReasonStaleEventIgnored}
			return nil
		}

		protected := protectTimestamps(existing, in.Doc, "publishedAt", "producedAt", "eventTime")
		tx.Set(ref, protected, false)
		outcome = UpsertOutcome{Applied: true, Reason: ReasonApplied}
		return nil
	})
	if err != nil {
		return UpsertOutcome{}, err
	}
	return outcome, nil
}

func existingMaxEventTime(existing map[string]any) time.Time {
	var times []time.Time
	for _, k := range []string{"eventTime", "producedAt", "publishedAt"} {
		if t, ok := ParseFlexibleTimestamp(existing[k]); ok {
			times = append(times, t)
		}
	}
	if src, ok := existing["source"].(map[string]any); ok {
		if t, ok := ParseFlexibleTimestamp(src["publishedAt"]); ok {
			times = append(times, t)
		}
	}
	return MaxTime(times...)
}

// OpsServicesCollection and DedupeAndUpsertOpsService cover the service-health family,
// which additionally runs the message-once guard and the status transition rule inside
// the same transaction (spec §4.C11.4 special rule).
const OpsServicesCollection = "ops_services"

// OpsServiceUpsertInput bundles one ops_services write.
type OpsServiceUpsertInput struct {
	MessageID       string
	Replay          ReplayContext
	ReplayDedupeKey string
	ServiceID       string
	Env             string
	Status          string
	LastHeartbeatAt time.Time
	Version         string
	Region          string
	UpdatedAt       time.Time
	Source          SourceInfo
}

// DedupeAndUpsertOpsService transactionally: claims messageId once, runs the replay
// guard, applies LWW ordering, and normalizes/guards the status transition.
func DedupeAndUpsertOpsService(ctx context.Context, client firestorex.Client, in OpsServiceUpsertInput) (UpsertOutcome, error) {
	dedupeRef := client.Collection(DedupeCollection).Doc(in.MessageID)
	serviceRef := client.Collection(OpsServicesCollection).Doc(in.ServiceID)
	var outcome UpsertOutcome

	err := client.RunTransaction(ctx, func(ctx context.Context, tx firestorex.Transaction) error {
		firstTime, err := EnsureMessageOnce(tx, client, in.MessageID, map[string]any{
			"kind":             "ops_services",
			"targetDoc":        OpsServicesCollection + "/" + in.ServiceID,
			"sourceTopic":      in.Source.Topic,
			"sourcePublishedAt": in.Source.PublishedAt.UTC(),
		})
		if err != nil {
			return err
		}
		if !firstTime {
			outcome = UpsertOutcome{Applied: false, Reason: ReasonDuplicateMessage}
			return nil
		}

		if in.Replay.Active() {
			key := in.ReplayDedupeKey
			if key == "" {
				key = in.MessageID
			}
			ok, reason, err := EnsureEventNotApplied(tx, client, in.Replay, key, in.UpdatedAt, in.MessageID)
			if err != nil {
				return err
			}
			if !ok {
				outcome = UpsertOutcome{Applied: false, Reason: reason}
				return nil
			}
		}

		snap, err := tx.Get(serviceRef)
		if err != nil {
			return err
		}
		existing := snap.Data()
		if existing == nil {
			existing = map[string]any{}
		}

		existingMax := existingMaxOpsServiceTime(existing)
		incomingEff := MaxTime(in.UpdatedAt.UTC(), in.LastHeartbeatAt.UTC(), in.Source.PublishedAt.UTC())
		if incomingEff.IsZero() {
			incomingEff = in.UpdatedAt.UTC()
		}
		if !existingMax.IsZero() && incomingEff.Before(existingMax) {
			tx.Set(dedupeRef, map[string]any{
				"outcome": "out_of_order_ignored",
				"reason":  "incoming_publishedAt_older_than_stored",
			}, true)
			outcome = UpsertOutcome{Applied: false, Reason: ReasonOutOfOrderIgnored}
			return nil
		}

		prevRaw, _ := existing["status"].(string)
		status, rawStatus := ResolveOpsServiceStatus(prevRaw, in.Status)

		doc := map[string]any{
			"serviceId":       in.ServiceID,
			"env":             in.Env,
			"status":          status,
			"status_raw":      rawStatus,
			"lastHeartbeatAt": in.LastHeartbeatAt.UTC(),
			"version":         in.Version,
			"region":          in.Region,
			"updatedAt":       incomingEff,
			"source": map[string]any{
				"topic":       in.Source.Topic,
				"messageId":   in.Source.MessageID,
				"publishedAt": in.Source.PublishedAt.UTC(),
			},
		}
		tx.Set(serviceRef, doc, true)
		tx.Set(dedupeRef, map[string]any{"outcome": "applied"}, true)
		outcome = UpsertOutcome{Applied: true, Reason: ReasonApplied}
		return nil
	})
	if err != nil {
		return UpsertOutcome{}, err
	}
	return outcome, nil
}

func existingMaxOpsServiceTime(existing map[string]any) time.Time {
	var times []time.Time
	for _, k := range []string{"lastHeartbeatAt", "updatedAt"} {
		if t, ok := ParseFlexibleTimestamp(existing[k]); ok {
			times = append(times, t)
		}
	}
	if src, ok := existing["source"].(map[string]any); ok {
		if t, ok := ParseFlexibleTimestamp(src["publishedAt"]); ok {
			times = append(times, t)
		}
	}
	return MaxTime(times...)
}
