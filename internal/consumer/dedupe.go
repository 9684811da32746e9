package consumer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/shadowtrader/platform/internal/firestorex"
)

const (
	// DedupeCollection backs the message-once guard: one doc per bus messageId.
	DedupeCollection = "ops_dedupe"
	// AppliedEventsCollection backs the replay-applied guard.
	AppliedEventsCollection = "ops_applied_events"
)

// EnsureMessageOnce claims messageId inside tx. Returns firstTime=true (and creates the
// dedupe doc) the first time this messageId is seen; any retry of the same messageId is
// a no-op.
func EnsureMessageOnce(tx firestorex.Transaction, client firestorex.Client, messageID string, doc map[string]any) (bool, error) {
	ref := client.Collection(DedupeCollection).Doc(messageID)
	snap, err := tx.Get(ref)
	if err != nil {
		return false, err
	}
	if snap.Exists() {
		return false, nil
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := tx.Create(ref, doc); err != nil {
		if errors.Is(err, firestorex.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BusinessDedupeKey hashes the logical identity of a trade signal so two different bus
// messageIds describing the same signal converge on one key.
func BusinessDedupeKey(symbol, strategy, action, signalType, eventID string) string {
	h := sha256.New()
	for _, part := range []string{
		strings.ToLower(strings.TrimSpace(symbol)),
		strings.ToLower(strings.TrimSpace(strategy)),
		strings.ToLower(strings.TrimSpace(action)),
		strings.ToLower(strings.TrimSpace(signalType)),
		strings.TrimSpace(eventID),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AppliedEventDocID composes the replay-applied-guard doc id.
func AppliedEventDocID(consumer, topic, dedupeKey string) string {
	return NormalizeDocID(consumer + "__" + topic + "__" + dedupeKey)
}

// EnsureEventNotApplied is the replay-mode idempotency guard: when replay is active,
// refuses to re-apply an event keyed by dedupeKey (prefer a producer-assigned eventId).
// Returns (ok=true) when the caller should proceed, with reason "no_dedupe_key" when
// replay carries no usable key, "not_applied_yet" on first application, or
// (ok=false, "already_applied_noop") on replay.
func EnsureEventNotApplied(
	tx firestorex.Transaction,
	client firestorex.Client,
	replay ReplayContext,
	dedupeKey string,
	eventTime time.Time,
	messageID string,
) (bool, string, error) {
	key := strings.TrimSpace(dedupeKey)
	if key == "" {
		return true, ReasonNoDedupeKey, nil
	}
	ref := client.Collection(AppliedEventsCollection).Doc(AppliedEventDocID(replay.Consumer, replay.Topic, key))
	snap, err := tx.Get(ref)
	if err != nil {
		return false, "", err
	}
	if snap.Exists() {
		return false, ReasonAlreadyApplied, nil
	}
	err = tx.Create(ref, map[string]any{
		"createdAt":    eventTime.UTC(),
		"consumer":     replay.Consumer,
		"topic":        replay.Topic,
		"dedupeKey":    key,
		"replayRunId":  replay.RunID,
		"eventTime":    eventTime.UTC(),
		"messageId":    messageID,
	})
	if err != nil {
		if errors.Is(err, firestorex.ErrAlreadyExists) {
			return false, ReasonAlreadyApplied, nil
		}
		return false, "", err
	}
	return true, "not_applied_yet", nil
}
