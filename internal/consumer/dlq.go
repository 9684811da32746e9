package consumer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"time"

	"github.com/shadowtrader/platform/internal/firestorex"
)

// DLQSamplesCollection holds a deterministic sample of failed deliveries for debugging.
const DLQSamplesCollection = "ops_pubsub_dlq_samples"

// DeterministicSample decides, by a stable hash of messageID, whether this message falls
// within sampleRate (in [0,1]). The same messageID always produces the same decision, so
// retries of one message sample identically.
func DeterministicSample(messageID string, sampleRate float64) bool {
	if sampleRate <= 0 {
		return false
	}
	if sampleRate >= 1 {
		return true
	}
	mid := strings.TrimSpace(messageID)
	if mid == "" {
		return false
	}
	h := sha256.Sum256([]byte(mid))
	n := binary.BigEndian.Uint64(h[:8])
	frac := float64(n) / float64(1<<64-1)
	return frac < sampleRate
}

// DLQSampleInput bundles one sampled-failure record.
type DLQSampleInput struct {
	MessageID       string
	Subscription    string
	Topic           string
	Handler         string
	HTTPStatus      int
	Reason          string
	Error           string
	DeliveryAttempt *int
	Attributes      map[string]string
	Payload         map[string]any
	SampleRate      float64
	TTL             time.Duration
}

// MaybeWriteSampledDLQEvent writes a best-effort DLQ sample doc when the deterministic
// sample decision selects this messageId. Returns true iff a write was attempted.
func MaybeWriteSampledDLQEvent(ctx context.Context, client firestorex.Client, in DLQSampleInput) bool {
	if !DeterministicSample(in.MessageID, in.SampleRate) {
		return false
	}
	mid := strings.TrimSpace(in.MessageID)
	if mid == "" {
		return false
	}

	doc := map[string]any{
		"messageId":    mid,
		"subscription": in.Subscription,
		"topic":        in.Topic,
		"handler":      in.Handler,
		"httpStatus":   in.HTTPStatus,
		"reason":       in.Reason,
		"error":        truncate(in.Error, 2000),
		"attributes":   in.Attributes,
		"payload":      in.Payload,
		"createdAt":    time.Now().UTC(),
	}
	if in.DeliveryAttempt != nil {
		doc["deliveryAttempt"] = *in.DeliveryAttempt
	}
	if in.TTL > 0 {
		doc["expireAt"] = time.Now().UTC().Add(in.TTL)
	}

	ref := client.Collection(DLQSamplesCollection).Doc(NormalizeDocID(mid))
	if err := ref.Set(ctx, doc, true); err != nil {
		return false
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
