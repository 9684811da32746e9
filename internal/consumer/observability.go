package consumer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shadowtrader/platform/internal/firestorex"
)

// DeliveriesCollection is the best-effort, non-gating delivery-visibility collection.
const DeliveriesCollection = "ops_pubsub_deliveries"

// ObserveDelivery records that a bus delivery occurred. It returns (seenBefore, ok):
// seenBefore=true means this messageId had a prior delivery (duplicate delivery);
// ok=false means the observation itself failed — callers MUST NOT treat that as a
// reason to skip processing; this path is visibility-only.
func ObserveDelivery(ctx context.Context, client firestorex.Client, messageID string, in SourceInfo, handler string) (seenBefore bool, ok bool) {
	mid := strings.TrimSpace(messageID)
	if mid == "" {
		return false, false
	}
	ref := client.Collection(DeliveriesCollection).Doc(NormalizeDocID(mid))

	err := ref.Create(ctx, map[string]any{
		"messageId":   mid,
		"topic":       in.Topic,
		"handler":     handler,
		"publishedAt": in.PublishedAt.UTC(),
		"firstSeenAt": time.Now().UTC(),
		"lastSeenAt":  time.Now().UTC(),
		"seenCount":   1,
	})
	if err == nil {
		return false, true
	}
	if !errors.Is(err, firestorex.ErrAlreadyExists) {
		return false, false
	}

	snap, getErr := ref.Get(ctx)
	if getErr != nil {
		return true, false
	}
	data := snap.Data()
	count := 1
	switch c := data["seenCount"].(type) {
	case int:
		count = c + 1
	case int64:
		count = int(c) + 1
	case float64:
		count = int(c) + 1
	}
	_ = ref.Set(ctx, map[string]any{
		"lastSeenAt":      time.Now().UTC(),
		"seenCount":       count,
		"lastTopic":       in.Topic,
		"lastHandler":     handler,
		"lastPublishedAt": in.PublishedAt.UTC(),
	}, true)
	return true, true
}
