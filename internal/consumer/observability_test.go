package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowtrader/platform/internal/firestorex"
)

func TestObserveDeliveryFirstSeenThenDuplicate(t *testing.T) {
	client := firestorex.NewMemoryClient()
	ctx := context.Background()
	src := SourceInfo{Topic: "market-ticks", MessageID: "m1", PublishedAt: time.Now()}

	seenBefore, ok := ObserveDelivery(ctx, client, "m1", src, "market_tick_handler")
	assert.True(t, ok)
	assert.False(t, seenBefore)

	seenBefore, ok = ObserveDelivery(ctx, client, "m1", src, "market_tick_handler")
	assert.True(t, ok)
	assert.True(t, seenBefore)

	snap, err := client.Collection(DeliveriesCollection).Doc("m1").Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.Data()["seenCount"])
}

func TestObserveDeliveryEmptyMessageIDIsNotOK(t *testing.T) {
	client := firestorex.NewMemoryClient()
	ctx := context.Background()
	seenBefore, ok := ObserveDelivery(ctx, client, "  ", SourceInfo{}, "handler")
	assert.False(t, ok)
	assert.False(t, seenBefore)
}
