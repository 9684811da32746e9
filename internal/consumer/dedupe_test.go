package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowtrader/platform/internal/firestorex"
)

func TestEnsureMessageOnceFirstTimeThenNoop(t *testing.T) {
	client := firestorex.NewMemoryClient()
	ctx := context.Background()

	var first, second bool
	err := client.RunTransaction(ctx, func(ctx context.Context, tx firestorex.Transaction) error {
		var err error
		first, err = EnsureMessageOnce(tx, client, "msg-1", map[string]any{"kind": "x"})
		return err
	})
	require.NoError(t, err)
	assert.True(t, first)

	err = client.RunTransaction(ctx, func(ctx context.Context, tx firestorex.Transaction) error {
		var err error
		second, err = EnsureMessageOnce(tx, client, "msg-1", map[string]any{"kind": "x"})
		return err
	})
	require.NoError(t, err)
	assert.False(t, second)
}

func TestBusinessDedupeKeyStableAndCaseInsensitive(t *testing.T) {
	a := BusinessDedupeKey("SPY", "iron-condor", "open", "entry", "evt-1")
	b := BusinessDedupeKey("spy", "iron-condor", "OPEN", "entry", "evt-1")
	assert.Equal(t, a, b)

	c := BusinessDedupeKey("SPY", "iron-condor", "close", "entry", "evt-1")
	assert.NotEqual(t, a, c)
}

func TestEnsureEventNotAppliedNoDedupeKeySkipsGuard(t *testing.T) {
	client := firestorex.NewMemoryClient()
	ctx := context.Background()
	replay := ReplayContext{RunID: "run-1", Consumer: "consumer-a", Topic: "topic-a"}

	var ok bool
	var reason string
	err := client.RunTransaction(ctx, func(ctx context.Context, tx firestorex.Transaction) error {
		var err error
		ok, reason, err = EnsureEventNotApplied(tx, client, replay, "", time.Now(), "msg-1")
		return err
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ReasonNoDedupeKey, reason)
}

func TestEnsureEventNotAppliedBlocksSecondReplay(t *testing.T) {
	client := firestorex.NewMemoryClient()
	ctx := context.Background()
	replay := ReplayContext{RunID: "run-1", Consumer: "consumer-a", Topic: "topic-a"}

	runOnce := func() (bool, string) {
		var ok bool
		var reason string
		err := client.RunTransaction(ctx, func(ctx context.Context, tx firestorex.Transaction) error {
			var err error
			ok, reason, err = EnsureEventNotApplied(tx, client, replay, "dedupe-key-1", time.Now(), "msg-1")
			return err
		})
		require.NoError(t, err)
		return ok, reason
	}

	ok, reason := runOnce()
	assert.True(t, ok)
	assert.Equal(t, "not_applied_yet", reason)

	ok, reason = runOnce()
	assert.False(t, ok)
	assert.Equal(t, ReasonAlreadyApplied, reason)
}

func TestAppliedEventDocIDIsNormalized(t *testing.T) {
	id := AppliedEventDocID("consumer/a", "topic/b", "key/c")
	assert.NotContains(t, id, "/")
}
