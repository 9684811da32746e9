package firestorex_test

import (
	"context"
	"testing"

	"github.com/shadowtrader/platform/internal/firestorex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientCreateThenAlreadyExists(t *testing.T) {
	c := firestorex.NewMemoryClient()
	ref := c.Collection("widgets").Doc("w1")
	ctx := context.Background()

	require.NoError(t, ref.Create(ctx, map[string]any{"a": 1}))
	err := ref.Create(ctx, map[string]any{"a": 2})
	assert.ErrorIs(t, err, firestorex.ErrAlreadyExists)

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Exists())
	assert.EqualValues(t, 1, snap.Data()["a"])
}

func TestMemoryClientSetMerge(t *testing.T) {
	c := firestorex.NewMemoryClient()
	ref := c.Collection("widgets").Doc("w1")
	ctx := context.Background()

	require.NoError(t, ref.Set(ctx, map[string]any{"a": 1, "b": 2}, false))
	require.NoError(t, ref.Set(ctx, map[string]any{"b": 3}, true))

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	data := snap.Data()
	assert.EqualValues(t, 1, data["a"])
	assert.EqualValues(t, 3, data["b"])
}

func TestMemoryClientGetMissingDocument(t *testing.T) {
	c := firestorex.NewMemoryClient()
	ref := c.Collection("widgets").Doc("missing")
	snap, err := ref.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestMemoryClientRunTransaction(t *testing.T) {
	c := firestorex.NewMemoryClient()
	ctx := context.Background()

	err := c.RunTransaction(ctx, func(ctx context.Context, tx firestorex.Transaction) error {
		ref := c.Collection("widgets").Doc("w2")
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if !snap.Exists() {
			return tx.Create(ref, map[string]any{"created": true})
		}
		return nil
	})
	require.NoError(t, err)

	snap, err := c.Collection("widgets").Doc("w2").Get(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Exists())
}
