package watchdog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRegimeCacheUnknownWhenUnset(t *testing.T) {
	client := newTestRedis(t)
	cache := NewRedisRegimeCache(client)

	_, known, err := cache.NetGEX(context.Background())
	require.NoError(t, err)
	assert.False(t, known)
}

func TestRedisRegimeCacheReadsValue(t *testing.T) {
	client := newTestRedis(t)
	require.NoError(t, client.Set(context.Background(), regimeKey, "-500000.0", 0).Err())

	cache := NewRedisRegimeCache(client)
	v, known, err := cache.NetGEX(context.Background())
	require.NoError(t, err)
	require.True(t, known)
	assert.InDelta(t, -500000.0, v, 0.001)
}
