package watchdog

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// regimeKey is written by whatever component tracks the market-wide gamma exposure
// regime; the watchdog only ever reads it.
const regimeKey = "watchdog:regime:spy_net_gex"

// RegimeCache answers "is the market in a negative-gamma regime right now" for the
// market-condition-mismatch detector.
type RegimeCache interface {
	NetGEX(ctx context.Context) (value float64, known bool, err error)
}

// RedisRegimeCache reads a single float member another process maintains.
type RedisRegimeCache struct {
	client *redis.Client
}

func NewRedisRegimeCache(client *redis.Client) *RedisRegimeCache {
	return &RedisRegimeCache{client: client}
}

func (c *RedisRegimeCache) NetGEX(ctx context.Context) (float64, bool, error) {
	raw, err := c.client.Get(ctx, regimeKey).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, nil
	}
	return v, true, nil
}
