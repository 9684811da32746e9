package watchdog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TradeWindowCache is the rolling-window read side the sweep consults: whatever writes
// shadow trades also pushes them here so the watchdog never has to run an aggregation
// query per tick. Push is best-effort from the caller's perspective; a cache miss just
// means the watchdog sees fewer trades than exist, never more.
type TradeWindowCache interface {
	Push(ctx context.Context, tenantID string, trade Trade) error
	Recent(ctx context.Context, tenantID string, window time.Duration, limit int) ([]Trade, error)
}

// RedisTradeWindow keeps one sorted set per tenant, scored by trade timestamp, so
// "last N minutes capped at M" is a single ZREVRANGEBYSCORE.
type RedisTradeWindow struct {
	client *redis.Client
	// Retain bounds how long a member survives regardless of window queries, so the
	// set doesn't grow unboundedly for a tenant the sweep stops visiting.
	Retain time.Duration
}

// NewRedisTradeWindow wraps a Redis client. Pass the client returned by
// miniredis-backed redis.NewClient in tests.
func NewRedisTradeWindow(client *redis.Client, retain time.Duration) *RedisTradeWindow {
	if retain <= 0 {
		retain = time.Hour
	}
	return &RedisTradeWindow{client: client, Retain: retain}
}

func (w *RedisTradeWindow) key(tenantID string) string {
	return fmt.Sprintf("watchdog:trades:%s", tenantID)
}

func (w *RedisTradeWindow) Push(ctx context.Context, tenantID string, trade Trade) error {
	ts := trade.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("watchdog: marshal trade: %w", err)
	}

	key := w.key(tenantID)
	pipe := w.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ts.UnixNano()), Member: data})
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", time.Now().UTC().Add(-w.Retain).UnixNano()))
	pipe.Expire(ctx, key, w.Retain)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns trades from the last `window`, newest first, capped at `limit`.
func (w *RedisTradeWindow) Recent(ctx context.Context, tenantID string, window time.Duration, limit int) ([]Trade, error) {
	cutoff := time.Now().UTC().Add(-window).UnixNano()
	key := w.key(tenantID)

	members, err := w.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:    fmt.Sprintf("%d", cutoff),
		Max:    "+inf",
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("watchdog: query trade window: %w", err)
	}

	out := make([]Trade, 0, len(members))
	for _, m := range members {
		var t Trade
		if jerr := json.Unmarshal([]byte(m), &t); jerr != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
