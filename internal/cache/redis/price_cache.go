package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotCached is returned when no price entry exists for a token.
var ErrNotCached = errors.New("price not cached")

// PriceCache stores each token's latest spot price as a hash at
// "price:{tokenID}" with fields "price" and "ts" (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(tokenID string) string {
	return "price:" + tokenID
}

// Set stores the latest spot price and timestamp for a token.
func (pc *PriceCache) Set(ctx context.Context, tokenID string, price float64, ts time.Time) error {
	if pc == nil || pc.rdb == nil {
		return nil
	}
	key := priceKey(tokenID)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", tokenID, err)
	}
	if pc.ttl > 0 {
		if err := pc.rdb.Expire(ctx, key, pc.ttl).Err(); err != nil {
			return fmt.Errorf("redis: expire price %s: %w", tokenID, err)
		}
	}
	return nil
}

// Get retrieves the latest cached price for a token. Returns ErrNotCached
// when no entry exists.
func (pc *PriceCache) Get(ctx context.Context, tokenID string) (float64, time.Time, error) {
	if pc == nil || pc.rdb == nil {
		return 0, time.Time{}, ErrNotCached
	}
	vals, err := pc.rdb.HGetAll(ctx, priceKey(tokenID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", tokenID, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, ErrNotCached
	}
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, ErrNotCached
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", tokenID, err)
	}
	ts := time.Time{}
	if tsStr, ok := vals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			ts = time.Unix(0, tsNano)
		}
	}
	return price, ts, nil
}
