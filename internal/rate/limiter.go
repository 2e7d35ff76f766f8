package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindow counts hits per key in Redis. The first hit in a window sets
// the key's TTL; the counter disappears when the window ends.
type FixedWindow struct {
	redis redis.UniversalClient
}

// NewFixedWindow creates a counter backed by the given Redis client.
func NewFixedWindow(redisClient redis.UniversalClient) *FixedWindow {
	return &FixedWindow{redis: redisClient}
}

// Hit increments key and returns ErrRateLimited once the count exceeds limit.
func (w *FixedWindow) Hit(ctx context.Context, key string, limit int, window time.Duration) error {
	count, err := w.incrementWithTTL(ctx, key, window)
	if err != nil {
		return err
	}
	if count > int64(limit) {
		return ErrRateLimited
	}
	return nil
}

// Check returns ErrRateLimited when key already holds limit or more hits,
// without counting this call.
func (w *FixedWindow) Check(ctx context.Context, key string, limit int) error {
	count, err := w.Count(ctx, key)
	if err != nil {
		return err
	}
	if count >= int64(limit) {
		return ErrRateLimited
	}
	return nil
}

// Count returns the current hits for key. Missing keys count as zero.
func (w *FixedWindow) Count(ctx context.Context, key string) (int64, error) {
	count, err := w.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// Increment adds one hit to key.
func (w *FixedWindow) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return w.incrementWithTTL(ctx, key, window)
}

// Reset deletes the given counters.
func (w *FixedWindow) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := w.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (w *FixedWindow) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
