package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/blog_admin/internal/util"
)

const (
	attemptKeyPrefix = "ratelimit:session:"
	blockKeyPrefix   = "ratelimit:session:block:"
)

// AttemptLimiter throttles session verify/refresh attempts per key (client IP).
// A key exceeding Limit within Interval is blocked for BlockTime.
type AttemptLimiter struct {
	client    *redis.Client
	limit     int64
	interval  time.Duration
	blockTime time.Duration
}

func NewAttemptLimiter(client *redis.Client, cfg *util.RateLimiterConfig) *AttemptLimiter {
	return &AttemptLimiter{
		client:    client,
		limit:     int64(cfg.Limit),
		interval:  cfg.Interval,
		blockTime: cfg.BlockTime,
	}
}

// Allow records one attempt and reports whether it may proceed. retryAfter is set when blocked.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error) {
	ttl, err := l.client.TTL(ctx, blockKeyPrefix+key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("check block: %w", err)
	}
	if ttl > 0 {
		return false, ttl, nil
	}

	countKey := attemptKeyPrefix + key
	count, err := l.client.Incr(ctx, countKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment session attempt: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, countKey, l.interval).Err(); err != nil {
			return false, 0, fmt.Errorf("expire attempt counter: %w", err)
		}
	}

	if count > l.limit {
		pipe := l.client.TxPipeline()
		pipe.Set(ctx, blockKeyPrefix+key, "1", l.blockTime)
		pipe.Del(ctx, countKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return false, 0, fmt.Errorf("block key: %w", err)
		}
		return false, l.blockTime, nil
	}

	return true, 0, nil
}
