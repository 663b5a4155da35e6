package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ratelimit"

// RedisLimiter shares fixed-window counters across instances through Redis.
type RedisLimiter struct {
	client redis.Cmdable
	rules  Rules
	prefix string
	now    func() time.Time
}

// NewRedisLimiter builds a Redis backed limiter.
func NewRedisLimiter(client redis.Cmdable, rules Rules, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisLimiter{client: client, rules: rules, prefix: prefix, now: time.Now}
}

// Check increments the window counter and sets its expiry in one transaction.
func (l *RedisLimiter) Check(ctx context.Context, identifier, category string) (Result, error) {
	rule, err := l.rules.lookup(category)
	if err != nil {
		return Result{}, err
	}
	start := windowStart(l.now(), rule.Window)
	key := bucketKey(l.prefix, category, identifier, start)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis check %s: %w", key, err)
	}
	return buildResult(rule, incr.Val(), start), nil
}
