package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter counts requests per fixed window in Redis so every
// replica enforces the same limit
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
	now    func() time.Time
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "helpdesk-rbac:ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
		now:    time.Now,
	}
}

// Allow increments the caller's counter for the current window. On a Redis
// error the request is allowed and the error returned.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := rl.now()
	window := rl.config.WindowDuration
	start := now.Truncate(window)
	redisKey := fmt.Sprintf("%s:%s:%d", rl.prefix, key, start.Unix())

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Allowed: true, Limit: rl.config.RequestsPerWindow}, fmt.Errorf("redis error: %w", err)
	}

	count := int(incr.Val())
	result := Result{
		Allowed: count <= rl.config.RequestsPerWindow,
		Limit:   rl.config.RequestsPerWindow,
	}
	if result.Allowed {
		result.Remaining = rl.config.RequestsPerWindow - count
	} else {
		result.RetryAfter = start.Add(window).Sub(now)
	}
	return result, nil
}

// Reset clears the caller's counter for the current window
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	start := rl.now().Truncate(rl.config.WindowDuration)
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s:%d", rl.prefix, key, start.Unix())).Err()
}
