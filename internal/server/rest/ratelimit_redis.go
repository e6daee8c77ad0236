package rest

import (
	"context"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/redis/go-redis/v9"
)

type redisRateLimiter struct {
	client  *redis.Client
	logger  logging.Logger
	prefix  string
	timeout time.Duration
}

// NewRedisRateLimiter shares counters between replicas through Redis. When
// Redis is unreachable after startup the limiter lets requests through.
func NewRedisRateLimiter(ctx context.Context, addr string, logger logging.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return newRedisRateLimiter(client, logger), nil
}

func newRedisRateLimiter(client *redis.Client, logger logging.Logger) *redisRateLimiter {
	return &redisRateLimiter{
		client:  client,
		logger:  logger.With("module", "redis_rate_limiter"),
		prefix:  "anoncommunity:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

func (rl *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) RateDecision {
	if limit <= 0 {
		return RateDecision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logger.Error(ctx, "redis rate limiter error", "op", "incr", "error", err)
		return RateDecision{Allowed: true}
	}

	// A key without expiry (first hit, or an earlier EXPIRE that failed)
	// gets one now; otherwise the counter would never reset.
	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	if err != nil {
		rl.logger.Error(ctx, "redis rate limiter error", "op", "ttl", "error", err)
		ttl = window
	} else if ttl < 0 {
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			rl.logger.Error(ctx, "redis rate limiter error", "op", "expire", "error", err)
		}
		ttl = window
	}
	return RateDecision{
		Allowed:   int(counter) <= limit,
		Count:     int(counter),
		WindowEnd: time.Now().Add(ttl),
	}
}

func (rl *redisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}
