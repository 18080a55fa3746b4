package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
)

// RedisLimiter implements per-user rate limiting on a shared Redis instance
// so the limit holds across multiple API replicas. It counts requests in
// fixed one-minute windows.
type RedisLimiter struct {
	client         *redis.Client
	requestsPerMin int
	now            func() time.Time
}

// NewRedisLimiter creates a Redis-backed rate limiter
func NewRedisLimiter(redisCfg *config.RedisConfig, limitCfg *config.RateLimitConfig) *RedisLimiter {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", redisCfg.Host, redisCfg.Port),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
		PoolSize: redisCfg.PoolSize,
	})

	requestsPerMin := limitCfg.RequestsPerMin
	if requestsPerMin <= 0 {
		requestsPerMin = 100
	}

	return &RedisLimiter{
		client:         client,
		requestsPerMin: requestsPerMin,
		now:            time.Now,
	}
}

// Allow increments the counter for the current window and reports whether the
// caller is still under the limit
func (l *RedisLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	window := l.now().Unix() / 60
	key := fmt.Sprintf("ratelimit:%s:%d", userID, window)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		// Keep the key past the window edge so clock skew between replicas
		// cannot orphan counters.
		l.client.Expire(ctx, key, 2*time.Minute)
	}

	return count <= int64(l.requestsPerMin), nil
}

// Close releases the Redis connection pool
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// Ping verifies the Redis connection
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
