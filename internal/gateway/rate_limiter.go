package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
)

// RateLimiter decides whether a caller may issue another request
type RateLimiter interface {
	Allow(ctx context.Context, userID string) (bool, error)
}

// BucketLimiter implements per-user rate limiting with the token bucket
// algorithm. Each user gets a bucket holding up to burst tokens that refills
// at the configured per-minute rate.
type BucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64 // tokens per second
	burst   float64
	now     func() time.Time
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewBucketLimiter creates an in-memory rate limiter from the shared
// rate-limit configuration
func NewBucketLimiter(cfg *config.RateLimitConfig) *BucketLimiter {
	requestsPerMin := cfg.RequestsPerMin
	if requestsPerMin <= 0 {
		requestsPerMin = 100
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 10
	}

	return &BucketLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    float64(requestsPerMin) / 60.0,
		burst:   float64(burst),
		now:     time.Now,
	}
}

// Allow consumes one token from the user's bucket, reporting false when the
// bucket is empty. Never returns an error; the signature matches the shared
// store variant.
func (l *BucketLimiter) Allow(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, exists := l.buckets[userID]
	if !exists {
		bucket = &tokenBucket{tokens: l.burst, lastRefill: now}
		l.buckets[userID] = bucket
	}

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	if elapsed > 0 {
		bucket.tokens += elapsed * l.rate
		if bucket.tokens > l.burst {
			bucket.tokens = l.burst
		}
		bucket.lastRefill = now
	}

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, nil
	}
	return false, nil
}

// StartCleanup periodically drops buckets that have been idle long enough to
// be full again. Stops when the context is cancelled.
func (l *BucketLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

func (l *BucketLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	// An idle bucket refills completely after burst/rate seconds; anything
	// older carries no state worth keeping.
	idle := time.Duration(l.burst/l.rate) * time.Second
	cutoff := l.now().Add(-2 * idle)

	for userID, bucket := range l.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(l.buckets, userID)
		}
	}
}
