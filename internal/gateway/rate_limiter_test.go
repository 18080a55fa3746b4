package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
)

func newTestLimiter(requestsPerMin, burst int) (*BucketLimiter, *time.Time) {
	limiter := NewBucketLimiter(&config.RateLimitConfig{
		RequestsPerMin: requestsPerMin,
		BurstSize:      burst,
	})

	current := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }
	return limiter, &current
}

func TestBucketLimiter_AllowsBurstThenRefuses(t *testing.T) {
	limiter, _ := newTestLimiter(60, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestBucketLimiter_RecoversAfterRefill(t *testing.T) {
	limiter, clock := newTestLimiter(60, 2)
	ctx := context.Background()

	limiter.Allow(ctx, "user-1")
	limiter.Allow(ctx, "user-1")

	allowed, _ := limiter.Allow(ctx, "user-1")
	assert.False(t, allowed)

	// At 60 requests per minute one token returns every second.
	*clock = clock.Add(time.Second)
	allowed, _ = limiter.Allow(ctx, "user-1")
	assert.True(t, allowed)

	allowed, _ = limiter.Allow(ctx, "user-1")
	assert.False(t, allowed)
}

func TestBucketLimiter_RefillNeverExceedsBurst(t *testing.T) {
	limiter, clock := newTestLimiter(60, 3)
	ctx := context.Background()

	*clock = clock.Add(time.Hour)

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow(ctx, "user-1")
		assert.True(t, allowed)
	}
	allowed, _ := limiter.Allow(ctx, "user-1")
	assert.False(t, allowed)
}

func TestBucketLimiter_UsersAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(60, 1)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "user-1")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "user-1")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow(ctx, "user-2")
	assert.True(t, allowed)
}

func TestBucketLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	limiter, clock := newTestLimiter(60, 5)
	ctx := context.Background()

	limiter.Allow(ctx, "user-1")
	assert.Len(t, limiter.buckets, 1)

	*clock = clock.Add(24 * time.Hour)
	limiter.cleanup()
	assert.Empty(t, limiter.buckets)
}

func TestBucketLimiter_DefaultsApplied(t *testing.T) {
	limiter := NewBucketLimiter(&config.RateLimitConfig{})

	assert.InDelta(t, 100.0/60.0, limiter.rate, 0.001)
	assert.Equal(t, 10.0, limiter.burst)
}
