package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) RateLimiter {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	limiter := NewWithClient(client, limit, window)
	t.Cleanup(func() { limiter.Close() })
	return limiter
}

func TestAllowUnderLimit(t *testing.T) {
	limiter := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "github")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should pass", i+1)
	}
}

func TestDenyOverLimit(t *testing.T) {
	limiter := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "github")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "github")
	require.NoError(t, err)
	assert.False(t, allowed, "third request must be rejected")
}

func TestKeysAreIndependent(t *testing.T) {
	limiter := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "github")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "gitlab")
	require.NoError(t, err)
	assert.True(t, allowed, "gitlab has its own budget")

	allowed, err = limiter.Allow(ctx, "github")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter, err := NewRedisRateLimiter("", 0, time.Minute, true)
	require.NoError(t, err)
	defer limiter.Close()

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(context.Background(), "anything")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestInvalidRedisURL(t *testing.T) {
	_, err := NewRedisRateLimiter("not-a-valid-url", 100, time.Minute, false)
	assert.Error(t, err)
}

func TestNoOpRateLimiter(t *testing.T) {
	limiter := &NoOpRateLimiter{}

	allowed, err := limiter.Allow(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.NoError(t, limiter.Close())
}
