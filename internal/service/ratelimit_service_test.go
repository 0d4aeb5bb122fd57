package service

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimiter(client, RateLimitConfig{Prefix: "rl"}, NewMetricsService(), zap.NewNop()), mr
}

func TestRateLimiterStrictPolicy(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()
	policy := limiter.Policies().Strict
	require.Equal(t, 5, policy.Limit)

	for i := 1; i <= 5; i++ {
		res := limiter.Allow(ctx, "1.2.3.4", "signin", policy)
		require.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, int64(i), res.Count)
		assert.Equal(t, 5-i, res.Remaining)
		assert.False(t, res.Degraded)
	}

	res := limiter.Allow(ctx, "1.2.3.4", "signin", policy)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Minute)

	ttl := mr.TTL("rl:1.2.3.4:signin")
	assert.Greater(t, ttl, time.Duration(0))

	other := limiter.Allow(ctx, "5.6.7.8", "signin", policy)
	assert.True(t, other.Allowed)
	otherRoute := limiter.Allow(ctx, "1.2.3.4", "signup", policy)
	assert.True(t, otherRoute.Allowed)

	mr.FastForward(61 * time.Second)
	res = limiter.Allow(ctx, "1.2.3.4", "signin", policy)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Count)
}

func TestRateLimiterFallsBackToMemory(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	mr.Close()
	ctx := context.Background()
	policy := RatePolicy{Limit: 2, Window: 100 * time.Millisecond}

	first := limiter.Allow(ctx, "9.9.9.9", "signup", policy)
	assert.True(t, first.Allowed)
	assert.True(t, first.Degraded)
	assert.True(t, limiter.Degraded())

	second := limiter.Allow(ctx, "9.9.9.9", "signup", policy)
	assert.True(t, second.Allowed)

	third := limiter.Allow(ctx, "9.9.9.9", "signup", policy)
	assert.False(t, third.Allowed)
	assert.True(t, third.Degraded)
	assert.Greater(t, third.RetryAfter, time.Duration(0))

	time.Sleep(150 * time.Millisecond)
	again := limiter.Allow(ctx, "9.9.9.9", "signup", policy)
	assert.True(t, again.Allowed)
	assert.Equal(t, int64(1), again.Count)
}

func TestRateLimiterWithoutRedis(t *testing.T) {
	limiter := NewRateLimiter(nil, RateLimitConfig{}, nil, nil)
	policy := RatePolicy{Limit: 1, Window: time.Minute}

	assert.True(t, limiter.Allow(context.Background(), "k", "r", policy).Allowed)
	res := limiter.Allow(context.Background(), "k", "r", policy)
	assert.False(t, res.Allowed)
	assert.True(t, res.Degraded)
}

func TestRateLimiterDefaults(t *testing.T) {
	limiter := NewRateLimiter(nil, RateLimitConfig{}, nil, nil)
	p := limiter.Policies()
	assert.Equal(t, 5, p.Strict.Limit)
	assert.Equal(t, 100, p.Moderate.Limit)
	assert.Equal(t, 60, p.Default.Limit)
	assert.Equal(t, time.Minute, p.Default.Window)
	assert.Equal(t, time.Minute, limiter.retryAfter(0))
	assert.Equal(t, 2*time.Second, limiter.retryAfter(1500*time.Millisecond))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/signin", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	assert.Equal(t, "203.0.113.7", ClientKey(req))
}
