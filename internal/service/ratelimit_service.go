package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedWindowScript increments the counter and starts the window on the first hit.
// It returns the count and the remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RatePolicy is a fixed-window quota.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

// RatePolicies groups the quotas applied per route class.
type RatePolicies struct {
	Strict   RatePolicy
	Moderate RatePolicy
	Default  RatePolicy
}

// RateResult describes one limiter decision.
type RateResult struct {
	Allowed    bool
	Count      int64
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Degraded   bool
}

// RateLimitConfig configures RateLimiter.
type RateLimitConfig struct {
	Prefix     string
	RetryAfter time.Duration
	Policies   RatePolicies
}

// RateLimiter counts requests per client and route in fixed windows. Counters
// live in Redis; when Redis is unreachable the limiter keeps the same semantics
// on a per-process store and flags results as degraded.
type RateLimiter struct {
	client   redis.UniversalClient
	memory   *gocache.Cache
	config   RateLimitConfig
	metrics  *MetricsService
	logger   *zap.Logger
	degraded atomic.Bool
	now      func() time.Time
}

// NewRateLimiter constructs a limiter. client may be nil, in which case every check is served from memory.
func NewRateLimiter(client redis.UniversalClient, config RateLimitConfig, metrics *MetricsService, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Prefix == "" {
		config.Prefix = "rl"
	}
	if config.RetryAfter <= 0 {
		config.RetryAfter = time.Minute
	}
	config.Policies = config.Policies.withDefaults()
	return &RateLimiter{
		client:  client,
		memory:  gocache.New(config.Policies.Default.Window, 2*config.Policies.Default.Window),
		config:  config,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

func (p RatePolicies) withDefaults() RatePolicies {
	fill := func(policy RatePolicy, limit int) RatePolicy {
		if policy.Limit <= 0 {
			policy.Limit = limit
		}
		if policy.Window <= 0 {
			policy.Window = time.Minute
		}
		return policy
	}
	p.Strict = fill(p.Strict, 5)
	p.Moderate = fill(p.Moderate, 100)
	p.Default = fill(p.Default, 60)
	return p
}

// Policies returns the effective quotas.
func (l *RateLimiter) Policies() RatePolicies {
	return l.config.Policies
}

// Allow counts one request from clientKey on route against policy.
func (l *RateLimiter) Allow(ctx context.Context, clientKey, route string, policy RatePolicy) RateResult {
	key := fmt.Sprintf("%s:%s:%s", l.config.Prefix, clientKey, route)

	count, ttl, err := l.incrementRedis(ctx, key, policy.Window)
	degraded := false
	if err != nil {
		degraded = true
		if l.degraded.CompareAndSwap(false, true) {
			l.logger.Warn("rate limiter falling back to in-process counters", zap.Error(err))
		}
		count, ttl = l.incrementMemory(key, policy.Window)
	} else if l.degraded.CompareAndSwap(true, false) {
		l.logger.Info("rate limiter redis store recovered")
	}

	result := RateResult{
		Count:    count,
		Limit:    policy.Limit,
		Allowed:  count <= int64(policy.Limit),
		Degraded: degraded,
	}
	if remaining := policy.Limit - int(count); remaining > 0 {
		result.Remaining = remaining
	}
	if !result.Allowed {
		result.RetryAfter = l.retryAfter(ttl)
	}
	l.metrics.RecordRateLimit(route, result.Allowed, degraded)
	return result
}

// Degraded reports whether the last decision was served from memory.
func (l *RateLimiter) Degraded() bool {
	return l.degraded.Load()
}

func (l *RateLimiter) incrementRedis(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if l.client == nil {
		return 0, 0, errors.New("redis client not configured")
	}
	raw, err := fixedWindowScript.Run(ctx, l.client, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(raw) != 2 {
		return 0, 0, fmt.Errorf("unexpected script reply %v", raw)
	}
	count, ok := raw[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected count type %T", raw[0])
	}
	ttl, _ := raw[1].(int64)
	return count, time.Duration(ttl) * time.Millisecond, nil
}

func (l *RateLimiter) incrementMemory(key string, window time.Duration) (int64, time.Duration) {
	var count int64
	for attempt := 0; attempt < 3; attempt++ {
		if err := l.memory.Add(key, int64(1), window); err == nil {
			count = 1
			break
		}
		n, err := l.memory.IncrementInt64(key, 1)
		if err == nil {
			count = n
			break
		}
	}
	if count == 0 {
		// Lost every race against expiry; count this hit as the first of a new window.
		l.memory.Set(key, int64(1), window)
		count = 1
	}
	_, expiresAt, found := l.memory.GetWithExpiration(key)
	if !found || expiresAt.IsZero() {
		return count, window
	}
	return count, expiresAt.Sub(l.now())
}

func (l *RateLimiter) retryAfter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return l.config.RetryAfter
	}
	return time.Duration(math.Ceil(ttl.Seconds())) * time.Second
}

// ClientKey identifies the caller: the first X-Forwarded-For hop when present, else the remote IP.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
