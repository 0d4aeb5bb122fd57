package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/auth-session-api/internal/service"
	"github.com/noah-isme/auth-session-api/pkg/response"
)

// RateLimit applies policy to route, keyed by client address. A nil limiter disables the check.
func RateLimit(limiter *service.RateLimiter, route string, policy service.RatePolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result := limiter.Allow(c.Request.Context(), service.ClientKey(c.Request), route, policy)
		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			response.RateLimited(c, int(result.RetryAfter/time.Second))
			return
		}
		c.Next()
	}
}
