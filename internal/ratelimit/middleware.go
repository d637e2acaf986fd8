package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"headcanonhub/internal/logging"
	"headcanonhub/internal/metrics"
)

const APIPrefix = "/api/"

// Middleware rejects requests under /api/ once the caller's IP has used up
// its allowance. Other paths pass through untouched. The key is gin's
// ClientIP, so forwarding headers only count from trusted proxies.
func Middleware(krl *KeyedRateLimiter, window time.Duration) gin.HandlerFunc {
	retryAfter := int(math.Ceil(window.Seconds()))
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, APIPrefix) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if krl.Allow(ip) {
			c.Next()
			return
		}

		metrics.RateLimitRejections.Inc()
		logging.Warn().Str("ip", ip).Str("path", c.Request.URL.Path).Msg("rate limit exceeded")

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Rate limit exceeded. Please try again later.",
			"retry_after": retryAfter,
		})
	}
}
