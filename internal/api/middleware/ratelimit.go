package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/cache"
)

// LoginRateLimitMiddleware throttles login attempts per client address.
// The counter should be reset by the handler on successful login so a
// user who finally remembers their password is not locked out.
func LoginRateLimitMiddleware(counter *cache.SlidingCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !counter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Too many login attempts, try again later",
				},
			})
			return
		}
		c.Next()
	}
}
