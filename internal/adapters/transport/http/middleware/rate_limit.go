package middleware

import (
	"net"
	"net/http"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimitPerIP answers 429 once the client address has used up its bucket.
func RateLimitPerIP(l *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}

		if !l.Allow(host) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
