package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var sensitiveHeaders = []string{"authorization", "cookie"}

// scrub returns a copy of h with credential-bearing headers redacted.
func scrub(h http.Header) http.Header {
	clone := h.Clone()
	for k := range clone {
		lk := strings.ToLower(k)
		for _, s := range sensitiveHeaders {
			if strings.Contains(lk, s) {
				clone[k] = []string{"[redacted]"}
			}
		}
	}
	return clone
}

// RequestLogger logs every request once on the way in (debug) and once with
// its outcome. Bodies are never logged.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ce := log.Check(zap.DebugLevel, "request"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("origin", c.GetHeader("Origin")),
				zap.Any("headers", scrub(c.Request.Header)),
			)
		}

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		}

		for _, e := range c.Errors {
			log.Error("handler error", append(fields, zap.Error(e.Err))...)
		}

		switch {
		case c.IsAborted():
			log.Warn("aborted", fields...)
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("completed", fields...)
		default:
			log.Info("completed", fields...)
		}
	}
}
