package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request. Polling endpoints fire
// multiple times a second per client, so successful GETs log at debug
// and only errors surface at warn.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}
