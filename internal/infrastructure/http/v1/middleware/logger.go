package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"fireblue/pkg/logger"
)

// Logger middleware logs HTTP requests with timing and status.
// Health probes and /metrics scrapes are logged at debug.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		l := log.WithContext(c.Request.Context())
		write := l.Infow
		switch {
		case status >= 500:
			write = l.Errorw
		case quietPath(c.FullPath()):
			write = l.Debugw
		}
		write("http request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

func quietPath(route string) bool {
	switch route {
	case "/health/live", "/health/ready", "/metrics":
		return true
	}
	return false
}
