package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"fireblue/internal/infrastructure/metrics"
)

// Metrics records request count, latency and in-flight requests. The path
// label is the route template, never the raw URL, to bound cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
