package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "fireblue/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Trace attaches a TraceContext to the request and echoes its ids back.
// Mount it after otelgin so the span's trace id is picked up.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := appctx.TraceFrom(c.Request.Context(), c.GetHeader(HeaderRequestID), c.GetHeader(HeaderTraceID))
		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), tc))

		c.Set("trace_id", tc.TraceID)
		c.Set("request_id", tc.RequestID)

		c.Header(HeaderRequestID, tc.RequestID)
		c.Header(HeaderTraceID, tc.TraceID)

		c.Next()
	}
}
