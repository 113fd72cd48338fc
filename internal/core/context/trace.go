// Package context carries request-scoped metadata through service calls.
package context

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"fireblue/internal/core/id"
)

// TraceContext correlates log lines, audit entries and published events
// of one request.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// TraceFrom builds the TraceContext of an incoming call. A valid span in ctx
// wins over traceID so exported spans and log lines share one id. Empty ids
// are generated.
func TraceFrom(ctx context.Context, requestID, traceID string) *TraceContext {
	tc := &TraceContext{RequestID: requestID}
	if tc.RequestID == "" {
		tc.RequestID = id.New().String()
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		tc.TraceID = sc.TraceID().String()
		tc.SpanID = sc.SpanID().String()
		return tc
	}

	tc.TraceID = traceID
	if tc.TraceID == "" {
		tc.TraceID = id.New().String()
	}
	return tc
}

// LogFields returns the trace and operator key/value pairs present in ctx.
func LogFields(ctx context.Context) []any {
	var kv []any
	if t := GetTrace(ctx); t != nil {
		kv = append(kv, "trace_id", t.TraceID, "request_id", t.RequestID)
	}
	if op := GetOperator(ctx); op != nil {
		kv = append(kv, "operator", op.Name)
	}
	return kv
}
