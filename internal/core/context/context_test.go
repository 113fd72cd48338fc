package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestTrace_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetTrace(ctx))
	assert.Empty(t, GetRequestID(ctx))

	tc := TraceFrom(ctx, "req-1", "")
	ctx = WithTrace(ctx, tc)

	assert.Same(t, tc, GetTrace(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.NotEmpty(t, tc.TraceID)
	assert.Empty(t, tc.SpanID)
}

func TestTraceFrom_PrefersSpan(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02},
		SpanID:  trace.SpanID{0x03},
	})
	require.True(t, sc.IsValid())
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tc := TraceFrom(ctx, "", "ignored")

	assert.Equal(t, sc.TraceID().String(), tc.TraceID)
	assert.Equal(t, sc.SpanID().String(), tc.SpanID)
	assert.NotEmpty(t, tc.RequestID)
}

func TestTraceFrom_KeepsCallerTraceID(t *testing.T) {
	tc := TraceFrom(context.Background(), "r", "abc")
	assert.Equal(t, "abc", tc.TraceID)
}

func TestLogFields(t *testing.T) {
	assert.Empty(t, LogFields(context.Background()))

	ctx := WithTrace(context.Background(), &TraceContext{TraceID: "t", RequestID: "r"})
	ctx = WithOperator(ctx, &Operator{Name: "Marta"})
	assert.Equal(t, []any{"trace_id", "t", "request_id", "r", "operator", "Marta"}, LogFields(ctx))
}

func TestOperatorName(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "sistema", GetOperatorName(ctx))

	ctx = WithOperator(ctx, &Operator{Name: "  "})
	assert.Equal(t, "sistema", GetOperatorName(ctx))

	ctx = WithOperator(ctx, &Operator{Name: "Marta"})
	assert.Equal(t, "Marta", GetOperatorName(ctx))
}
