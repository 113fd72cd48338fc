package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "fireblue/internal/core/context"
	"fireblue/internal/domain/events"
)

type fakeWriter struct {
	mu     sync.Mutex
	err    error
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeObserver struct {
	published map[string]int
	failed    map[string]int
	states    []int
}

func newObserver() *fakeObserver {
	return &fakeObserver{published: map[string]int{}, failed: map[string]int{}}
}

func (o *fakeObserver) RecordEventPublished(eventType string, err error) {
	if err != nil {
		o.failed[eventType]++
		return
	}
	o.published[eventType]++
}

func (o *fakeObserver) SetCircuitBreakerState(_ string, state int) {
	o.states = append(o.states, state)
}

func generated() *events.ClosingGenerated {
	return &events.ClosingGenerated{
		ClosingID:   "0197b2a0-0000-7000-8000-000000000001",
		Week:        "2025-W26",
		Created:     1,
		TotalPieces: 100,
		TotalValue:  "1000.00",
		GeneratedAt: time.Date(2025, 6, 29, 9, 0, 0, 0, time.UTC),
	}
}

func headerMap(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestPublish_WritesCloudEvent(t *testing.T) {
	w := &fakeWriter{}
	obs := newObserver()
	p := NewPublisherWithWriter(w, Config{Source: "fireblue-api"}, obs)

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	require.NoError(t, p.Publish(ctx, generated()))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "0197b2a0-0000-7000-8000-000000000001", string(msg.Key))

	h := headerMap(msg)
	assert.Equal(t, "1.0", h["ce-specversion"])
	assert.Equal(t, events.TypeClosingGenerated, h["ce-type"])
	assert.Equal(t, "fireblue-api", h["ce-source"])
	assert.Equal(t, "2025-06-29T09:00:00Z", h["ce-time"])
	assert.Equal(t, "application/json", h["content-type"])
	assert.Equal(t, "t-1", h["ce-traceid"])
	assert.Equal(t, "r-1", h["ce-requestid"])
	assert.NotEmpty(t, h["ce-id"])

	var env struct {
		Type    string          `json:"type"`
		Subject string          `json:"subject"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, events.TypeClosingGenerated, env.Type)
	assert.Equal(t, h["ce-subject"], env.Subject)
	assert.JSONEq(t, `{
		"fechamentoId": "0197b2a0-0000-7000-8000-000000000001",
		"semana": "2025-W26",
		"criadas": 1,
		"ignoradas": 0,
		"falhas": 0,
		"totalPecas": 100,
		"valorTotal": "1000.00",
		"geradoEm": "2025-06-29T09:00:00Z"
	}`, string(env.Data))

	assert.Equal(t, 1, obs.published[events.TypeClosingGenerated])
}

func TestPublish_NoTraceHeadersWithoutTrace(t *testing.T) {
	msg, err := BuildMessage(context.Background(), "src", generated())
	require.NoError(t, err)

	h := headerMap(msg)
	assert.NotContains(t, h, "ce-traceid")
	assert.NotContains(t, h, "ce-requestid")
}

func TestPublish_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("broker down")
	w := &fakeWriter{err: boom}
	obs := newObserver()
	p := NewPublisherWithWriter(w, Config{FailureThreshold: 2, OpenTimeout: time.Hour}, obs)

	ctx := context.Background()
	assert.ErrorIs(t, p.Publish(ctx, generated()), boom)
	assert.NoError(t, p.Ping(ctx))
	assert.ErrorIs(t, p.Publish(ctx, generated()), boom)
	assert.Equal(t, gobreaker.StateOpen, p.State())
	assert.ErrorIs(t, p.Ping(ctx), ErrCircuitOpen)

	// Open breaker short-circuits even after the broker recovers.
	w.err = nil
	assert.ErrorIs(t, p.Publish(ctx, generated()), ErrCircuitOpen)
	assert.Empty(t, w.msgs)

	assert.Equal(t, 3, obs.failed[events.TypeClosingGenerated])
	assert.Equal(t, []int{int(gobreaker.StateOpen)}, obs.states)
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w, Config{}, nil)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
