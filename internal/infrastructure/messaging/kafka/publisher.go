// Package kafka publishes domain events to Kafka as CloudEvents-style
// messages in binary mode (ce-* headers, JSON envelope value).
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	appctx "fireblue/internal/core/context"
	"fireblue/internal/core/id"
	"fireblue/internal/domain/events"
	"fireblue/pkg/logger"
)

const (
	specVersion = "1.0"
	contentType = "application/json"
	breakerName = "kafka-publisher"
)

// ErrCircuitOpen is returned while the breaker rejects publishes.
var ErrCircuitOpen = errors.New("kafka publisher unavailable: circuit breaker open")

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Observer receives publish outcomes. *metrics.Metrics implements it.
type Observer interface {
	RecordEventPublished(eventType string, err error)
	SetCircuitBreakerState(name string, state int)
}

// Envelope is the message value.
type Envelope struct {
	SpecVersion     string    `json:"specversion"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	Subject         string    `json:"subject"`
	DataContentType string    `json:"datacontenttype"`
	Data            any       `json:"data"`
}

// Config configures the publisher.
type Config struct {
	Brokers []string
	Topic   string
	// Source is the ce-source of every message, usually the service name.
	Source string

	// Breaker settings. Zero values use the defaults.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Publisher implements events.Publisher over a kafka-go writer guarded by a
// circuit breaker.
type Publisher struct {
	writer   MessageWriter
	source   string
	breaker  *gobreaker.CircuitBreaker
	observer Observer
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher with a synchronous kafka.Writer.
func NewPublisher(cfg Config, observer Observer) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return NewPublisherWithWriter(w, cfg, observer)
}

// NewPublisherWithWriter creates a publisher over any MessageWriter.
func NewPublisherWithWriter(w MessageWriter, cfg Config, observer Observer) *Publisher {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	p := &Publisher{writer: w, source: cfg.Source, observer: observer}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if p.observer != nil {
				p.observer.SetCircuitBreakerState(name, int(to))
			}
		},
	})
	return p
}

// Publish writes one message. The key is the aggregate id so all events of
// one closing land on the same partition.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	msg, err := BuildMessage(ctx, p.source, event)
	if err != nil {
		return err
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrCircuitOpen
	}
	if p.observer != nil {
		p.observer.RecordEventPublished(event.EventType(), err)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}
	return nil
}

// State returns the breaker state.
func (p *Publisher) State() gobreaker.State {
	return p.breaker.State()
}

// Ping reports ErrCircuitOpen while the breaker refuses writes. It does not
// dial the brokers; readiness only needs to know whether events flow.
func (p *Publisher) Ping(context.Context) error {
	if p.breaker.State() == gobreaker.StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// BuildMessage encodes event with its ce-* headers.
func BuildMessage(ctx context.Context, source string, event events.Event) (kafka.Message, error) {
	env := Envelope{
		SpecVersion:     specVersion,
		Type:            event.EventType(),
		Source:          source,
		ID:              id.New().String(),
		Time:            event.OccurredAt().UTC(),
		Subject:         event.AggregateID(),
		DataContentType: contentType,
		Data:            event,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event %s: %w", env.Type, err)
	}

	headers := []kafka.Header{
		{Key: "ce-specversion", Value: []byte(env.SpecVersion)},
		{Key: "ce-type", Value: []byte(env.Type)},
		{Key: "ce-source", Value: []byte(env.Source)},
		{Key: "ce-id", Value: []byte(env.ID)},
		{Key: "ce-time", Value: []byte(env.Time.Format(time.RFC3339))},
		{Key: "ce-subject", Value: []byte(env.Subject)},
		{Key: "content-type", Value: []byte(contentType)},
	}
	if tc := appctx.GetTrace(ctx); tc != nil {
		if tc.TraceID != "" {
			headers = append(headers, kafka.Header{Key: "ce-traceid", Value: []byte(tc.TraceID)})
		}
		if tc.RequestID != "" {
			headers = append(headers, kafka.Header{Key: "ce-requestid", Value: []byte(tc.RequestID)})
		}
	}

	return kafka.Message{
		Key:     []byte(env.Subject),
		Value:   value,
		Headers: headers,
		Time:    env.Time,
	}, nil
}
