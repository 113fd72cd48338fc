package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// LocalBus delivers events synchronously to in-process subscribers.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

var _ Bus = (*LocalBus)(nil)

// NewLocalBus creates an empty bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]Handler)}
}

// Subscribe registers handler for eventType, or for all events with Wildcard.
func (b *LocalBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish calls every matching handler in subscription order.
// All handlers run; their errors are joined.
func (b *LocalBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[event.EventType()])+len(b.handlers[Wildcard]))
	targets = append(targets, b.handlers[event.EventType()]...)
	targets = append(targets, b.handlers[Wildcard]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", event.EventType(), err))
		}
	}
	return errors.Join(errs...)
}

// Fanout publishes to several publishers; one failing does not stop the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
