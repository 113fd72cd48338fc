// Package events defines the domain events emitted by production and closing
// services and the publish/subscribe contract they are delivered through.
package events

import (
	"context"
	"time"

	"fireblue/pkg/logger"
)

// Event types. The same strings are used as Kafka ce_type headers.
const (
	TypeTicketUpdated             = "fireblue.ficha.atualizada"
	TypeClosingGenerated          = "fireblue.fechamento.gerado"
	TypeClosingFinalized          = "fireblue.fechamento.finalizado"
	TypeWorkshopClosingPaid       = "fireblue.fechamento.banca.paga"
	TypeWorkshopClosingCancelled  = "fireblue.fechamento.banca.cancelada"
	TypeWorkshopClosingRecomputed = "fireblue.fechamento.banca.recalculada"
)

// Event is implemented by every domain event.
type Event interface {
	EventType() string
	OccurredAt() time.Time
	// AggregateID is the id of the record the event is about. Used as the Kafka message key.
	AggregateID() string
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Handler consumes one event.
type Handler func(ctx context.Context, event Event) error

// Bus is a Publisher that also accepts subscriptions.
type Bus interface {
	Publisher
	Subscribe(eventType string, handler Handler)
}

// Emit publishes event and logs instead of failing. Services call it after
// commit, when the state change is already durable.
func Emit(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "event publish failed",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}
