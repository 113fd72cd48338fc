package events

import (
	"context"

	"fireblue/pkg/logger"
)

// LogHandler writes every delivered event to log at debug level, with the
// request's trace fields.
func LogHandler(log *logger.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		log.WithContext(ctx).Debugw("event published",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"occurred_at", event.OccurredAt(),
		)
		return nil
	}
}
