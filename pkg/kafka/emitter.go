package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/pkg/logger"
)

// Publisher sends one event to a topic. *Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
}

// Emitter stamps events for one aggregate type raised by one service.
type Emitter struct {
	pub           Publisher
	aggregateType string
	source        string
	logger        *slog.Logger
}

func NewEmitter(pub Publisher, aggregateType, source string, log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{pub: pub, aggregateType: aggregateType, source: source, logger: log}
}

// Emit publishes data to topic as an eventType event keyed by aggregateID.
// The request's correlation ID travels with the event.
func (e *Emitter) Emit(ctx context.Context, topic, eventType, aggregateID string, data any) error {
	event, err := NewEvent(eventType, aggregateID, e.aggregateType, e.source, data)
	if err != nil {
		return err
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))
	if err := e.pub.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	e.logger.DebugContext(ctx, "event emitted",
		slog.String("event_type", eventType),
		slog.String(e.aggregateType+"_id", aggregateID),
	)
	return nil
}
