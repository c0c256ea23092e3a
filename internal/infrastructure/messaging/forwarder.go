package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher is the publishing half of an AMQP channel
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Serializer encodes an event body
type Serializer interface {
	Serialize(event shared.DomainEvent) ([]byte, error)
}

// EventForwarder is an event handler that republishes every ledger event
// on a topic exchange, routed by event type (e.g. "inventory.batch.received").
// A failed publish is returned so the outbox retries the event.
type EventForwarder struct {
	publisher  Publisher
	serializer Serializer
	exchange   string
	timeout    time.Duration
	logger     *zap.Logger
}

var _ shared.EventHandler = (*EventForwarder)(nil)

func NewEventForwarder(publisher Publisher, serializer Serializer, exchange string, timeout time.Duration, logger *zap.Logger) *EventForwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EventForwarder{
		publisher:  publisher,
		serializer: serializer,
		exchange:   exchange,
		timeout:    timeout,
		logger:     logger,
	}
}

// EventTypes returns nil: the forwarder receives every event
func (f *EventForwarder) EventTypes() []string {
	return nil
}

func (f *EventForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	body, err := f.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID().String(),
		Type:         event.EventType(),
		Timestamp:    event.OccurredAt(),
		Headers: amqp.Table{
			"aggregate_type": event.AggregateType(),
			"aggregate_id":   event.AggregateID().String(),
		},
		Body: body,
	}
	if id := logger.GetRequestID(ctx); id != "" {
		msg.CorrelationId = id
	}

	if err := f.publisher.PublishWithContext(ctx, f.exchange, event.EventType(), false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType(), err)
	}

	f.logger.Debug("Event forwarded",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", msg.MessageId),
		zap.String("exchange", f.exchange))
	return nil
}
