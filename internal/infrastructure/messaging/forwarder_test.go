package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/config"
	"github.com/pharmaledger/backend/internal/infrastructure/event"
	"github.com/pharmaledger/backend/internal/infrastructure/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, msg)
	return args.Error(0)
}

type stockEvent struct {
	shared.BaseDomainEvent
	Quantity int `json:"quantity"`
}

func newStockEvent() *stockEvent {
	return &stockEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("inventory.batch.received", "Batch", uuid.New()),
		Quantity:        12,
	}
}

func TestEventForwarder_Handle(t *testing.T) {
	t.Run("publishes a persistent message routed by type", func(t *testing.T) {
		pub := new(mockPublisher)
		evt := newStockEvent()
		ctx, _ := logger.WithRequestID(context.Background(), zap.NewNop(), "req-77")

		var sent amqp.Publishing
		pub.On("PublishWithContext", mock.Anything, "pharmacy.events", "inventory.batch.received", mock.Anything).
			Run(func(args mock.Arguments) {
				sent = args.Get(3).(amqp.Publishing)
				_, hasDeadline := args.Get(0).(context.Context).Deadline()
				assert.True(t, hasDeadline)
			}).
			Return(nil)

		f := NewEventForwarder(pub, event.NewEventSerializer(), "pharmacy.events", time.Second, zap.NewNop())
		require.NoError(t, f.Handle(ctx, evt))

		pub.AssertExpectations(t)
		assert.Equal(t, amqp.Persistent, sent.DeliveryMode)
		assert.Equal(t, evt.EventID().String(), sent.MessageId)
		assert.Equal(t, "req-77", sent.CorrelationId)
		assert.Equal(t, "Batch", sent.Headers["aggregate_type"])
		assert.Equal(t, evt.AggregateID().String(), sent.Headers["aggregate_id"])

		var body map[string]any
		require.NoError(t, json.Unmarshal(sent.Body, &body))
		assert.EqualValues(t, 12, body["quantity"])
	})

	t.Run("publish failure is returned", func(t *testing.T) {
		pub := new(mockPublisher)
		pub.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("channel closed"))

		f := NewEventForwarder(pub, event.NewEventSerializer(), "pharmacy.events", 0, zap.NewNop())
		err := f.Handle(context.Background(), newStockEvent())
		assert.ErrorContains(t, err, "channel closed")
	})

	t.Run("receives every event type", func(t *testing.T) {
		f := NewEventForwarder(new(mockPublisher), event.NewEventSerializer(), "x", 0, zap.NewNop())
		assert.Empty(t, f.EventTypes())
		assert.Equal(t, 5*time.Second, f.timeout)
	})
}

func TestDial_Validation(t *testing.T) {
	_, err := Dial(&config.RabbitMQConfig{Exchange: "pharmacy.events"}, zap.NewNop())
	assert.ErrorContains(t, err, "url is required")

	_, err = Dial(&config.RabbitMQConfig{URL: "amqp://localhost"}, zap.NewNop())
	assert.ErrorContains(t, err, "exchange is required")
}
