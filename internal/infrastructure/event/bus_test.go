package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New()),
		Data:            "test data",
	}
}

// testHandler records what it receives and fails with err when set
type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) setError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to handlers of the event type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := newTestHandler("TestEvent")
		other := newTestHandler("OtherEvent")
		bus.Subscribe(handler)
		bus.Subscribe(other)

		event := newTestEvent("TestEvent")
		require.NoError(t, bus.Publish(ctx, event, newTestEvent("TestEvent")))

		require.Len(t, handler.getHandled(), 2)
		assert.Equal(t, event, handler.getHandled()[0])
		assert.Empty(t, other.getHandled())
	})

	t.Run("wildcard handler receives every type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		wildcard := newTestHandler()
		bus.Subscribe(wildcard)

		require.NoError(t, bus.Publish(ctx, newTestEvent("A"), newTestEvent("B")))
		assert.Len(t, wildcard.getHandled(), 2)
	})

	t.Run("explicit types override the handler's own", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := newTestHandler("TestEvent")
		bus.Subscribe(handler, "OtherEvent")

		require.NoError(t, bus.Publish(ctx, newTestEvent("TestEvent")))
		assert.Empty(t, handler.getHandled())
	})

	t.Run("handler error is returned after all handlers ran", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := newTestHandler("TestEvent")
		failing.setError(errors.New("broker down"))
		healthy := newTestHandler("TestEvent")
		bus.Subscribe(failing)
		bus.Subscribe(healthy)

		err := bus.Publish(ctx, newTestEvent("TestEvent"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
		assert.Len(t, failing.getHandled(), 1)
		assert.Len(t, healthy.getHandled(), 1)
	})

	t.Run("handler panic becomes an error", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := newTestHandler("TestEvent")
		handler.panicWith = "boom"
		bus.Subscribe(handler)

		err := bus.Publish(ctx, newTestEvent("TestEvent"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(newTestHandler("TestEvent"))

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Stop(context.Background()))
}

func TestHandlerRegistry(t *testing.T) {
	registry := NewHandlerRegistry()
	typed := newTestHandler()
	wildcard := newTestHandler()

	registry.Register(typed, "A", "B")
	registry.Register(wildcard)

	assert.Equal(t, 3, registry.Count())
	assert.Equal(t, []shared.EventHandler{typed, wildcard}, registry.GetHandlers("A"))
	assert.Equal(t, []shared.EventHandler{wildcard}, registry.GetHandlers("C"))
}
