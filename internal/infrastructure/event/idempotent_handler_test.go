package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newLowStockEvent() shared.DomainEvent {
	return newTestEvent(inventory.EventTypeMedicineStockLow)
}

func TestIdempotentHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers a new event once", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()

		event := newLowStockEvent()
		inner := new(MockEventHandler)
		inner.On("Handle", mock.Anything, event).Return(nil).Once()

		handler := NewIdempotentHandler(inner, store, zap.NewNop())

		for i := 0; i < 3; i++ {
			require.NoError(t, handler.Handle(ctx, event))
		}

		inner.AssertExpectations(t)
		stats := handler.GetMetrics().Stats()
		assert.Equal(t, int64(1), stats.EventsProcessed)
		assert.Equal(t, int64(2), stats.EventsDuplicate)
	})

	t.Run("failed delivery is retried on redelivery", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()

		event := newLowStockEvent()
		brokerDown := errors.New("broker unavailable")
		inner := new(MockEventHandler)
		inner.On("Handle", mock.Anything, event).Return(brokerDown).Once()
		inner.On("Handle", mock.Anything, event).Return(nil).Once()

		handler := NewIdempotentHandler(inner, store, zap.NewNop())

		err := handler.Handle(ctx, event)
		assert.ErrorIs(t, err, brokerDown)

		processed, err := store.IsProcessed(ctx, event.EventID().String())
		require.NoError(t, err)
		assert.False(t, processed)

		require.NoError(t, handler.Handle(ctx, event))

		inner.AssertExpectations(t)
		stats := handler.GetMetrics().Stats()
		assert.Equal(t, int64(1), stats.EventsFailed)
		assert.Equal(t, int64(1), stats.EventsProcessed)
	})

	t.Run("store error still delivers and does not release", func(t *testing.T) {
		event := newLowStockEvent()
		store := new(MockIdempotencyStore)
		store.On("MarkProcessed", mock.Anything, event.EventID().String(), mock.Anything).
			Return(false, errors.New("redis timeout"))

		inner := new(MockEventHandler)
		inner.On("Handle", mock.Anything, event).Return(errors.New("broker unavailable"))

		handler := NewIdempotentHandler(inner, store, zap.NewNop())
		assert.Error(t, handler.Handle(ctx, event))

		store.AssertExpectations(t)
		store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("release error is swallowed", func(t *testing.T) {
		event := newLowStockEvent()
		handlerErr := errors.New("broker unavailable")
		store := new(MockIdempotencyStore)
		store.On("MarkProcessed", mock.Anything, event.EventID().String(), mock.Anything).Return(true, nil)
		store.On("Release", mock.Anything, event.EventID().String()).Return(errors.New("redis timeout"))

		inner := new(MockEventHandler)
		inner.On("Handle", mock.Anything, event).Return(handlerErr)

		handler := NewIdempotentHandler(inner, store, zap.NewNop())
		assert.ErrorIs(t, handler.Handle(ctx, event), handlerErr)
		store.AssertExpectations(t)
	})

	t.Run("disabled passes every delivery through", func(t *testing.T) {
		event := newLowStockEvent()
		store := new(MockIdempotencyStore)
		inner := new(MockEventHandler)
		inner.On("Handle", mock.Anything, event).Return(nil).Times(2)

		handler := NewIdempotentHandler(inner, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{TTL: time.Hour, Enabled: false}),
		)
		require.NoError(t, handler.Handle(ctx, event))
		require.NoError(t, handler.Handle(ctx, event))

		inner.AssertExpectations(t)
		store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, int64(0), handler.GetMetrics().Stats().EventsProcessed)
	})
}

func TestIdempotentHandler_EventTypes(t *testing.T) {
	inner := new(MockEventHandler)
	inner.On("EventTypes").Return([]string{inventory.EventTypeMedicineStockLow})

	handler := NewIdempotentHandler(inner, new(MockIdempotencyStore), zap.NewNop())

	assert.Equal(t, []string{inventory.EventTypeMedicineStockLow}, handler.EventTypes())
}

func TestIdempotentHandler_SharedMetrics(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	metrics := &IdempotencyMetrics{}
	e1, e2 := newLowStockEvent(), newLowStockEvent()

	h1 := new(MockEventHandler)
	h1.On("Handle", mock.Anything, e1).Return(nil)
	h2 := new(MockEventHandler)
	h2.On("Handle", mock.Anything, e2).Return(nil)

	require.NoError(t, NewIdempotentHandler(h1, store, zap.NewNop(), WithIdempotencyMetrics(metrics)).Handle(context.Background(), e1))
	require.NoError(t, NewIdempotentHandler(h2, store, zap.NewNop(), WithIdempotencyMetrics(metrics)).Handle(context.Background(), e2))

	assert.Equal(t, int64(2), metrics.Stats().EventsProcessed)
}

func TestIdempotentHandler_ConcurrentRedelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	event := newTestEvent(inventory.EventTypeBatchAdjusted)
	inner := new(MockEventHandler)
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	const workers = 32
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			errs <- handler.Handle(context.Background(), event)
		}()
	}
	for i := 0; i < workers; i++ {
		assert.NoError(t, <-errs)
	}

	inner.AssertExpectations(t)
	assert.Equal(t, int64(workers-1), handler.GetMetrics().Stats().EventsDuplicate)
}
