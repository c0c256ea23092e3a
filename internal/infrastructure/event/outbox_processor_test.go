package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memOutboxRepository keeps entries in a map
type memOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*shared.OutboxEntry
	deleted []time.Time
}

func newMemOutboxRepository() *memOutboxRepository {
	return &memOutboxRepository{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *memOutboxRepository) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memOutboxRepository) byStatus(status shared.OutboxStatus, keep func(*shared.OutboxEntry) bool, limit int) []*shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == status && keep(e) && len(result) < limit {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result
}

func (r *memOutboxRepository) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.byStatus(shared.OutboxStatusPending, func(*shared.OutboxEntry) bool { return true }, limit), nil
}

func (r *memOutboxRepository) FindRetryable(_ context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.byStatus(shared.OutboxStatusFailed, func(e *shared.OutboxEntry) bool {
		return e.NextRetryAt != nil && !e.NextRetryAt.After(before)
	}, limit), nil
}

func (r *memOutboxRepository) MarkProcessing(_ context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.entries[id]; ok && e.MarkProcessing() == nil {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *memOutboxRepository) Update(_ context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

func (r *memOutboxRepository) DeleteSentBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, before)
	var n int64
	for id, e := range r.entries {
		if e.Status == shared.OutboxStatusSent && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *memOutboxRepository) get(id uuid.UUID) shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[id]
}

func newProcessorFixture(t *testing.T) (*OutboxProcessor, *memOutboxRepository, *testHandler, *EventSerializer) {
	t.Helper()
	logger := zap.NewNop()
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})

	bus := NewInMemoryEventBus(logger)
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	repo := newMemOutboxRepository()
	config := OutboxProcessorConfig{BatchSize: 10, PollInterval: 20 * time.Millisecond}
	return NewOutboxProcessor(repo, bus, serializer, config, logger), repo, handler, serializer
}

func enqueue(t *testing.T, repo *memOutboxRepository, serializer *EventSerializer, eventType string) *shared.OutboxEntry {
	t.Helper()
	event := newTestEvent(eventType)
	payload, err := serializer.Serialize(event)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(event, payload)
	require.NoError(t, repo.Save(context.Background(), entry))
	return entry
}

func TestOutboxProcessor_ProcessOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers pending entries and marks them sent", func(t *testing.T) {
		processor, repo, handler, serializer := newProcessorFixture(t)
		entry := enqueue(t, repo, serializer, "TestEvent")

		processor.ProcessOnce(ctx)

		require.Len(t, handler.getHandled(), 1)
		assert.Equal(t, entry.EventID, handler.getHandled()[0].EventID())
		stored := repo.get(entry.ID)
		assert.Equal(t, shared.OutboxStatusSent, stored.Status)
		assert.NotNil(t, stored.ProcessedAt)
	})

	t.Run("handler failure schedules a retry", func(t *testing.T) {
		processor, repo, handler, serializer := newProcessorFixture(t)
		handler.setError(errors.New("broker unavailable"))
		entry := enqueue(t, repo, serializer, "TestEvent")

		processor.ProcessOnce(ctx)

		stored := repo.get(entry.ID)
		assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
		assert.Equal(t, 1, stored.RetryCount)
		assert.Contains(t, stored.LastError, "broker unavailable")
		require.NotNil(t, stored.NextRetryAt)
	})

	t.Run("unknown event type fails the entry", func(t *testing.T) {
		processor, repo, _, serializer := newProcessorFixture(t)
		entry := enqueue(t, repo, serializer, "UnregisteredEvent")

		processor.ProcessOnce(ctx)

		stored := repo.get(entry.ID)
		assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
		assert.Contains(t, stored.LastError, "unknown event type")
	})

	t.Run("last retry moves the entry to dead", func(t *testing.T) {
		processor, repo, handler, serializer := newProcessorFixture(t)
		handler.setError(errors.New("still down"))
		entry := enqueue(t, repo, serializer, "TestEvent")
		past := time.Now().Add(-time.Minute)
		entry.Status = shared.OutboxStatusFailed
		entry.RetryCount = shared.DefaultMaxRetries - 1
		entry.NextRetryAt = &past
		require.NoError(t, repo.Update(ctx, entry))

		processor.ProcessOnce(ctx)

		stored := repo.get(entry.ID)
		assert.True(t, stored.IsDead())
		assert.Nil(t, stored.NextRetryAt)
	})
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	processor, repo, handler, serializer := newProcessorFixture(t)
	enqueue(t, repo, serializer, "TestEvent")

	require.NoError(t, processor.Start(context.Background()))
	assert.Eventually(t, func() bool { return len(handler.getHandled()) == 1 }, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Stop(stopCtx))
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	processor, repo, _, serializer := newProcessorFixture(t)
	processor.config.CleanupRetention = time.Hour

	old := enqueue(t, repo, serializer, "TestEvent")
	old.MarkSent()
	longAgo := time.Now().Add(-2 * time.Hour)
	old.ProcessedAt = &longAgo
	require.NoError(t, repo.Update(context.Background(), old))
	fresh := enqueue(t, repo, serializer, "TestEvent")

	processor.cleanup(context.Background())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.NotContains(t, repo.entries, old.ID)
	assert.Contains(t, repo.entries, fresh.ID)
	require.Len(t, repo.deleted, 1)
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
	assert.Equal(t, time.Hour, config.CleanupInterval)
}
