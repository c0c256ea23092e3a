package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
)

// RecordingEventHandler keeps every event it receives and can be told to fail
type RecordingEventHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

func NewRecordingEventHandler(eventTypes ...string) *RecordingEventHandler {
	return &RecordingEventHandler{eventTypes: eventTypes}
}

func (h *RecordingEventHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *RecordingEventHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.handled = append(h.handled, event)
	return nil
}

// Handled returns a copy of the accepted events
func (h *RecordingEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]shared.DomainEvent, len(h.handled))
	copy(out, h.handled)
	return out
}

// HandledOfType counts accepted events of one type
func (h *RecordingEventHandler) HandledOfType(eventType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.handled {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

// FailWith makes Handle reject events with err; nil accepts them again
func (h *RecordingEventHandler) FailWith(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// TestEvent is a minimal domain event
type TestEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

// NewTestEvent creates an event of eventType on a fresh batch aggregate
func NewTestEvent(eventType string) *TestEvent {
	return &TestEvent{
		BaseDomainEvent: shared.BaseDomainEvent{
			ID:        uuid.New(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			AggID:     uuid.New(),
			AggType:   "Batch",
		},
		Data: "test-data",
	}
}

// WaitForEvents waits until handler accepted at least n events of eventType
func WaitForEvents(t *testing.T, handler *RecordingEventHandler, eventType string, n int, timeout time.Duration) {
	t.Helper()
	RequireEventually(t, func() bool {
		return handler.HandledOfType(eventType) >= n
	}, timeout, 10*time.Millisecond, "waiting for %d %s events", n, eventType)
}
