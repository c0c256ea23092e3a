package event

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer_Register(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})

	assert.True(t, serializer.IsRegistered("TestEvent"))
	assert.False(t, serializer.IsRegistered("UnknownEvent"))
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})
	event := newTestEvent("TestEvent")

	data, err := serializer.Serialize(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data":"test data"`)

	decoded, err := serializer.Deserialize("TestEvent", data)
	require.NoError(t, err)
	typed, ok := decoded.(*testEvent)
	require.True(t, ok)
	assert.Equal(t, event.EventID(), typed.EventID())
	assert.Equal(t, event.AggregateID(), typed.AggregateID())
	assert.Equal(t, "test data", typed.Data)
}

func TestEventSerializer_DeserializeErrors(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})

	t.Run("unknown type", func(t *testing.T) {
		_, err := serializer.Deserialize("UnknownEvent", []byte(`{}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown event type")
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := serializer.Deserialize("TestEvent", []byte(`{not json`))
		require.Error(t, err)
	})
}

func TestRegisterLedgerEvents(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterLedgerEvents(serializer)

	assert.Equal(t, []string{
		inventory.EventTypeBatchAdjusted,
		inventory.EventTypeBatchExpired,
		inventory.EventTypeBatchRecalled,
		inventory.EventTypeBatchReceived,
		inventory.EventTypeDestructionApproved,
		inventory.EventTypeMedicineStockLow,
		inventory.EventTypeOpnameApproved,
	}, serializer.RegisteredTypes())

	t.Run("adjustment survives the outbox", func(t *testing.T) {
		batch := &inventory.Batch{
			BaseAggregateRoot: shared.NewBaseAggregateRoot(),
			MedicineID:        uuid.New(),
			Status:            inventory.BatchStatusActive,
		}
		event := inventory.NewBatchAdjustedEvent(batch, inventory.AuditActionDispensed, 10, 7, "ward request")

		data, err := serializer.Serialize(event)
		require.NoError(t, err)

		decoded, err := serializer.Deserialize(event.EventType(), data)
		require.NoError(t, err)
		adjusted, ok := decoded.(*inventory.BatchAdjustedEvent)
		require.True(t, ok)
		assert.Equal(t, event.EventID(), adjusted.EventID())
		assert.Equal(t, batch.ID, adjusted.BatchID)
		assert.Equal(t, int64(-3), adjusted.Delta)
		assert.Equal(t, inventory.AuditActionDispensed, adjusted.Action)
	})
}
