package event

import (
	"github.com/pharmaledger/backend/internal/domain/inventory"
)

// RegisterLedgerEvents registers every ledger event with the serializer.
// The outbox processor cannot deliver an event type that is not registered here.
func RegisterLedgerEvents(serializer *EventSerializer) {
	serializer.Register(inventory.EventTypeBatchReceived, &inventory.BatchReceivedEvent{})
	serializer.Register(inventory.EventTypeBatchAdjusted, &inventory.BatchAdjustedEvent{})
	serializer.Register(inventory.EventTypeBatchExpired, &inventory.BatchExpiredEvent{})
	serializer.Register(inventory.EventTypeBatchRecalled, &inventory.BatchRecalledEvent{})
	serializer.Register(inventory.EventTypeMedicineStockLow, &inventory.MedicineStockLowEvent{})
	serializer.Register(inventory.EventTypeOpnameApproved, &inventory.OpnameApprovedEvent{})
	serializer.Register(inventory.EventTypeDestructionApproved, &inventory.DestructionApprovedEvent{})
}
