package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Ledger event type constants
const (
	EventTypeBatchReceived       = "inventory.batch.received"
	EventTypeBatchAdjusted       = "inventory.batch.adjusted"
	EventTypeBatchExpired        = "inventory.batch.expired"
	EventTypeBatchRecalled       = "inventory.batch.recalled"
	EventTypeMedicineStockLow    = "inventory.medicine.stock_low"
	EventTypeOpnameApproved      = "inventory.opname.approved"
	EventTypeDestructionApproved = "inventory.destruction.approved"
)

// BatchReceivedEvent is raised when a new lot enters stock
type BatchReceivedEvent struct {
	shared.BaseDomainEvent
	BatchID     uuid.UUID       `json:"batch_id"`
	MedicineID  uuid.UUID       `json:"medicine_id"`
	BatchNumber string          `json:"batch_number"`
	Code        string          `json:"code"`
	Quantity    int64           `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	ExpiryDate  time.Time       `json:"expiry_date"`
}

// NewBatchReceivedEvent creates a new BatchReceivedEvent
func NewBatchReceivedEvent(b *Batch) *BatchReceivedEvent {
	return &BatchReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchReceived, AggregateTypeBatch, b.ID),
		BatchID:         b.ID,
		MedicineID:      b.MedicineID,
		BatchNumber:     b.BatchNumber,
		Code:            b.Code,
		Quantity:        b.InitialQuantity,
		UnitCost:        b.UnitCost,
		ExpiryDate:      b.ExpiryDate,
	}
}

// BatchAdjustedEvent is raised for every change of available quantity
type BatchAdjustedEvent struct {
	shared.BaseDomainEvent
	BatchID        uuid.UUID   `json:"batch_id"`
	MedicineID     uuid.UUID   `json:"medicine_id"`
	Action         AuditAction `json:"action"`
	Delta          int64       `json:"delta"`
	QuantityBefore int64       `json:"quantity_before"`
	QuantityAfter  int64       `json:"quantity_after"`
	Status         BatchStatus `json:"status"`
	Reason         string      `json:"reason,omitempty"`
}

// NewBatchAdjustedEvent creates a new BatchAdjustedEvent
func NewBatchAdjustedEvent(b *Batch, action AuditAction, before, after int64, reason string) *BatchAdjustedEvent {
	return &BatchAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchAdjusted, AggregateTypeBatch, b.ID),
		BatchID:         b.ID,
		MedicineID:      b.MedicineID,
		Action:          action,
		Delta:           after - before,
		QuantityBefore:  before,
		QuantityAfter:   after,
		Status:          b.Status,
		Reason:          reason,
	}
}

// BatchExpiredEvent is raised when the expiry sweep retires a batch
type BatchExpiredEvent struct {
	shared.BaseDomainEvent
	BatchID    uuid.UUID `json:"batch_id"`
	MedicineID uuid.UUID `json:"medicine_id"`
	Available  int64     `json:"available"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// NewBatchExpiredEvent creates a new BatchExpiredEvent
func NewBatchExpiredEvent(b *Batch) *BatchExpiredEvent {
	return &BatchExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchExpired, AggregateTypeBatch, b.ID),
		BatchID:         b.ID,
		MedicineID:      b.MedicineID,
		Available:       b.AvailableQuantity,
		ExpiryDate:      b.ExpiryDate,
	}
}

// BatchRecalledEvent is raised when a batch is withdrawn
type BatchRecalledEvent struct {
	shared.BaseDomainEvent
	BatchID    uuid.UUID `json:"batch_id"`
	MedicineID uuid.UUID `json:"medicine_id"`
	Available  int64     `json:"available"`
	Reason     string    `json:"reason"`
}

// NewBatchRecalledEvent creates a new BatchRecalledEvent
func NewBatchRecalledEvent(b *Batch, reason string) *BatchRecalledEvent {
	return &BatchRecalledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchRecalled, AggregateTypeBatch, b.ID),
		BatchID:         b.ID,
		MedicineID:      b.MedicineID,
		Available:       b.AvailableQuantity,
		Reason:          reason,
	}
}

// MedicineStockLowEvent is raised when a medicine crosses its minimum
type MedicineStockLowEvent struct {
	shared.BaseDomainEvent
	MedicineID    uuid.UUID `json:"medicine_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	PreviousTotal int64     `json:"previous_total"`
	StockTotal    int64     `json:"stock_total"`
	StockMinimum  int64     `json:"stock_minimum"`
}

// NewMedicineStockLowEvent creates a new MedicineStockLowEvent
func NewMedicineStockLowEvent(m *Medicine, previous int64) *MedicineStockLowEvent {
	return &MedicineStockLowEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMedicineStockLow, AggregateTypeMedicine, m.ID),
		MedicineID:      m.ID,
		Code:            m.Code,
		Name:            m.Name,
		PreviousTotal:   previous,
		StockTotal:      m.StockTotal,
		StockMinimum:    m.StockMinimum,
	}
}

// OpnameApprovedLine is one reconciled batch in OpnameApprovedEvent
type OpnameApprovedLine struct {
	BatchID            uuid.UUID `json:"batch_id"`
	SystemQuantity     int64     `json:"system_quantity"`
	QuantityAtApproval int64     `json:"quantity_at_approval"`
	PhysicalQuantity   int64     `json:"physical_quantity"`
	Drift              bool      `json:"drift"`
}

// OpnameApprovedEvent is raised when counted quantities are applied
type OpnameApprovedEvent struct {
	shared.BaseDomainEvent
	OpnameID   uuid.UUID            `json:"opname_id"`
	Number     string               `json:"number"`
	ApprovedBy uuid.UUID            `json:"approved_by"`
	Lines      []OpnameApprovedLine `json:"lines"`
	Drifted    int                  `json:"drifted"`
}

// NewOpnameApprovedEvent creates a new OpnameApprovedEvent
func NewOpnameApprovedEvent(o *StockOpname) *OpnameApprovedEvent {
	e := &OpnameApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOpnameApproved, AggregateTypeOpname, o.ID),
		OpnameID:        o.ID,
		Number:          o.Number,
		Lines:           make([]OpnameApprovedLine, 0, len(o.Details)),
	}
	if o.ApprovedBy != nil {
		e.ApprovedBy = *o.ApprovedBy
	}
	for _, d := range o.Details {
		line := OpnameApprovedLine{
			BatchID:          d.BatchID,
			SystemQuantity:   d.SystemQuantity,
			PhysicalQuantity: d.PhysicalQuantity,
			Drift:            d.Drift,
		}
		if d.QuantityAtApproval != nil {
			line.QuantityAtApproval = *d.QuantityAtApproval
		}
		if d.Drift {
			e.Drifted++
		}
		e.Lines = append(e.Lines, line)
	}
	return e
}

// DestructionApprovedEvent is raised when destroyed quantities leave stock
type DestructionApprovedEvent struct {
	shared.BaseDomainEvent
	DestructionID uuid.UUID         `json:"destruction_id"`
	Number        string            `json:"number"`
	Reason        DestructionReason `json:"reason"`
	ApprovedBy    uuid.UUID         `json:"approved_by"`
	TotalQuantity int64             `json:"total_quantity"`
	TotalValue    decimal.Decimal   `json:"total_value"`
	BatchIDs      []uuid.UUID       `json:"batch_ids"`
}

// NewDestructionApprovedEvent creates a new DestructionApprovedEvent
func NewDestructionApprovedEvent(d *Destruction) *DestructionApprovedEvent {
	e := &DestructionApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDestructionApproved, AggregateTypeDestruction, d.ID),
		DestructionID:   d.ID,
		Number:          d.Number,
		Reason:          d.Reason,
		TotalQuantity:   d.TotalQuantity(),
		TotalValue:      d.TotalValue(),
		BatchIDs:        d.BatchIDs(),
	}
	if d.ApprovedBy != nil {
		e.ApprovedBy = *d.ApprovedBy
	}
	return e
}
