package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lot is the allocation view of a batch
type Lot struct {
	ID          uuid.UUID
	MedicineID  uuid.UUID
	BatchNumber string
	Available   int64
	ExpiryDate  time.Time
	CreatedAt   time.Time
	Active      bool
}

// LotSelection is one line of an allocation plan
type LotSelection struct {
	BatchID     uuid.UUID `json:"batch_id"`
	BatchNumber string    `json:"batch_number"`
	Quantity    int64     `json:"quantity"`
	ExpiryDate  time.Time `json:"expiry_date"`
}

// LotSelectionContext describes what is being allocated
type LotSelectionContext struct {
	MedicineID uuid.UUID
	Quantity   int64
	// Date is the allocation date. Lots expiring before it are skipped.
	Date time.Time
}

// LotSelectionResult is an ordered plan plus the part that could not be covered
type LotSelectionResult struct {
	Selections []LotSelection `json:"selections"`
	Allocated  int64          `json:"allocated"`
	Shortfall  int64          `json:"shortfall"`
}

// LotSelectionStrategy picks lots to consume for a requested quantity
type LotSelectionStrategy interface {
	Strategy
	SelectLots(ctx context.Context, selCtx LotSelectionContext, lots []Lot) (LotSelectionResult, error)
}
