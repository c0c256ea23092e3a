package batch

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/domain/shared/strategy"
)

// FEFOBatchStrategy implements First Expired First Out lot selection.
// Lots are consumed by ascending expiry date; equal expiries fall back to
// creation time and then to the lot id so that a plan is reproducible.
type FEFOBatchStrategy struct {
	strategy.BaseStrategy
}

// NewFEFOBatchStrategy creates a new FEFO batch strategy
func NewFEFOBatchStrategy() *FEFOBatchStrategy {
	return &FEFOBatchStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fefo",
			strategy.StrategyTypeBatch,
			"First Expired First Out - selects batches by expiry date (earliest expiry first)",
		),
	}
}

// SelectLots plans consumption of selCtx.Quantity over the given lots.
// It never mutates the input and never fails on a shortfall; the uncovered
// remainder is returned in the result.
func (s *FEFOBatchStrategy) SelectLots(
	ctx context.Context,
	selCtx strategy.LotSelectionContext,
	lots []strategy.Lot,
) (strategy.LotSelectionResult, error) {
	if selCtx.Quantity <= 0 {
		return strategy.LotSelectionResult{}, shared.NewValidationError("requested quantity must be positive")
	}

	filtered := filterAllocatable(lots, selCtx.MedicineID, selCtx.Date)
	SortFEFO(filtered)

	return selectFromLots(filtered, selCtx.Quantity), nil
}

// SortFEFO orders lots by expiry date, then creation time, then id
func SortFEFO(lots []strategy.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}

// filterAllocatable keeps active lots of the medicine with stock left that
// have not expired as of date
func filterAllocatable(lots []strategy.Lot, medicineID uuid.UUID, date time.Time) []strategy.Lot {
	if date.IsZero() {
		date = time.Now()
	}

	filtered := make([]strategy.Lot, 0, len(lots))
	for _, l := range lots {
		if !l.Active || l.Available <= 0 {
			continue
		}
		if l.MedicineID != medicineID {
			continue
		}
		if l.ExpiryDate.Before(date) {
			continue
		}
		filtered = append(filtered, l)
	}
	return filtered
}

func selectFromLots(lots []strategy.Lot, quantity int64) strategy.LotSelectionResult {
	remaining := quantity
	selections := make([]strategy.LotSelection, 0)
	var allocated int64

	for _, lot := range lots {
		if remaining <= 0 {
			break
		}

		take := min(remaining, lot.Available)
		selections = append(selections, strategy.LotSelection{
			BatchID:     lot.ID,
			BatchNumber: lot.BatchNumber,
			Quantity:    take,
			ExpiryDate:  lot.ExpiryDate,
		})

		remaining -= take
		allocated += take
	}

	return strategy.LotSelectionResult{
		Selections: selections,
		Allocated:  allocated,
		Shortfall:  remaining,
	}
}
