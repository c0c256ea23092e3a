package batch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/domain/shared/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func TestFEFOBatchStrategy_SelectLots(t *testing.T) {
	s := NewFEFOBatchStrategy()
	ctx := context.Background()
	now := time.Now().UTC()
	medicineID := uuid.New()

	b1 := strategy.Lot{ID: uuid.New(), MedicineID: medicineID, BatchNumber: "B1", Available: 5, ExpiryDate: now.Add(day(10)), CreatedAt: now, Active: true}
	b2 := strategy.Lot{ID: uuid.New(), MedicineID: medicineID, BatchNumber: "B2", Available: 5, ExpiryDate: now.Add(day(20)), CreatedAt: now, Active: true}
	b3 := strategy.Lot{ID: uuid.New(), MedicineID: medicineID, BatchNumber: "B3", Available: 5, ExpiryDate: now.Add(day(30)), CreatedAt: now, Active: true}
	lots := []strategy.Lot{b3, b1, b2}

	t.Run("takes the earliest expiry first and splits the next lot", func(t *testing.T) {
		result, err := s.SelectLots(ctx, strategy.LotSelectionContext{MedicineID: medicineID, Quantity: 8, Date: now}, lots)
		require.NoError(t, err)

		require.Len(t, result.Selections, 2)
		assert.Equal(t, b1.ID, result.Selections[0].BatchID)
		assert.Equal(t, int64(5), result.Selections[0].Quantity)
		assert.Equal(t, b2.ID, result.Selections[1].BatchID)
		assert.Equal(t, int64(3), result.Selections[1].Quantity)
		assert.Equal(t, int64(8), result.Allocated)
		assert.Zero(t, result.Shortfall)
	})

	t.Run("reports shortfall when stock is not enough", func(t *testing.T) {
		result, err := s.SelectLots(ctx, strategy.LotSelectionContext{MedicineID: medicineID, Quantity: 20, Date: now}, lots)
		require.NoError(t, err)

		require.Len(t, result.Selections, 3)
		assert.Equal(t, b1.ID, result.Selections[0].BatchID)
		assert.Equal(t, b2.ID, result.Selections[1].BatchID)
		assert.Equal(t, b3.ID, result.Selections[2].BatchID)
		for _, sel := range result.Selections {
			assert.Equal(t, int64(5), sel.Quantity)
		}
		assert.Equal(t, int64(15), result.Allocated)
		assert.Equal(t, int64(5), result.Shortfall)
	})

	t.Run("does not touch a later lot when the first one covers the request", func(t *testing.T) {
		a := strategy.Lot{ID: uuid.New(), MedicineID: medicineID, Available: 3, ExpiryDate: now.Add(day(10)), CreatedAt: now, Active: true}
		b := strategy.Lot{ID: uuid.New(), MedicineID: medicineID, Available: 20, ExpiryDate: now.Add(day(40)), CreatedAt: now, Active: true}

		result, err := s.SelectLots(ctx, strategy.LotSelectionContext{MedicineID: medicineID, Quantity: 3, Date: now}, []strategy.Lot{b, a})
		require.NoError(t, err)

		require.Len(t, result.Selections, 1)
		assert.Equal(t, a.ID, result.Selections[0].BatchID)
		assert.Equal(t, int64(3), result.Selections[0].Quantity)
	})

	t.Run("skips inactive, empty, foreign and expired lots", func(t *testing.T) {
		candidates := []strategy.Lot{
			{ID: uuid.New(), MedicineID: medicineID, Available: 50, ExpiryDate: now.Add(day(1)), Active: false},
			{ID: uuid.New(), MedicineID: medicineID, Available: 0, ExpiryDate: now.Add(day(1)), Active: true},
			{ID: uuid.New(), MedicineID: uuid.New(), Available: 50, ExpiryDate: now.Add(day(1)), Active: true},
			{ID: uuid.New(), MedicineID: medicineID, Available: 50, ExpiryDate: now.Add(-day(1)), Active: true},
			b2,
		}

		result, err := s.SelectLots(ctx, strategy.LotSelectionContext{MedicineID: medicineID, Quantity: 10, Date: now}, candidates)
		require.NoError(t, err)

		require.Len(t, result.Selections, 1)
		assert.Equal(t, b2.ID, result.Selections[0].BatchID)
		assert.Equal(t, int64(5), result.Shortfall)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := s.SelectLots(ctx, strategy.LotSelectionContext{MedicineID: medicineID, Quantity: 0, Date: now}, lots)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("does not reorder the caller's slice", func(t *testing.T) {
		input := []strategy.Lot{b3, b1, b2}
		_, err := s.SelectLots(ctx, strategy.LotSelectionContext{MedicineID: medicineID, Quantity: 1, Date: now}, input)
		require.NoError(t, err)
		assert.Equal(t, b3.ID, input[0].ID)
	})
}

func TestSortFEFO_TieBreak(t *testing.T) {
	now := time.Now().UTC()
	expiry := now.Add(day(30))

	older := strategy.Lot{ID: uuid.MustParse("ffffffff-0000-0000-0000-000000000000"), ExpiryDate: expiry, CreatedAt: now.Add(-time.Hour)}
	lowID := strategy.Lot{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), ExpiryDate: expiry, CreatedAt: now}
	highID := strategy.Lot{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), ExpiryDate: expiry, CreatedAt: now}

	lots := []strategy.Lot{highID, lowID, older}
	SortFEFO(lots)

	assert.Equal(t, older.ID, lots[0].ID)
	assert.Equal(t, lowID.ID, lots[1].ID)
	assert.Equal(t, highID.ID, lots[2].ID)
}

func TestFEFOBatchStrategy_Metadata(t *testing.T) {
	s := NewFEFOBatchStrategy()
	assert.Equal(t, "fefo", s.Name())
	assert.Equal(t, strategy.StrategyTypeBatch, s.Type())
	assert.NotEmpty(t, s.Description())
}
