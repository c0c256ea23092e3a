package inventory

import (
	"testing"

	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMedicine(t *testing.T) {
	t.Run("creates active medicine with zero stock", func(t *testing.T) {
		m, err := NewMedicine(MedicineAttributes{
			Code:          " AMX500 ",
			Name:          "Amoxicillin 500mg",
			Unit:          "capsule",
			StockMinimum:  20,
			PurchasePrice: decimal.NewFromInt(1500),
			SellingPrice:  decimal.NewFromInt(2000),
		})

		require.NoError(t, err)
		assert.Equal(t, "AMX500", m.Code)
		assert.True(t, m.IsActive)
		assert.Zero(t, m.StockTotal)
		assert.True(t, m.IsLowStock())
	})

	t.Run("requires code, name and unit", func(t *testing.T) {
		_, err := NewMedicine(MedicineAttributes{Name: "x", Unit: "tablet"})
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = NewMedicine(MedicineAttributes{Code: "x", Unit: "tablet"})
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = NewMedicine(MedicineAttributes{Code: "x", Name: "x"})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects negative minimum", func(t *testing.T) {
		_, err := NewMedicine(MedicineAttributes{Code: "x", Name: "x", Unit: "u", StockMinimum: -1})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestMedicine_ApplyRecomputedTotal(t *testing.T) {
	m, err := NewMedicine(MedicineAttributes{Code: "AMX500", Name: "Amoxicillin", Unit: "capsule", StockMinimum: 10})
	require.NoError(t, err)

	t.Run("no change reports false", func(t *testing.T) {
		assert.False(t, m.ApplyRecomputedTotal(0))
	})

	t.Run("raising above minimum emits nothing", func(t *testing.T) {
		assert.True(t, m.ApplyRecomputedTotal(50))
		assert.False(t, m.IsLowStock())
		assert.Empty(t, m.GetDomainEvents())
	})

	t.Run("crossing into low stock emits one event", func(t *testing.T) {
		assert.True(t, m.ApplyRecomputedTotal(10))
		assert.True(t, m.IsLowStock())
		require.Len(t, m.GetDomainEvents(), 1)

		evt, ok := m.GetDomainEvents()[0].(*MedicineStockLowEvent)
		require.True(t, ok)
		assert.Equal(t, int64(50), evt.PreviousTotal)
		assert.Equal(t, int64(10), evt.StockTotal)
	})

	t.Run("staying low does not emit again", func(t *testing.T) {
		m.ClearDomainEvents()
		assert.True(t, m.ApplyRecomputedTotal(5))
		assert.Empty(t, m.GetDomainEvents())
	})
}
