package inventory

import (
	"strings"

	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeMedicine is the aggregate type name of Medicine
const AggregateTypeMedicine = "Medicine"

// Medicine is a catalog medicine whose stock is tracked in batches.
// StockTotal is a cached value; it is only ever written through
// ApplyRecomputedTotal with a full re-sum of the active batches.
type Medicine struct {
	shared.BaseAggregateRoot
	Code          string
	Name          string
	GenericName   string
	Category      string
	DosageForm    string
	Unit          string
	StockTotal    int64
	StockMinimum  int64
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
	IsActive      bool
}

// MedicineAttributes carries the master data of a medicine
type MedicineAttributes struct {
	Code          string
	Name          string
	GenericName   string
	Category      string
	DosageForm    string
	Unit          string
	StockMinimum  int64
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
}

// NewMedicine creates an active medicine with zero stock
func NewMedicine(attrs MedicineAttributes) (*Medicine, error) {
	code := strings.TrimSpace(attrs.Code)
	name := strings.TrimSpace(attrs.Name)
	if code == "" {
		return nil, shared.NewValidationError("medicine code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewValidationError("medicine name cannot be empty")
	}
	if strings.TrimSpace(attrs.Unit) == "" {
		return nil, shared.NewValidationError("medicine unit cannot be empty")
	}
	if attrs.StockMinimum < 0 {
		return nil, shared.NewValidationError("minimum stock cannot be negative")
	}
	if attrs.PurchasePrice.IsNegative() || attrs.SellingPrice.IsNegative() {
		return nil, shared.NewValidationError("prices cannot be negative")
	}

	return &Medicine{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		GenericName:       strings.TrimSpace(attrs.GenericName),
		Category:          attrs.Category,
		DosageForm:        attrs.DosageForm,
		Unit:              attrs.Unit,
		StockMinimum:      attrs.StockMinimum,
		PurchasePrice:     attrs.PurchasePrice,
		SellingPrice:      attrs.SellingPrice,
		IsActive:          true,
	}, nil
}

// IsLowStock reports whether the cached total is at or below the minimum
func (m *Medicine) IsLowStock() bool {
	return m.StockTotal <= m.StockMinimum
}

// ApplyRecomputedTotal stores a freshly summed stock total.
// It raises MedicineStockLowEvent when the medicine crosses into low stock.
// Returns true if the total changed.
func (m *Medicine) ApplyRecomputedTotal(total int64) bool {
	if total == m.StockTotal {
		return false
	}

	wasLow := m.IsLowStock()
	previous := m.StockTotal
	m.StockTotal = total
	m.Touch()
	m.IncrementVersion()

	if !wasLow && m.IsLowStock() {
		m.AddDomainEvent(NewMedicineStockLowEvent(m, previous))
	}
	return true
}
