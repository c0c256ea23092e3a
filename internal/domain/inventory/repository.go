package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
)

// MedicineRepository defines the interface for medicine persistence
type MedicineRepository interface {
	// FindByID finds a medicine by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Medicine, error)

	// FindByIDForUpdate finds a medicine and holds a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Medicine, error)

	// FindByIDs finds multiple medicines by their IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Medicine, error)

	// ExistsByCode checks if a medicine code is taken
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// FindAll finds medicines matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Medicine, error)

	// Count counts medicines matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// FindLowStock finds medicines whose total is at or below their minimum
	FindLowStock(ctx context.Context, filter shared.Filter) ([]Medicine, error)

	// Save creates or updates a medicine
	Save(ctx context.Context, medicine *Medicine) error
}

// BatchRepository defines the interface for batch persistence.
// Batches are never physically deleted; the lock queries also return
// soft-removed rows so callers can detect stale references.
type BatchRepository interface {
	// FindByID finds a live batch by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindByCode finds a live batch by its scanned identifier
	FindByCode(ctx context.Context, code string) (*Batch, error)

	// FindByIDs finds batches by ID, including soft-removed ones
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Batch, error)

	// LockByIDs locks the batches in ascending id order and returns them in that order
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]Batch, error)

	// ExistsByCode checks if an identifier is taken
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// ExistsByBatchNumber checks if a batch number is taken for a medicine
	ExistsByBatchNumber(ctx context.Context, medicineID uuid.UUID, batchNumber string) (bool, error)

	// FindByMedicine lists live batches of a medicine in FEFO order
	FindByMedicine(ctx context.Context, medicineID uuid.UUID) ([]Batch, error)

	// FindAllocatable lists active batches of a medicine with stock left, in FEFO order
	FindAllocatable(ctx context.Context, medicineID uuid.UUID) ([]Batch, error)

	// FindExpiringSoon lists active batches with stock expiring between now and now+days
	FindExpiringSoon(ctx context.Context, now time.Time, days int, filter shared.Filter) ([]Batch, error)

	// FindExpiredWithStock lists batches past their expiry that still hold stock
	FindExpiredWithStock(ctx context.Context, now time.Time, filter shared.Filter) ([]Batch, error)

	// FindEligibleForDestruction lists expired or recalled batches that still hold stock
	FindEligibleForDestruction(ctx context.Context, now time.Time, filter shared.Filter) ([]Batch, error)

	// FindMedicinesWithLapsedBatches returns medicines owning active batches past expiry
	FindMedicinesWithLapsedBatches(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// LockLapsedByMedicine locks the active batches of a medicine that are past expiry
	LockLapsedByMedicine(ctx context.Context, medicineID uuid.UUID, now time.Time) ([]Batch, error)

	// SumActiveAvailable re-sums available quantity over active, live batches of a medicine
	SumActiveAvailable(ctx context.Context, medicineID uuid.UUID) (int64, error)

	// Statistics counts live batches by state; expiring soon means active
	// with stock and expiring between now and now+days
	Statistics(ctx context.Context, now time.Time, days int) (*BatchStatistics, error)

	// Save creates or updates a batch
	Save(ctx context.Context, batch *Batch) error
}

// OpnameRepository defines the interface for stock opname persistence
type OpnameRepository interface {
	// FindByID finds an opname with its details
	FindByID(ctx context.Context, id uuid.UUID) (*StockOpname, error)

	// FindByIDForUpdate finds an opname with its details and locks the header row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*StockOpname, error)

	// FindAll finds opnames matching the filter (filter key "status")
	FindAll(ctx context.Context, filter shared.Filter) ([]StockOpname, error)

	// Count counts opnames matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// NextSequence returns the next daily document sequence for date
	NextSequence(ctx context.Context, date time.Time) (int, error)

	// Save creates or updates the header and its details
	Save(ctx context.Context, opname *StockOpname) error

	// ReplaceDetails deletes the existing details and inserts the given ones
	ReplaceDetails(ctx context.Context, opname *StockOpname) error
}

// DestructionRepository defines the interface for destruction persistence
type DestructionRepository interface {
	// FindByID finds a destruction with its details
	FindByID(ctx context.Context, id uuid.UUID) (*Destruction, error)

	// FindByIDForUpdate finds a destruction with its details and locks the header row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Destruction, error)

	// FindAll finds destructions matching the filter (filter key "status")
	FindAll(ctx context.Context, filter shared.Filter) ([]Destruction, error)

	// Count counts destructions matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// NextSequence returns the next daily document sequence for date
	NextSequence(ctx context.Context, date time.Time) (int, error)

	// Save creates or updates the header and its details
	Save(ctx context.Context, destruction *Destruction) error

	// ReplaceDetails deletes the existing details and inserts the given ones
	ReplaceDetails(ctx context.Context, destruction *Destruction) error
}

// ScanLogRepository is the append-only sink of scan attempts
type ScanLogRepository interface {
	// Create appends a scan log
	Create(ctx context.Context, log *ScanLog) error

	// FindAll finds scan logs (filter keys "batch_id", "result", "from", "to")
	FindAll(ctx context.Context, filter shared.Filter) ([]ScanLog, error)

	// Count counts scan logs matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Analytics groups the scan log by result, method, batch, medicine and day
	Analytics(ctx context.Context, query ScanAnalyticsQuery) (*ScanAnalytics, error)
}

// AuditRepository is the append-only sink of ledger changes
type AuditRepository interface {
	// Create appends audit entries
	Create(ctx context.Context, entries ...*AuditEntry) error

	// FindBySubject lists the entries of a subject, newest first
	FindBySubject(ctx context.Context, subject AuditSubject, filter shared.Filter) ([]AuditEntry, error)

	// CountBySubject counts the entries of a subject
	CountBySubject(ctx context.Context, subject AuditSubject) (int64, error)
}
