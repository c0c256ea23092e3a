package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Adjustment is a signed change of one batch's available quantity
type Adjustment struct {
	BatchID uuid.UUID
	Delta   int64
	Action  inventory.AuditAction
	Reason  string
	ActorID *uuid.UUID
	// Source is the workflow document that caused the change, if any
	Source *inventory.AuditSubject
}

// StockLedger is the single mutation path for batch quantities.
// Every method runs inside the caller's transaction and expects
// batch rows to be locked before medicine rows.
type StockLedger struct {
	logger *zap.Logger
}

// NewStockLedger creates a new StockLedger
func NewStockLedger(logger *zap.Logger) *StockLedger {
	return &StockLedger{logger: logger}
}

// AdjustAvailable locks the batch, applies the delta, records the audit
// entry and recomputes the owning medicine.
func (l *StockLedger) AdjustAvailable(ctx context.Context, repos TransactionalRepositories, adj Adjustment) (*inventory.Batch, error) {
	locked, err := repos.BatchRepo().LockByIDs(ctx, []uuid.UUID{adj.BatchID})
	if err != nil {
		return nil, err
	}
	if len(locked) == 0 {
		return nil, shared.NewNotFoundError("batch", adj.BatchID.String())
	}
	batch := &locked[0]

	if err := l.ApplyLocked(ctx, repos, batch, adj); err != nil {
		return nil, err
	}
	if _, err := l.RecomputeTotal(ctx, repos, batch.MedicineID); err != nil {
		return nil, err
	}
	return batch, nil
}

// ApplyLocked applies an adjustment to a batch the caller already holds a
// lock on. The medicine total is not recomputed; callers adjusting several
// batches recompute each affected medicine once afterwards.
func (l *StockLedger) ApplyLocked(ctx context.Context, repos TransactionalRepositories, batch *inventory.Batch, adj Adjustment) error {
	before, after, err := batch.Adjust(adj.Delta)
	if err != nil {
		return err
	}
	if err := repos.BatchRepo().Save(ctx, batch); err != nil {
		return err
	}

	entry := inventory.NewQuantityAudit(batch.ID, adj.Action, before, after, adj.Reason, adj.ActorID)
	if adj.Source != nil {
		entry.WithSource(*adj.Source)
	}
	if err := repos.AuditRepo().Create(ctx, entry); err != nil {
		return err
	}

	batch.AddDomainEvent(inventory.NewBatchAdjustedEvent(batch, adj.Action, before, after, adj.Reason))
	if err := flushEvents(ctx, repos, batch); err != nil {
		return err
	}

	l.logger.Debug("Batch quantity adjusted",
		zap.String("batch_id", batch.ID.String()),
		zap.String("action", string(adj.Action)),
		zap.Int64("before", before),
		zap.Int64("after", after))
	return nil
}

// RecomputeTotal locks the medicine, re-sums the available quantity of its
// active batches and stores the result.
func (l *StockLedger) RecomputeTotal(ctx context.Context, repos TransactionalRepositories, medicineID uuid.UUID) (*inventory.Medicine, error) {
	medicine, err := repos.MedicineRepo().FindByIDForUpdate(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	total, err := repos.BatchRepo().SumActiveAvailable(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	previous := medicine.StockTotal
	if !medicine.ApplyRecomputedTotal(total) {
		return medicine, nil
	}
	if err := repos.MedicineRepo().Save(ctx, medicine); err != nil {
		return nil, err
	}
	if medicine.IsLowStock() && len(medicine.GetDomainEvents()) > 0 {
		l.logger.Warn("Medicine stock is low",
			zap.String("medicine_id", medicine.ID.String()),
			zap.String("code", medicine.Code),
			zap.Int64("stock_total", medicine.StockTotal),
			zap.Int64("stock_minimum", medicine.StockMinimum))
	}
	if err := flushEvents(ctx, repos, medicine); err != nil {
		return nil, err
	}

	l.logger.Debug("Medicine stock recomputed",
		zap.String("medicine_id", medicineID.String()),
		zap.Int64("previous", previous),
		zap.Int64("total", total))
	return medicine, nil
}

// RecomputeAll recomputes each distinct medicine once, in ascending id order
func (l *StockLedger) RecomputeAll(ctx context.Context, repos TransactionalRepositories, medicineIDs []uuid.UUID) error {
	for _, id := range sortedUnique(medicineIDs) {
		if _, err := l.RecomputeTotal(ctx, repos, id); err != nil {
			return err
		}
	}
	return nil
}
