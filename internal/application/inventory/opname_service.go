package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OpnameService runs the stock opname (physical count) workflow
type OpnameService struct {
	txScope    TransactionScope
	opnameRepo inventory.OpnameRepository
	ledger     *StockLedger
	logger     *zap.Logger
	now        func() time.Time
}

// NewOpnameService creates a new OpnameService
func NewOpnameService(
	txScope TransactionScope,
	opnameRepo inventory.OpnameRepository,
	ledger *StockLedger,
	logger *zap.Logger,
) *OpnameService {
	return &OpnameService{
		txScope:    txScope,
		opnameRepo: opnameRepo,
		ledger:     ledger,
		logger:     logger,
		now:        time.Now,
	}
}

// ===================== Commands =====================

// Create opens a draft opname and snapshots the current quantity of every counted batch
func (s *OpnameService) Create(ctx context.Context, input CreateOpnameInput) (*OpnameResponse, error) {
	opnameDate := input.OpnameDate
	if opnameDate.IsZero() {
		opnameDate = s.now().UTC()
	}

	var opname *inventory.StockOpname
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		seq, err := repos.OpnameRepo().NextSequence(ctx, opnameDate)
		if err != nil {
			return err
		}
		o, err := inventory.NewStockOpname(inventory.OpnameHeader{
			Number:            inventory.FormatOpnameNumber(opnameDate, seq),
			Unit:              input.Unit,
			OpnameDate:        opnameDate,
			ResponsiblePerson: input.ResponsiblePerson,
			Notes:             input.Notes,
		}, input.ActorID)
		if err != nil {
			return err
		}

		snapshot, err := snapshotQuantities(ctx, repos, opnameLineBatchIDs(input.Lines))
		if err != nil {
			return err
		}
		if err := o.ReplaceDetails(input.Lines, snapshot); err != nil {
			return err
		}
		if err := repos.OpnameRepo().Save(ctx, o); err != nil {
			return err
		}
		actor := input.ActorID
		if err := repos.AuditRepo().Create(ctx, inventory.NewTransitionAudit(
			inventory.OpnameSubject(o.ID), "", string(o.Status), &actor)); err != nil {
			return err
		}
		opname = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock opname created",
		zap.String("opname_id", opname.ID.String()),
		zap.String("number", opname.Number),
		zap.Int("details", len(opname.Details)))

	response := ToOpnameResponse(opname)
	return &response, nil
}

// ReplaceDetails swaps the counted lines of a draft opname with fresh snapshots
func (s *OpnameService) ReplaceDetails(ctx context.Context, id uuid.UUID, lines []inventory.OpnameLine) (*OpnameResponse, error) {
	return s.mutate(ctx, id, func(repos TransactionalRepositories, o *inventory.StockOpname) error {
		snapshot, err := snapshotQuantities(ctx, repos, opnameLineBatchIDs(lines))
		if err != nil {
			return err
		}
		if err := o.ReplaceDetails(lines, snapshot); err != nil {
			return err
		}
		return repos.OpnameRepo().ReplaceDetails(ctx, o)
	})
}

// Start moves a draft opname into counting
func (s *OpnameService) Start(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*OpnameResponse, error) {
	return s.transition(ctx, id, actorID, func(o *inventory.StockOpname) error {
		return o.Start()
	})
}

// Complete closes counting with the official report text
func (s *OpnameService) Complete(ctx context.Context, id uuid.UUID, report string, actorID uuid.UUID) (*OpnameResponse, error) {
	return s.transition(ctx, id, actorID, func(o *inventory.StockOpname) error {
		return o.Complete(report)
	})
}

// Approve applies every counted quantity to its batch in one transaction.
// Batches are overwritten to the physical count; a batch whose quantity moved
// since the snapshot is flagged as drift but still overwritten.
func (s *OpnameService) Approve(ctx context.Context, id uuid.UUID, approverID uuid.UUID) (*OpnameResponse, error) {
	var resp *OpnameResponse
	err := telemetry.LedgerOperation(ctx, "opname_approve", func(ctx context.Context) error {
		var err error
		resp, err = s.approve(ctx, id, approverID)
		return err
	}, attribute.String("opname_id", id.String()))
	return resp, err
}

func (s *OpnameService) approve(ctx context.Context, id uuid.UUID, approverID uuid.UUID) (*OpnameResponse, error) {
	var (
		opname  *inventory.StockOpname
		drifted []uuid.UUID
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.OpnameRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := o.CheckTransition(inventory.ActionApprove); err != nil {
			return err
		}

		batches, err := lockWorkflowBatches(ctx, repos, o.BatchIDs())
		if err != nil {
			return err
		}

		physical := make(map[uuid.UUID]int64, len(o.Details))
		for _, d := range o.Details {
			physical[d.BatchID] = d.PhysicalQuantity
		}

		source := inventory.OpnameSubject(o.ID)
		medicineIDs := make([]uuid.UUID, 0, len(batches))
		for i := range batches {
			batch := &batches[i]
			current := batch.AvailableQuantity
			o.RecordApplied(batch.ID, current)

			delta := physical[batch.ID] - current
			medicineIDs = append(medicineIDs, batch.MedicineID)
			if delta == 0 {
				continue
			}
			if err := s.ledger.ApplyLocked(ctx, repos, batch, Adjustment{
				BatchID: batch.ID,
				Delta:   delta,
				Action:  inventory.AuditActionReconciled,
				Reason:  fmt.Sprintf("stock opname %s", o.Number),
				ActorID: &approverID,
				Source:  &source,
			}); err != nil {
				return err
			}
		}

		if err := o.Approve(approverID, s.now()); err != nil {
			return err
		}
		if err := repos.OpnameRepo().Save(ctx, o); err != nil {
			return err
		}
		if err := repos.AuditRepo().Create(ctx, inventory.NewTransitionAudit(
			source, string(inventory.OpnameStatusCompleted), string(o.Status), &approverID)); err != nil {
			return err
		}
		if err := flushEvents(ctx, repos, o); err != nil {
			return err
		}
		if err := s.ledger.RecomputeAll(ctx, repos, medicineIDs); err != nil {
			return err
		}

		opname = o
		drifted = o.DriftedBatches()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(drifted) > 0 {
		ids := make([]string, len(drifted))
		for i, d := range drifted {
			ids[i] = d.String()
		}
		s.logger.Warn("Stock opname approved with quantity drift since snapshot",
			zap.String("opname_id", id.String()),
			zap.Strings("batch_ids", ids))
	}
	s.logger.Info("Stock opname approved",
		zap.String("opname_id", id.String()),
		zap.String("approved_by", approverID.String()))

	response := ToOpnameResponse(opname)
	return &response, nil
}

func (s *OpnameService) transition(ctx context.Context, id, actorID uuid.UUID, fn func(o *inventory.StockOpname) error) (*OpnameResponse, error) {
	return s.mutate(ctx, id, func(repos TransactionalRepositories, o *inventory.StockOpname) error {
		from := o.Status
		if err := fn(o); err != nil {
			return err
		}
		if err := repos.OpnameRepo().Save(ctx, o); err != nil {
			return err
		}
		s.logger.Info("Stock opname status changed",
			zap.String("opname_id", o.ID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(o.Status)))
		return repos.AuditRepo().Create(ctx, inventory.NewTransitionAudit(
			inventory.OpnameSubject(o.ID), string(from), string(o.Status), &actorID))
	})
}

func (s *OpnameService) mutate(ctx context.Context, id uuid.UUID, fn func(repos TransactionalRepositories, o *inventory.StockOpname) error) (*OpnameResponse, error) {
	var opname *inventory.StockOpname
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.OpnameRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(repos, o); err != nil {
			return err
		}
		opname = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	response := ToOpnameResponse(opname)
	return &response, nil
}

// ===================== Queries =====================

// GetByID retrieves an opname with its details
func (s *OpnameService) GetByID(ctx context.Context, id uuid.UUID) (*OpnameResponse, error) {
	o, err := s.opnameRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToOpnameResponse(o)
	return &response, nil
}

// List retrieves a page of opnames, optionally by status
func (s *OpnameService) List(ctx context.Context, filter ListFilter) ([]OpnameResponse, int64, error) {
	if filter.Status != "" && !inventory.OpnameStatus(filter.Status).IsValid() {
		return nil, 0, shared.NewValidationError("unknown opname status %q", filter.Status)
	}
	f := filter.toFilter()
	total, err := s.opnameRepo.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	opnames, err := s.opnameRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return ToOpnameResponses(opnames), total, nil
}

// ListPendingApproval retrieves completed opnames waiting for approval
func (s *OpnameService) ListPendingApproval(ctx context.Context, filter ListFilter) ([]OpnameResponse, int64, error) {
	filter.Status = string(inventory.OpnameStatusCompleted)
	return s.List(ctx, filter)
}

// ===================== Helpers =====================

func opnameLineBatchIDs(lines []inventory.OpnameLine) []uuid.UUID {
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.BatchID
	}
	return ids
}

// snapshotQuantities reads the available and initial quantity of live batches
func snapshotQuantities(ctx context.Context, repos TransactionalRepositories, ids []uuid.UUID) (map[uuid.UUID]inventory.BatchSnapshot, error) {
	snapshot := make(map[uuid.UUID]inventory.BatchSnapshot, len(ids))
	if len(ids) == 0 {
		return snapshot, nil
	}
	batches, err := repos.BatchRepo().FindByIDs(ctx, sortedUnique(ids))
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		if b.IsRemoved() {
			continue
		}
		snapshot[b.ID] = inventory.BatchSnapshot{Available: b.AvailableQuantity, Initial: b.InitialQuantity}
	}
	return snapshot, nil
}

// lockWorkflowBatches locks the referenced batches in ascending id order.
// Every missing or soft-removed batch is reported as a stale reference.
func lockWorkflowBatches(ctx context.Context, repos TransactionalRepositories, ids []uuid.UUID) ([]inventory.Batch, error) {
	sorted := sortedUnique(ids)
	batches, err := repos.BatchRepo().LockByIDs(ctx, sorted)
	if err != nil {
		return nil, err
	}

	found := make(map[uuid.UUID]bool, len(batches))
	var errs []error
	for _, b := range batches {
		found[b.ID] = true
		if b.IsRemoved() {
			errs = append(errs, shared.NewStaleReferenceError(b.ID.String()))
		}
	}
	for _, id := range sorted {
		if !found[id] {
			errs = append(errs, shared.NewStaleReferenceError(id.String()))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return batches, nil
}
