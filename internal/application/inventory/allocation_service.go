package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/domain/shared/strategy"
	"github.com/pharmaledger/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AllocationService plans and applies FEFO consumption of a medicine
type AllocationService struct {
	txScope      TransactionScope
	medicineRepo inventory.MedicineRepository
	batchRepo    inventory.BatchRepository
	selector     strategy.LotSelectionStrategy
	ledger       *StockLedger
	logger       *zap.Logger
	now          func() time.Time
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	txScope TransactionScope,
	medicineRepo inventory.MedicineRepository,
	batchRepo inventory.BatchRepository,
	selector strategy.LotSelectionStrategy,
	ledger *StockLedger,
	logger *zap.Logger,
) *AllocationService {
	return &AllocationService{
		txScope:      txScope,
		medicineRepo: medicineRepo,
		batchRepo:    batchRepo,
		selector:     selector,
		ledger:       ledger,
		logger:       logger,
		now:          time.Now,
	}
}

// Allocate returns the FEFO plan for quantity without changing anything
func (s *AllocationService) Allocate(ctx context.Context, medicineID uuid.UUID, quantity int64) (*AllocationResponse, error) {
	plan, err := s.plan(ctx, medicineID, quantity)
	if err != nil {
		return nil, err
	}
	return &AllocationResponse{
		MedicineID: medicineID,
		Requested:  quantity,
		Allocated:  plan.Allocated,
		Shortfall:  plan.Shortfall,
		Lines:      plan.Selections,
	}, nil
}

func (s *AllocationService) plan(ctx context.Context, medicineID uuid.UUID, quantity int64) (strategy.LotSelectionResult, error) {
	if quantity <= 0 {
		return strategy.LotSelectionResult{}, shared.NewValidationError("requested quantity must be positive")
	}
	if _, err := s.medicineRepo.FindByID(ctx, medicineID); err != nil {
		return strategy.LotSelectionResult{}, err
	}

	batches, err := s.batchRepo.FindAllocatable(ctx, medicineID)
	if err != nil {
		return strategy.LotSelectionResult{}, err
	}
	lots := make([]strategy.Lot, len(batches))
	for i := range batches {
		lots[i] = batches[i].ToLot()
	}

	return s.selector.SelectLots(ctx, strategy.LotSelectionContext{
		MedicineID: medicineID,
		Quantity:   quantity,
		Date:       s.now().UTC(),
	}, lots)
}

// Dispense plans the request, then inside one transaction locks the planned
// batches in ascending id order, verifies they still hold the planned
// quantity and deducts them. A shortfall fails the whole request.
func (s *AllocationService) Dispense(ctx context.Context, input DispenseInput) (*DispenseResponse, error) {
	var resp *DispenseResponse
	err := telemetry.LedgerOperation(ctx, "dispense", func(ctx context.Context) error {
		var err error
		resp, err = s.dispense(ctx, input)
		return err
	}, attribute.String("medicine_id", input.MedicineID.String()), attribute.Int64("quantity", input.Quantity))
	return resp, err
}

func (s *AllocationService) dispense(ctx context.Context, input DispenseInput) (*DispenseResponse, error) {
	plan, err := s.plan(ctx, input.MedicineID, input.Quantity)
	if err != nil {
		return nil, err
	}
	if plan.Shortfall > 0 {
		return nil, shared.NewInsufficientStockError(input.MedicineID.String(), input.Quantity, plan.Allocated)
	}

	var medicine *inventory.Medicine
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		ids := make([]uuid.UUID, len(plan.Selections))
		planned := make(map[uuid.UUID]int64, len(plan.Selections))
		for i, sel := range plan.Selections {
			ids[i] = sel.BatchID
			planned[sel.BatchID] = sel.Quantity
		}

		locked, err := repos.BatchRepo().LockByIDs(ctx, ids)
		if err != nil {
			return err
		}

		var errs []error
		for i := range locked {
			batch := &locked[i]
			qty := planned[batch.ID]
			switch {
			case batch.IsRemoved():
				errs = append(errs, shared.NewStaleReferenceError(batch.ID.String()))
			case !batch.IsActive():
				errs = append(errs, shared.NewInsufficientStockError(batch.ID.String(), qty, 0))
			case batch.AvailableQuantity < qty:
				errs = append(errs, shared.NewInsufficientStockError(batch.ID.String(), qty, batch.AvailableQuantity))
			}
		}
		if len(locked) != len(ids) {
			errs = append(errs, shared.NewDomainError(shared.CodeConcurrencyConflict, "Planned batches changed during dispensing"))
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}

		for i := range locked {
			batch := &locked[i]
			if err := s.ledger.ApplyLocked(ctx, repos, batch, Adjustment{
				BatchID: batch.ID,
				Delta:   -planned[batch.ID],
				Action:  inventory.AuditActionDispensed,
				Reason:  input.Reference,
				ActorID: input.ActorID,
			}); err != nil {
				return err
			}
		}

		m, err := s.ledger.RecomputeTotal(ctx, repos, input.MedicineID)
		if err != nil {
			return err
		}
		medicine = m
		return nil
	})
	if err != nil {
		s.logger.Warn("Dispense rejected",
			zap.String("medicine_id", input.MedicineID.String()),
			zap.Int64("quantity", input.Quantity),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Medicine dispensed",
		zap.String("medicine_id", input.MedicineID.String()),
		zap.Int64("quantity", input.Quantity),
		zap.Int("batches", len(plan.Selections)),
		zap.String("reference", input.Reference))

	return &DispenseResponse{
		MedicineID: input.MedicineID,
		Quantity:   input.Quantity,
		Reference:  input.Reference,
		Lines:      plan.Selections,
		StockTotal: medicine.StockTotal,
	}, nil
}
