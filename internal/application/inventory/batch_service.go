package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultExpiringSoonDays is the look-ahead window of the expiring-soon list
const DefaultExpiringSoonDays = 30

// BatchService provides the lot store operations: receiving, adjusting,
// recalling, expiring and resolving scanned identifiers
type BatchService struct {
	txScope          TransactionScope
	medicineRepo     inventory.MedicineRepository
	batchRepo        inventory.BatchRepository
	ledger           *StockLedger
	expiringSoonDays int
	logger           *zap.Logger
	now              func() time.Time
}

// NewBatchService creates a new BatchService
func NewBatchService(
	txScope TransactionScope,
	medicineRepo inventory.MedicineRepository,
	batchRepo inventory.BatchRepository,
	ledger *StockLedger,
	expiringSoonDays int,
	logger *zap.Logger,
) *BatchService {
	if expiringSoonDays <= 0 {
		expiringSoonDays = DefaultExpiringSoonDays
	}
	return &BatchService{
		txScope:          txScope,
		medicineRepo:     medicineRepo,
		batchRepo:        batchRepo,
		ledger:           ledger,
		expiringSoonDays: expiringSoonDays,
		logger:           logger,
		now:              time.Now,
	}
}

// ===================== Commands =====================

// Receive creates a new batch and adds its quantity to the medicine total
func (s *BatchService) Receive(ctx context.Context, input ReceiveBatchInput) (*BatchResponse, error) {
	batch, err := inventory.NewBatch(inventory.BatchAttributes{
		MedicineID:     input.MedicineID,
		BatchNumber:    input.BatchNumber,
		Code:           input.Code,
		ProductionDate: input.ProductionDate,
		ExpiryDate:     input.ExpiryDate,
		ReceivedDate:   input.ReceivedDate,
		Quantity:       input.Quantity,
		UnitCost:       input.UnitCost,
		Notes:          input.Notes,
	})
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		medicine, err := repos.MedicineRepo().FindByID(ctx, input.MedicineID)
		if err != nil {
			return err
		}
		if !medicine.IsActive {
			return shared.NewValidationError("medicine %s is inactive", medicine.Code).WithEntity(medicine.ID.String())
		}

		taken, err := repos.BatchRepo().ExistsByCode(ctx, batch.Code)
		if err != nil {
			return err
		}
		if taken {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Batch identifier already exists").WithEntity(batch.Code)
		}
		taken, err = repos.BatchRepo().ExistsByBatchNumber(ctx, batch.MedicineID, batch.BatchNumber)
		if err != nil {
			return err
		}
		if taken {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Batch number already exists for this medicine").WithEntity(batch.BatchNumber)
		}

		if err := repos.BatchRepo().Save(ctx, batch); err != nil {
			return err
		}
		entry := inventory.NewQuantityAudit(batch.ID, inventory.AuditActionReceived, 0, batch.AvailableQuantity, batch.Notes, input.ActorID)
		if err := repos.AuditRepo().Create(ctx, entry); err != nil {
			return err
		}
		if err := flushEvents(ctx, repos, batch); err != nil {
			return err
		}
		_, err = s.ledger.RecomputeTotal(ctx, repos, batch.MedicineID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch received",
		zap.String("batch_id", batch.ID.String()),
		zap.String("medicine_id", batch.MedicineID.String()),
		zap.String("code", batch.Code),
		zap.Int64("quantity", batch.InitialQuantity))

	response := ToBatchResponse(batch)
	return &response, nil
}

// Adjust applies a manual signed correction to a batch
func (s *BatchService) Adjust(ctx context.Context, input AdjustInput) (*BatchResponse, error) {
	if input.Delta == 0 {
		return nil, shared.NewValidationError("delta cannot be zero")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, shared.NewValidationError("reason is required for a manual adjustment")
	}

	var result *inventory.Batch
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch, err := s.ledger.AdjustAvailable(ctx, repos, Adjustment{
			BatchID: input.BatchID,
			Delta:   input.Delta,
			Action:  inventory.AuditActionAdjusted,
			Reason:  input.Reason,
			ActorID: input.ActorID,
		})
		if err != nil {
			return err
		}
		result = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := ToBatchResponse(result)
	return &response, nil
}

// Recall withdraws a batch; its stock leaves the medicine total
func (s *BatchService) Recall(ctx context.Context, batchID uuid.UUID, reason string, actorID *uuid.UUID) (*BatchResponse, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, shared.NewValidationError("recall reason is required")
	}

	var result *inventory.Batch
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.BatchRepo().LockByIDs(ctx, []uuid.UUID{batchID})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return shared.NewNotFoundError("batch", batchID.String())
		}
		batch := &locked[0]

		if err := batch.Recall(reason); err != nil {
			return err
		}
		if err := repos.BatchRepo().Save(ctx, batch); err != nil {
			return err
		}
		entry := inventory.NewQuantityAudit(batch.ID, inventory.AuditActionRecalled,
			batch.AvailableQuantity, batch.AvailableQuantity, reason, actorID)
		if err := repos.AuditRepo().Create(ctx, entry); err != nil {
			return err
		}
		if err := flushEvents(ctx, repos, batch); err != nil {
			return err
		}
		if _, err := s.ledger.RecomputeTotal(ctx, repos, batch.MedicineID); err != nil {
			return err
		}
		result = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch recalled",
		zap.String("batch_id", batchID.String()),
		zap.String("reason", reason))

	response := ToBatchResponse(result)
	return &response, nil
}

// ExpireBatches marks active batches past their expiry date as expired and
// recomputes the owning medicines, one transaction per medicine.
// Returns the number of batches expired.
func (s *BatchService) ExpireBatches(ctx context.Context) (int, error) {
	now := s.now().UTC()
	medicineIDs, err := s.batchRepo.FindMedicinesWithLapsedBatches(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, medicineID := range sortedUnique(medicineIDs) {
		count := 0
		err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			batches, err := repos.BatchRepo().LockLapsedByMedicine(ctx, medicineID, now)
			if err != nil {
				return err
			}
			for i := range batches {
				batch := &batches[i]
				if !batch.MarkExpired(now) {
					continue
				}
				if err := repos.BatchRepo().Save(ctx, batch); err != nil {
					return err
				}
				entry := inventory.NewQuantityAudit(batch.ID, inventory.AuditActionExpired,
					batch.AvailableQuantity, batch.AvailableQuantity, "expiry date passed", nil)
				if err := repos.AuditRepo().Create(ctx, entry); err != nil {
					return err
				}
				if err := flushEvents(ctx, repos, batch); err != nil {
					return err
				}
				count++
			}
			if count == 0 {
				return nil
			}
			_, err = s.ledger.RecomputeTotal(ctx, repos, medicineID)
			return err
		})
		if err != nil {
			s.logger.Error("Failed to expire batches",
				zap.String("medicine_id", medicineID.String()),
				zap.Error(err))
			return expired, err
		}
		expired += count
	}

	if expired > 0 {
		s.logger.Info("Expired batches swept",
			zap.Int("batches", expired),
			zap.Int("medicines", len(medicineIDs)))
	}
	return expired, nil
}

// Resolve looks up a scanned identifier. A scan log is written for every
// call, whatever the outcome, in its own transaction.
func (s *BatchService) Resolve(ctx context.Context, sc inventory.ScanContext) (*ScanResponse, error) {
	sc.Code = strings.TrimSpace(sc.Code)

	response, resolveErr := s.resolve(ctx, sc.Code)

	var (
		result  inventory.ScanResult
		batchID *uuid.UUID
		errMsg  string
	)
	switch {
	case resolveErr == nil:
		result = response.Result
		id := response.Batch.ID
		batchID = &id
	case errors.Is(resolveErr, shared.ErrNotFound):
		result = inventory.ScanResultNotFound
		errMsg = resolveErr.Error()
	default:
		result = inventory.ScanResultError
		errMsg = resolveErr.Error()
	}

	var payload json.RawMessage
	if response != nil {
		if raw, err := json.Marshal(response); err == nil {
			payload = raw
		}
	}

	entry := inventory.NewScanLog(sc, result, batchID, errMsg, payload)
	logCtx := context.WithoutCancel(ctx)
	if err := s.txScope.Execute(logCtx, func(repos TransactionalRepositories) error {
		return repos.ScanLogRepo().Create(logCtx, entry)
	}); err != nil {
		s.logger.Error("Failed to write scan log",
			zap.String("code", sc.Code),
			zap.Error(err))
		if resolveErr == nil {
			return nil, err
		}
	}

	if resolveErr != nil {
		return nil, resolveErr
	}
	return response, nil
}

func (s *BatchService) resolve(ctx context.Context, code string) (*ScanResponse, error) {
	if code == "" {
		return nil, shared.NewValidationError("scanned code cannot be empty")
	}

	batch, err := s.batchRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	medicine, err := s.medicineRepo.FindByID(ctx, batch.MedicineID)
	if err != nil {
		return nil, err
	}

	batchResp := ToBatchResponse(batch)
	medicineResp := ToMedicineResponse(medicine)
	response := &ScanResponse{
		Result:   inventory.ScanResultSuccess,
		Batch:    &batchResp,
		Medicine: &medicineResp,
	}
	if batch.Status == inventory.BatchStatusExpired || batch.IsExpired(s.now()) {
		response.Result = inventory.ScanResultExpired
		response.Warning = "batch has expired and must not be dispensed"
	}
	return response, nil
}

// ===================== Queries =====================

// GetByID retrieves a batch by ID
func (s *BatchService) GetByID(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	batch, err := s.batchRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToBatchResponse(batch)
	return &response, nil
}

// ListByMedicine lists the batches of a medicine in FEFO order
func (s *BatchService) ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]BatchResponse, error) {
	if _, err := s.medicineRepo.FindByID(ctx, medicineID); err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.FindByMedicine(ctx, medicineID)
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches), nil
}

// Statistics counts live batches by state, using the configured expiring-soon window
func (s *BatchService) Statistics(ctx context.Context) (*BatchStatisticsResponse, error) {
	stats, err := s.batchRepo.Statistics(ctx, s.now().UTC(), s.expiringSoonDays)
	if err != nil {
		return nil, err
	}
	return ToBatchStatisticsResponse(stats, s.expiringSoonDays), nil
}

// ListExpiringSoon lists batches expiring within days (the configured default when days <= 0)
func (s *BatchService) ListExpiringSoon(ctx context.Context, days int, filter ListFilter) ([]BatchResponse, error) {
	if days <= 0 {
		days = s.expiringSoonDays
	}
	batches, err := s.batchRepo.FindExpiringSoon(ctx, s.now().UTC(), days, filter.toFilter())
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches), nil
}

// ListExpired lists batches past expiry that still hold stock
func (s *BatchService) ListExpired(ctx context.Context, filter ListFilter) ([]BatchResponse, error) {
	batches, err := s.batchRepo.FindExpiredWithStock(ctx, s.now().UTC(), filter.toFilter())
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches), nil
}

// QRPayload returns the structured label payload of a batch
func (s *BatchService) QRPayload(ctx context.Context, id uuid.UUID) (*inventory.QRPayload, error) {
	batch, err := s.batchRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	medicine, err := s.medicineRepo.FindByID(ctx, batch.MedicineID)
	if err != nil {
		return nil, err
	}
	payload := inventory.BuildQRPayload(batch, medicine)
	return &payload, nil
}
