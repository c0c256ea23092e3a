package inventory

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReportStorage stores the signed destruction reports.
// Implemented by the infrastructure layer (S3 compatible storage).
type ReportStorage interface {
	// GenerateUploadURL generates a presigned URL for uploading a file
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error)

	// GenerateDownloadURL generates a presigned URL for downloading a file
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// ObjectExists checks if an object exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

// AllowedReportContentTypes lists the accepted formats of a signed report
var AllowedReportContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// ReportConfig holds the presigned URL lifetimes of destruction reports
type ReportConfig struct {
	UploadURLExpiry   time.Duration
	DownloadURLExpiry time.Duration
}

// DefaultReportConfig returns the default configuration
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		UploadURLExpiry:   15 * time.Minute,
		DownloadURLExpiry: 1 * time.Hour,
	}
}

// DestructionService runs the destruction workflow for expired, damaged
// or recalled stock
type DestructionService struct {
	txScope         TransactionScope
	destructionRepo inventory.DestructionRepository
	batchRepo       inventory.BatchRepository
	ledger          *StockLedger
	storage         ReportStorage
	reportConfig    ReportConfig
	logger          *zap.Logger
	now             func() time.Time
}

// NewDestructionService creates a new DestructionService.
// storage may be nil, in which case report uploads are rejected.
func NewDestructionService(
	txScope TransactionScope,
	destructionRepo inventory.DestructionRepository,
	batchRepo inventory.BatchRepository,
	ledger *StockLedger,
	storage ReportStorage,
	reportConfig ReportConfig,
	logger *zap.Logger,
) *DestructionService {
	if reportConfig.UploadURLExpiry <= 0 {
		reportConfig.UploadURLExpiry = DefaultReportConfig().UploadURLExpiry
	}
	if reportConfig.DownloadURLExpiry <= 0 {
		reportConfig.DownloadURLExpiry = DefaultReportConfig().DownloadURLExpiry
	}
	return &DestructionService{
		txScope:         txScope,
		destructionRepo: destructionRepo,
		batchRepo:       batchRepo,
		ledger:          ledger,
		storage:         storage,
		reportConfig:    reportConfig,
		logger:          logger,
		now:             time.Now,
	}
}

// ===================== Commands =====================

// Create opens a draft destruction. Every line is checked against the
// current batch quantities and all failures are reported together.
func (s *DestructionService) Create(ctx context.Context, input CreateDestructionInput) (*DestructionResponse, error) {
	destructionDate := input.DestructionDate
	if destructionDate.IsZero() {
		destructionDate = s.now().UTC()
	}

	var destruction *inventory.Destruction
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		seq, err := repos.DestructionRepo().NextSequence(ctx, destructionDate)
		if err != nil {
			return err
		}
		d, err := inventory.NewDestruction(inventory.DestructionHeader{
			Number:            inventory.FormatDestructionNumber(destructionDate, seq),
			DestructionDate:   destructionDate,
			ResponsiblePerson: input.ResponsiblePerson,
			Location:          input.Location,
			Method:            input.Method,
			Witnesses:         input.Witnesses,
			Reason:            input.Reason,
			Notes:             input.Notes,
		}, input.ActorID)
		if err != nil {
			return err
		}

		batches, err := loadBatches(ctx, repos, destructionLineBatchIDs(input.Lines))
		if err != nil {
			return err
		}
		if err := d.ReplaceDetails(input.Lines, batches); err != nil {
			return err
		}
		if err := repos.DestructionRepo().Save(ctx, d); err != nil {
			return err
		}
		actor := input.ActorID
		if err := repos.AuditRepo().Create(ctx, inventory.NewTransitionAudit(
			inventory.DestructionSubject(d.ID), "", string(d.Status), &actor)); err != nil {
			return err
		}
		destruction = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Destruction created",
		zap.String("destruction_id", destruction.ID.String()),
		zap.String("number", destruction.Number),
		zap.Int64("quantity", destruction.TotalQuantity()))

	response := ToDestructionResponse(destruction)
	return &response, nil
}

// ReplaceDetails swaps the lines of a draft destruction
func (s *DestructionService) ReplaceDetails(ctx context.Context, id uuid.UUID, lines []inventory.DestructionLine) (*DestructionResponse, error) {
	return s.mutate(ctx, id, func(repos TransactionalRepositories, d *inventory.Destruction) error {
		batches, err := loadBatches(ctx, repos, destructionLineBatchIDs(lines))
		if err != nil {
			return err
		}
		if err := d.ReplaceDetails(lines, batches); err != nil {
			return err
		}
		return repos.DestructionRepo().ReplaceDetails(ctx, d)
	})
}

// Complete submits the destruction for approval after re-checking stock
func (s *DestructionService) Complete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*DestructionResponse, error) {
	return s.mutate(ctx, id, func(repos TransactionalRepositories, d *inventory.Destruction) error {
		batches, err := loadBatches(ctx, repos, d.BatchIDs())
		if err != nil {
			return err
		}
		from := d.Status
		if err := d.Complete(batches); err != nil {
			return err
		}
		if err := repos.DestructionRepo().Save(ctx, d); err != nil {
			return err
		}
		return repos.AuditRepo().Create(ctx, inventory.NewTransitionAudit(
			inventory.DestructionSubject(d.ID), string(from), string(d.Status), &actorID))
	})
}

// Approve removes every destroyed quantity from its batch in one transaction
func (s *DestructionService) Approve(ctx context.Context, id uuid.UUID, approverID uuid.UUID) (*DestructionResponse, error) {
	var resp *DestructionResponse
	err := telemetry.LedgerOperation(ctx, "destruction_approve", func(ctx context.Context) error {
		var err error
		resp, err = s.approve(ctx, id, approverID)
		return err
	}, attribute.String("destruction_id", id.String()))
	return resp, err
}

func (s *DestructionService) approve(ctx context.Context, id uuid.UUID, approverID uuid.UUID) (*DestructionResponse, error) {
	var destruction *inventory.Destruction
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		d, err := repos.DestructionRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := d.CheckTransition(inventory.ActionApprove); err != nil {
			return err
		}

		locked, err := repos.BatchRepo().LockByIDs(ctx, sortedUnique(d.BatchIDs()))
		if err != nil {
			return err
		}
		batches := make(map[uuid.UUID]*inventory.Batch, len(locked))
		for i := range locked {
			batches[locked[i].ID] = &locked[i]
		}
		if err := d.CheckAvailability(batches); err != nil {
			return err
		}

		quantities := make(map[uuid.UUID]int64, len(d.Details))
		for _, detail := range d.Details {
			quantities[detail.BatchID] = detail.Quantity
		}

		source := inventory.DestructionSubject(d.ID)
		medicineIDs := make([]uuid.UUID, 0, len(locked))
		for i := range locked {
			batch := &locked[i]
			medicineIDs = append(medicineIDs, batch.MedicineID)
			if err := s.ledger.ApplyLocked(ctx, repos, batch, Adjustment{
				BatchID: batch.ID,
				Delta:   -quantities[batch.ID],
				Action:  inventory.AuditActionDestroyed,
				Reason:  fmt.Sprintf("destruction %s (%s)", d.Number, d.Reason),
				ActorID: &approverID,
				Source:  &source,
			}); err != nil {
				return err
			}
		}

		if err := d.Approve(approverID, s.now()); err != nil {
			return err
		}
		if err := repos.DestructionRepo().Save(ctx, d); err != nil {
			return err
		}
		if err := repos.AuditRepo().Create(ctx, inventory.NewTransitionAudit(
			source, string(inventory.DestructionStatusCompleted), string(d.Status), &approverID)); err != nil {
			return err
		}
		if err := flushEvents(ctx, repos, d); err != nil {
			return err
		}
		if err := s.ledger.RecomputeAll(ctx, repos, medicineIDs); err != nil {
			return err
		}
		destruction = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Destruction approved",
		zap.String("destruction_id", id.String()),
		zap.String("approved_by", approverID.String()),
		zap.Int64("quantity", destruction.TotalQuantity()),
		zap.String("value", destruction.TotalValue().StringFixed(2)))

	response := ToDestructionResponse(destruction)
	return &response, nil
}

// RequestReportUpload returns a presigned URL the client uploads the
// signed report to. The report is attached with AttachReport afterwards.
func (s *DestructionService) RequestReportUpload(ctx context.Context, id uuid.UUID, contentType string) (*ReportUploadResponse, error) {
	if s.storage == nil {
		return nil, shared.NewDomainError(shared.CodeStorageUnavailable, "Report storage is not configured")
	}
	ext, ok := AllowedReportContentTypes[contentType]
	if !ok {
		return nil, shared.NewValidationError("content type %q is not allowed for reports", contentType)
	}

	d, err := s.destructionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == inventory.DestructionStatusApproved {
		return nil, shared.NewInvalidTransitionError("destruction", d.ID.String(), "attach report to", string(d.Status))
	}

	key := reportObjectKey(d, ext)
	uploadURL, expiresAt, err := s.storage.GenerateUploadURL(ctx, key, contentType, s.reportConfig.UploadURLExpiry)
	if err != nil {
		s.logger.Error("Failed to generate report upload URL",
			zap.String("destruction_id", id.String()),
			zap.Error(err))
		return nil, shared.NewDomainError(shared.CodeUploadURLFailed, "Failed to generate upload URL")
	}

	return &ReportUploadResponse{
		ObjectKey: key,
		UploadURL: uploadURL,
		ExpiresAt: expiresAt,
	}, nil
}

// AttachReport records an uploaded report on the destruction
func (s *DestructionService) AttachReport(ctx context.Context, id uuid.UUID, objectKey string) (*DestructionResponse, error) {
	if s.storage == nil {
		return nil, shared.NewDomainError(shared.CodeStorageUnavailable, "Report storage is not configured")
	}
	objectKey = strings.TrimSpace(objectKey)
	if !strings.HasPrefix(objectKey, reportKeyPrefix(id)) {
		return nil, shared.NewValidationError("object key does not belong to destruction %s", id)
	}

	exists, err := s.storage.ObjectExists(ctx, objectKey)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeStorageCheckFailed, "Failed to verify upload")
	}
	if !exists {
		return nil, shared.NewDomainError(shared.CodeUploadNotFound,
			"File not found in storage. Please upload the report first.")
	}

	response, err := s.mutate(ctx, id, func(repos TransactionalRepositories, d *inventory.Destruction) error {
		if err := d.AttachReport(objectKey); err != nil {
			return err
		}
		return repos.DestructionRepo().Save(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	s.withReportURL(ctx, response)
	return response, nil
}

func (s *DestructionService) mutate(ctx context.Context, id uuid.UUID, fn func(repos TransactionalRepositories, d *inventory.Destruction) error) (*DestructionResponse, error) {
	var destruction *inventory.Destruction
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		d, err := repos.DestructionRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(repos, d); err != nil {
			return err
		}
		destruction = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	response := ToDestructionResponse(destruction)
	return &response, nil
}

// ===================== Queries =====================

// GetByID retrieves a destruction with its details and a report download URL
func (s *DestructionService) GetByID(ctx context.Context, id uuid.UUID) (*DestructionResponse, error) {
	d, err := s.destructionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToDestructionResponse(d)
	s.withReportURL(ctx, &response)
	return &response, nil
}

// List retrieves a page of destructions, optionally by status
func (s *DestructionService) List(ctx context.Context, filter ListFilter) ([]DestructionResponse, int64, error) {
	if filter.Status != "" && !inventory.DestructionStatus(filter.Status).IsValid() {
		return nil, 0, shared.NewValidationError("unknown destruction status %q", filter.Status)
	}
	f := filter.toFilter()
	total, err := s.destructionRepo.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	destructions, err := s.destructionRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return ToDestructionResponses(destructions), total, nil
}

// ListPendingApproval retrieves completed destructions waiting for approval
func (s *DestructionService) ListPendingApproval(ctx context.Context, filter ListFilter) ([]DestructionResponse, int64, error) {
	filter.Status = string(inventory.DestructionStatusCompleted)
	return s.List(ctx, filter)
}

// ListEligibleBatches lists expired or recalled batches that still hold stock
func (s *DestructionService) ListEligibleBatches(ctx context.Context, filter ListFilter) ([]BatchResponse, error) {
	batches, err := s.batchRepo.FindEligibleForDestruction(ctx, s.now().UTC(), filter.toFilter())
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches), nil
}

// ===================== Helpers =====================

func (s *DestructionService) withReportURL(ctx context.Context, response *DestructionResponse) {
	if s.storage == nil || response.ReportKey == "" {
		return
	}
	url, _, err := s.storage.GenerateDownloadURL(ctx, response.ReportKey, s.reportConfig.DownloadURLExpiry)
	if err != nil {
		s.logger.Warn("Failed to generate report download URL",
			zap.String("destruction_id", response.ID.String()),
			zap.Error(err))
		return
	}
	response.ReportURL = url
}

func reportKeyPrefix(id uuid.UUID) string {
	return path.Join("destructions", id.String()) + "/"
}

func reportObjectKey(d *inventory.Destruction, ext string) string {
	return reportKeyPrefix(d.ID) + fmt.Sprintf("%s-%d%s", d.Number, time.Now().UnixNano(), ext)
}

func destructionLineBatchIDs(lines []inventory.DestructionLine) []uuid.UUID {
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.BatchID
	}
	return ids
}

// loadBatches reads the referenced batches, soft-removed ones included
func loadBatches(ctx context.Context, repos TransactionalRepositories, ids []uuid.UUID) (map[uuid.UUID]*inventory.Batch, error) {
	batches := make(map[uuid.UUID]*inventory.Batch, len(ids))
	if len(ids) == 0 {
		return batches, nil
	}
	found, err := repos.BatchRepo().FindByIDs(ctx, sortedUnique(ids))
	if err != nil {
		return nil, err
	}
	for i := range found {
		batches[found[i].ID] = &found[i]
	}
	return batches, nil
}
