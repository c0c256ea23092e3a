package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fefoOrder sorts batches first-expiry-first-out with a deterministic tie break
const fefoOrder = "expiry_date ASC, created_at ASC, id ASC"

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a live batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("batch", id.String())
		}
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByCode finds a live batch by its scanned identifier
func (r *GormBatchRepository) FindByCode(ctx context.Context, code string) (*inventory.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("batch", code)
		}
		return nil, fmt.Errorf("find batch by code: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByIDs finds batches by ID, including soft-removed ones
func (r *GormBatchRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]inventory.Batch, error) {
	if len(ids) == 0 {
		return []inventory.Batch{}, nil
	}
	var batchModels []models.BatchModel
	if err := r.db.WithContext(ctx).Unscoped().
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&batchModels).Error; err != nil {
		return nil, fmt.Errorf("find batches: %w", err)
	}
	return toBatches(batchModels), nil
}

// LockByIDs locks the batches with SELECT ... FOR UPDATE in ascending id order.
// Concurrent multi-batch mutations acquire their locks in the same order.
func (r *GormBatchRepository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]inventory.Batch, error) {
	if len(ids) == 0 {
		return []inventory.Batch{}, nil
	}
	var batchModels []models.BatchModel
	if err := r.db.WithContext(ctx).Unscoped().
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&batchModels).Error; err != nil {
		return nil, fmt.Errorf("lock batches: %w", err)
	}
	return toBatches(batchModels), nil
}

// ExistsByCode checks if an identifier is taken, removed batches included
func (r *GormBatchRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Unscoped().Model(&models.BatchModel{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsByBatchNumber checks if a batch number is taken for a medicine
func (r *GormBatchRepository) ExistsByBatchNumber(ctx context.Context, medicineID uuid.UUID, batchNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Unscoped().Model(&models.BatchModel{}).
		Where("medicine_id = ? AND batch_number = ?", medicineID, batchNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByMedicine lists live batches of a medicine in FEFO order
func (r *GormBatchRepository) FindByMedicine(ctx context.Context, medicineID uuid.UUID) ([]inventory.Batch, error) {
	var batchModels []models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("medicine_id = ?", medicineID).
		Order(fefoOrder).
		Find(&batchModels).Error; err != nil {
		return nil, fmt.Errorf("list batches of medicine: %w", err)
	}
	return toBatches(batchModels), nil
}

// FindAllocatable lists active batches of a medicine with stock left, in FEFO order
func (r *GormBatchRepository) FindAllocatable(ctx context.Context, medicineID uuid.UUID) ([]inventory.Batch, error) {
	var batchModels []models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("medicine_id = ? AND status = ? AND available_quantity > 0", medicineID, inventory.BatchStatusActive).
		Order(fefoOrder).
		Find(&batchModels).Error; err != nil {
		return nil, fmt.Errorf("list allocatable batches: %w", err)
	}
	return toBatches(batchModels), nil
}

// FindExpiringSoon lists active batches with stock expiring between now and now+days
func (r *GormBatchRepository) FindExpiringSoon(ctx context.Context, now time.Time, days int, filter shared.Filter) ([]inventory.Batch, error) {
	var batchModels []models.BatchModel
	query := r.applyPaging(
		r.db.WithContext(ctx).
			Where("status = ? AND available_quantity > 0", inventory.BatchStatusActive).
			Where("expiry_date >= ? AND expiry_date < ?", now, now.AddDate(0, 0, days)),
		filter,
	)
	if err := query.Order(fefoOrder).Find(&batchModels).Error; err != nil {
		return nil, fmt.Errorf("list expiring batches: %w", err)
	}
	return toBatches(batchModels), nil
}

// FindExpiredWithStock lists batches past their expiry that still hold stock
func (r *GormBatchRepository) FindExpiredWithStock(ctx context.Context, now time.Time, filter shared.Filter) ([]inventory.Batch, error) {
	var batchModels []models.BatchModel
	query := r.applyPaging(
		r.db.WithContext(ctx).
			Where("available_quantity > 0 AND expiry_date < ?", now),
		filter,
	)
	if err := query.Order(fefoOrder).Find(&batchModels).Error; err != nil {
		return nil, fmt.Errorf("list expired batches: %w", err)
	}
	return toBatches(batchModels), nil
}

// FindEligibleForDestruction lists expired or recalled batches that still hold stock
func (r *GormBatchRepository) FindEligibleForDestruction(ctx context.Context, now time.Time, filter shared.Filter) ([]inventory.Batch, error) {
	var batchModels []models.BatchModel
	query := r.applyPaging(
		r.db.WithContext(ctx).
			Where("available_quantity > 0").
			Where("(expiry_date < ? OR status IN ?)", now, []inventory.BatchStatus{inventory.BatchStatusExpired, inventory.BatchStatusRecalled}),
		filter,
	)
	if err := query.Order(fefoOrder).Find(&batchModels).Error; err != nil {
		return nil, fmt.Errorf("list destruction candidates: %w", err)
	}
	return toBatches(batchModels), nil
}

// FindMedicinesWithLapsedBatches returns medicines owning active batches past expiry
func (r *GormBatchRepository) FindMedicinesWithLapsedBatches(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Distinct("medicine_id").
		Where("status = ? AND expiry_date < ?", inventory.BatchStatusActive, now).
		Order("medicine_id ASC").
		Pluck("medicine_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("find medicines with lapsed batches: %w", err)
	}
	return ids, nil
}

// LockLapsedByMedicine locks the active batches of a medicine that are past expiry
func (r *GormBatchRepository) LockLapsedByMedicine(ctx context.Context, medicineID uuid.UUID, now time.Time) ([]inventory.Batch, error) {
	var batchModels []models.BatchModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("medicine_id = ? AND status = ? AND expiry_date < ?", medicineID, inventory.BatchStatusActive, now).
		Order("id ASC").
		Find(&batchModels).Error; err != nil {
		return nil, fmt.Errorf("lock lapsed batches: %w", err)
	}
	return toBatches(batchModels), nil
}

// SumActiveAvailable re-sums available quantity over active, live batches of a medicine
func (r *GormBatchRepository) SumActiveAvailable(ctx context.Context, medicineID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Select("COALESCE(SUM(available_quantity), 0)").
		Where("medicine_id = ? AND status = ?", medicineID, inventory.BatchStatusActive).
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("sum batch stock: %w", err)
	}
	return total, nil
}

// Statistics counts live batches by state in one pass over the table
func (r *GormBatchRepository) Statistics(ctx context.Context, now time.Time, days int) (*inventory.BatchStatistics, error) {
	var stats inventory.BatchStatistics
	err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = @active AND available_quantity > 0 THEN 1 ELSE 0 END), 0) AS available,
			COALESCE(SUM(CASE WHEN status = @expired THEN 1 ELSE 0 END), 0) AS expired,
			COALESCE(SUM(CASE WHEN status = @empty THEN 1 ELSE 0 END), 0) AS empty,
			COALESCE(SUM(CASE WHEN status = @recalled THEN 1 ELSE 0 END), 0) AS recalled,
			COALESCE(SUM(CASE WHEN status = @active AND available_quantity > 0
				AND expiry_date >= @now AND expiry_date < @until THEN 1 ELSE 0 END), 0) AS expiring_soon`,
			map[string]any{
				"active":   inventory.BatchStatusActive,
				"expired":  inventory.BatchStatusExpired,
				"empty":    inventory.BatchStatusEmpty,
				"recalled": inventory.BatchStatusRecalled,
				"now":      now,
				"until":    now.AddDate(0, 0, days),
			}).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("batch statistics: %w", err)
	}
	return &stats, nil
}

// Save creates or updates a batch
func (r *GormBatchRepository) Save(ctx context.Context, batch *inventory.Batch) error {
	model := models.BatchModelFromDomain(batch)
	err := r.db.WithContext(ctx).Unscoped().Save(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Batch identifier or number already exists").WithEntity(batch.Code)
	}
	return err
}

func (r *GormBatchRepository) applyPaging(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}
	return query
}

func toBatches(batchModels []models.BatchModel) []inventory.Batch {
	batches := make([]inventory.Batch, len(batchModels))
	for i, model := range batchModels {
		batches[i] = *model.ToDomain()
	}
	return batches
}
