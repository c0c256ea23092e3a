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

// GormDestructionRepository implements DestructionRepository using GORM
type GormDestructionRepository struct {
	db *gorm.DB
}

// NewGormDestructionRepository creates a new GormDestructionRepository
func NewGormDestructionRepository(db *gorm.DB) *GormDestructionRepository {
	return &GormDestructionRepository{db: db}
}

// FindByID finds a destruction with its details
func (r *GormDestructionRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Destruction, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a destruction and locks the header row
func (r *GormDestructionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Destruction, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormDestructionRepository) findOne(db *gorm.DB, id uuid.UUID) (*inventory.Destruction, error) {
	var model models.DestructionModel
	if err := db.
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("destruction", id.String())
		}
		return nil, fmt.Errorf("find destruction: %w", err)
	}
	return model.ToDomain(), nil
}

// FindAll finds destructions matching the filter
func (r *GormDestructionRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Destruction, error) {
	var desModels []models.DestructionModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DestructionModel{}), filter)
	if err := query.Preload("Details").Find(&desModels).Error; err != nil {
		return nil, fmt.Errorf("list destructions: %w", err)
	}
	destructions := make([]inventory.Destruction, len(desModels))
	for i, model := range desModels {
		destructions[i] = *model.ToDomain()
	}
	return destructions, nil
}

// Count counts destructions matching the filter
func (r *GormDestructionRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyStatus(r.db.WithContext(ctx).Model(&models.DestructionModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// NextSequence returns the next daily document sequence for date
func (r *GormDestructionRepository) NextSequence(ctx context.Context, date time.Time) (int, error) {
	return nextDocumentSequence(ctx, r.db, &models.DestructionModel{}, inventory.DestructionNumberPrefix(date))
}

// Save creates or updates the header and upserts its details
func (r *GormDestructionRepository) Save(ctx context.Context, destruction *inventory.Destruction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.DestructionModelFromDomain(destruction)
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}

		detailIDs := make([]uuid.UUID, 0, len(model.Details))
		for _, detail := range model.Details {
			detailIDs = append(detailIDs, detail.ID)
		}
		stale := tx.Where("destruction_id = ?", destruction.ID)
		if len(detailIDs) > 0 {
			stale = stale.Where("id NOT IN ?", detailIDs)
		}
		if err := stale.Delete(&models.DestructionDetailModel{}).Error; err != nil {
			return err
		}

		for i := range model.Details {
			if err := tx.Save(&model.Details[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceDetails deletes the existing details and inserts the given ones
func (r *GormDestructionRepository) ReplaceDetails(ctx context.Context, destruction *inventory.Destruction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.DestructionModelFromDomain(destruction)
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("destruction_id = ?", destruction.ID).Delete(&models.DestructionDetailModel{}).Error; err != nil {
			return err
		}
		if len(model.Details) == 0 {
			return nil
		}
		return tx.Create(&model.Details).Error
	})
}

func (r *GormDestructionRepository) applyStatus(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	return query
}

// applyFilter applies filter options to the query
func (r *GormDestructionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyStatus(query, filter)

	sortField := ValidateSortField(filter.OrderBy, DestructionSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}
	return query
}
