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

// GormOpnameRepository implements OpnameRepository using GORM
type GormOpnameRepository struct {
	db *gorm.DB
}

// NewGormOpnameRepository creates a new GormOpnameRepository
func NewGormOpnameRepository(db *gorm.DB) *GormOpnameRepository {
	return &GormOpnameRepository{db: db}
}

// FindByID finds a stock opname with its details
func (r *GormOpnameRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockOpname, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a stock opname and locks the header row
func (r *GormOpnameRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.StockOpname, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormOpnameRepository) findOne(db *gorm.DB, id uuid.UUID) (*inventory.StockOpname, error) {
	var model models.StockOpnameModel
	if err := db.
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("stock opname", id.String())
		}
		return nil, fmt.Errorf("find stock opname: %w", err)
	}
	return model.ToDomain(), nil
}

// FindAll finds stock opnames matching the filter
func (r *GormOpnameRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.StockOpname, error) {
	var opModels []models.StockOpnameModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.StockOpnameModel{}), filter)
	if err := query.Preload("Details").Find(&opModels).Error; err != nil {
		return nil, fmt.Errorf("list stock opnames: %w", err)
	}
	opnames := make([]inventory.StockOpname, len(opModels))
	for i, model := range opModels {
		opnames[i] = *model.ToDomain()
	}
	return opnames, nil
}

// Count counts stock opnames matching the filter
func (r *GormOpnameRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyStatus(r.db.WithContext(ctx).Model(&models.StockOpnameModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// NextSequence returns the next daily document sequence for date
func (r *GormOpnameRepository) NextSequence(ctx context.Context, date time.Time) (int, error) {
	return nextDocumentSequence(ctx, r.db, &models.StockOpnameModel{}, inventory.OpnameNumberPrefix(date))
}

// Save creates or updates the header and upserts its details
func (r *GormOpnameRepository) Save(ctx context.Context, opname *inventory.StockOpname) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.StockOpnameModelFromDomain(opname)
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}

		detailIDs := make([]uuid.UUID, 0, len(model.Details))
		for _, detail := range model.Details {
			detailIDs = append(detailIDs, detail.ID)
		}
		stale := tx.Where("opname_id = ?", opname.ID)
		if len(detailIDs) > 0 {
			stale = stale.Where("id NOT IN ?", detailIDs)
		}
		if err := stale.Delete(&models.StockOpnameDetailModel{}).Error; err != nil {
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
func (r *GormOpnameRepository) ReplaceDetails(ctx context.Context, opname *inventory.StockOpname) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.StockOpnameModelFromDomain(opname)
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("opname_id = ?", opname.ID).Delete(&models.StockOpnameDetailModel{}).Error; err != nil {
			return err
		}
		if len(model.Details) == 0 {
			return nil
		}
		return tx.Create(&model.Details).Error
	})
}

func (r *GormOpnameRepository) applyStatus(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	return query
}

// applyFilter applies filter options to the query
func (r *GormOpnameRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyStatus(query, filter)

	sortField := ValidateSortField(filter.OrderBy, OpnameSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}
	return query
}
