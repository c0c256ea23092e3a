package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMedicineRepository implements MedicineRepository using GORM
type GormMedicineRepository struct {
	db *gorm.DB
}

// NewGormMedicineRepository creates a new GormMedicineRepository
func NewGormMedicineRepository(db *gorm.DB) *GormMedicineRepository {
	return &GormMedicineRepository{db: db}
}

// FindByID finds a medicine by its ID
func (r *GormMedicineRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Medicine, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a medicine with a row lock (SELECT ... FOR UPDATE)
func (r *GormMedicineRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Medicine, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormMedicineRepository) findOne(db *gorm.DB, id uuid.UUID) (*inventory.Medicine, error) {
	var model models.MedicineModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("medicine", id.String())
		}
		return nil, fmt.Errorf("find medicine: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByIDs finds multiple medicines by their IDs
func (r *GormMedicineRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]inventory.Medicine, error) {
	if len(ids) == 0 {
		return []inventory.Medicine{}, nil
	}
	var medModels []models.MedicineModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&medModels).Error; err != nil {
		return nil, fmt.Errorf("find medicines: %w", err)
	}
	return toMedicines(medModels), nil
}

// ExistsByCode checks if a medicine code is taken
func (r *GormMedicineRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MedicineModel{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll finds medicines matching the filter
func (r *GormMedicineRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Medicine, error) {
	var medModels []models.MedicineModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.MedicineModel{}), filter)
	if err := query.Find(&medModels).Error; err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	return toMedicines(medModels), nil
}

// Count counts medicines matching the filter
func (r *GormMedicineRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applySearch(r.db.WithContext(ctx).Model(&models.MedicineModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindLowStock finds active medicines whose total is at or below their minimum
func (r *GormMedicineRepository) FindLowStock(ctx context.Context, filter shared.Filter) ([]inventory.Medicine, error) {
	var medModels []models.MedicineModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.MedicineModel{}).
			Where("is_active = ? AND stock_total <= stock_minimum", true),
		filter,
	)
	if err := query.Find(&medModels).Error; err != nil {
		return nil, fmt.Errorf("list low stock medicines: %w", err)
	}
	return toMedicines(medModels), nil
}

// Save creates or updates a medicine
func (r *GormMedicineRepository) Save(ctx context.Context, medicine *inventory.Medicine) error {
	model := models.MedicineModelFromDomain(medicine)
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *GormMedicineRepository) applySearch(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if search, ok := filter.Filters["search"].(string); ok && search != "" {
		pattern := "%" + search + "%"
		query = query.Where("code LIKE ? OR name LIKE ? OR generic_name LIKE ?", pattern, pattern, pattern)
	}
	return query
}

// applyFilter applies filter options to the query
func (r *GormMedicineRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applySearch(query, filter)

	sortField := ValidateSortField(filter.OrderBy, MedicineSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}
	return query
}

func toMedicines(medModels []models.MedicineModel) []inventory.Medicine {
	medicines := make([]inventory.Medicine, len(medModels))
	for i, model := range medModels {
		medicines[i] = *model.ToDomain()
	}
	return medicines
}
