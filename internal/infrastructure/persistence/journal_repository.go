package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormScanLogRepository implements ScanLogRepository using GORM.
// Scan logs are append-only.
type GormScanLogRepository struct {
	db *gorm.DB
}

// NewGormScanLogRepository creates a new GormScanLogRepository
func NewGormScanLogRepository(db *gorm.DB) *GormScanLogRepository {
	return &GormScanLogRepository{db: db}
}

// Create appends a scan log
func (r *GormScanLogRepository) Create(ctx context.Context, log *inventory.ScanLog) error {
	return r.db.WithContext(ctx).Create(models.ScanLogModelFromDomain(log)).Error
}

// FindAll finds scan logs matching the filter, newest first
func (r *GormScanLogRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.ScanLog, error) {
	var logModels []models.ScanLogModel
	query := r.applyConditions(r.db.WithContext(ctx).Model(&models.ScanLogModel{}), filter)

	sortField := ValidateSortField(filter.OrderBy, ScanLogSortFields, "scanned_at")
	query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}

	if err := query.Find(&logModels).Error; err != nil {
		return nil, fmt.Errorf("list scan logs: %w", err)
	}
	logs := make([]inventory.ScanLog, len(logModels))
	for i, model := range logModels {
		logs[i] = *model.ToDomain()
	}
	return logs, nil
}

// Count counts scan logs matching the filter
func (r *GormScanLogRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyConditions(r.db.WithContext(ctx).Model(&models.ScanLogModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormScanLogRepository) applyConditions(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if batchID, ok := filter.Filters["batch_id"]; ok {
		query = query.Where("batch_id = ?", batchID)
	}
	if result, ok := filter.Filters["result"]; ok {
		query = query.Where("result = ?", result)
	}
	if from, ok := filter.Filters["from"].(time.Time); ok {
		query = query.Where("scanned_at >= ?", from)
	}
	if to, ok := filter.Filters["to"].(time.Time); ok {
		query = query.Where("scanned_at <= ?", to)
	}
	return query
}

// defaultScanTop bounds the most-scanned lists when the query leaves it unset
const defaultScanTop = 10

type scanBucketRow struct {
	Bucket string
	Total  int64
}

type batchScanRow struct {
	BatchID     uuid.UUID
	Code        string
	BatchNumber string
	MedicineID  uuid.UUID
	ScanCount   int64
}

type medicineScanRow struct {
	MedicineID uuid.UUID
	Code       string
	Name       string
	ScanCount  int64
}

// Analytics runs the grouped reads behind the scan dashboard
func (r *GormScanLogRepository) Analytics(ctx context.Context, q inventory.ScanAnalyticsQuery) (*inventory.ScanAnalytics, error) {
	top := q.Top
	if top <= 0 {
		top = defaultScanTop
	}
	scans := func() *gorm.DB {
		query := r.db.WithContext(ctx).Table("scan_logs AS s")
		if q.Since != nil {
			query = query.Where("s.scanned_at >= ?", *q.Since)
		}
		return query
	}

	out := &inventory.ScanAnalytics{
		ByResult: make(map[inventory.ScanResult]int64),
		ByMethod: make(map[inventory.ScanMethod]int64),
	}
	if err := scans().Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}

	var buckets []scanBucketRow
	if err := scans().Select("s.result AS bucket, COUNT(*) AS total").
		Group("s.result").Scan(&buckets).Error; err != nil {
		return nil, fmt.Errorf("group scans by result: %w", err)
	}
	for _, b := range buckets {
		out.ByResult[inventory.ScanResult(b.Bucket)] = b.Total
	}

	buckets = nil
	if err := scans().Select("s.method AS bucket, COUNT(*) AS total").
		Group("s.method").Scan(&buckets).Error; err != nil {
		return nil, fmt.Errorf("group scans by method: %w", err)
	}
	for _, b := range buckets {
		out.ByMethod[inventory.ScanMethod(b.Bucket)] = b.Total
	}

	var batchRows []batchScanRow
	if err := scans().
		Select("s.batch_id AS batch_id, b.code AS code, b.batch_number AS batch_number, b.medicine_id AS medicine_id, COUNT(*) AS scan_count").
		Joins("JOIN batches AS b ON b.id = s.batch_id").
		Group("s.batch_id, b.code, b.batch_number, b.medicine_id").
		Order("scan_count DESC, b.code ASC").
		Limit(top).
		Scan(&batchRows).Error; err != nil {
		return nil, fmt.Errorf("most scanned batches: %w", err)
	}
	out.TopBatches = make([]inventory.BatchScanCount, len(batchRows))
	for i, row := range batchRows {
		out.TopBatches[i] = inventory.BatchScanCount{
			BatchID:     row.BatchID,
			Code:        row.Code,
			BatchNumber: row.BatchNumber,
			MedicineID:  row.MedicineID,
			Count:       row.ScanCount,
		}
	}

	var medicineRows []medicineScanRow
	if err := scans().
		Select("b.medicine_id AS medicine_id, m.code AS code, m.name AS name, COUNT(*) AS scan_count").
		Joins("JOIN batches AS b ON b.id = s.batch_id").
		Joins("JOIN medicines AS m ON m.id = b.medicine_id").
		Group("b.medicine_id, m.code, m.name").
		Order("scan_count DESC, m.code ASC").
		Limit(top).
		Scan(&medicineRows).Error; err != nil {
		return nil, fmt.Errorf("most scanned medicines: %w", err)
	}
	out.TopMedicines = make([]inventory.MedicineScanCount, len(medicineRows))
	for i, row := range medicineRows {
		out.TopMedicines[i] = inventory.MedicineScanCount{
			MedicineID: row.MedicineID,
			Code:       row.Code,
			Name:       row.Name,
			Count:      row.ScanCount,
		}
	}

	buckets = nil
	if err := r.db.WithContext(ctx).Table("scan_logs AS s").
		Select("CAST(DATE(s.scanned_at) AS TEXT) AS bucket, COUNT(*) AS total").
		Where("s.scanned_at >= ?", q.TrendSince).
		Group("CAST(DATE(s.scanned_at) AS TEXT)").
		Order("bucket ASC").
		Scan(&buckets).Error; err != nil {
		return nil, fmt.Errorf("daily scan trend: %w", err)
	}
	out.Trend = make([]inventory.DailyScanCount, len(buckets))
	for i, b := range buckets {
		out.Trend[i] = inventory.DailyScanCount{Day: b.Bucket, Count: b.Total}
	}
	return out, nil
}

// GormAuditRepository implements AuditRepository using GORM.
// Audit entries are append-only.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Create appends audit entries in one statement
func (r *GormAuditRepository) Create(ctx context.Context, entries ...*inventory.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	entryModels := make([]*models.AuditEntryModel, len(entries))
	for i, entry := range entries {
		entryModels[i] = models.AuditEntryModelFromDomain(entry)
	}
	return r.db.WithContext(ctx).Create(&entryModels).Error
}

// FindBySubject lists the entries of a subject, newest first
func (r *GormAuditRepository) FindBySubject(ctx context.Context, subject inventory.AuditSubject, filter shared.Filter) ([]inventory.AuditEntry, error) {
	var entryModels []models.AuditEntryModel
	sortField := ValidateSortField(filter.OrderBy, AuditEntrySortFields, "occurred_at")
	query := r.db.WithContext(ctx).
		Where("subject_kind = ? AND subject_id = ?", subject.Kind(), subject.ID()).
		Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}

	if err := query.Find(&entryModels).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	entries := make([]inventory.AuditEntry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// CountBySubject counts the entries of a subject
func (r *GormAuditRepository) CountBySubject(ctx context.Context, subject inventory.AuditSubject) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AuditEntryModel{}).
		Where("subject_kind = ? AND subject_id = ?", subject.Kind(), subject.ID()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
