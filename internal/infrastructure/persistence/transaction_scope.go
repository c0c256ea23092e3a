package persistence

import (
	"context"

	appinv "github.com/pharmaledger/backend/internal/application/inventory"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/event"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to the callback shares one *gorm.DB transaction, so
// FOR UPDATE locks taken by one repository are held until Execute returns.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn inside a transaction and commits when fn returns nil.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) MedicineRepo() inventory.MedicineRepository {
	return NewGormMedicineRepository(r.tx)
}

func (r *gormTransactionalRepositories) BatchRepo() inventory.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

func (r *gormTransactionalRepositories) OpnameRepo() inventory.OpnameRepository {
	return NewGormOpnameRepository(r.tx)
}

func (r *gormTransactionalRepositories) DestructionRepo() inventory.DestructionRepository {
	return NewGormDestructionRepository(r.tx)
}

func (r *gormTransactionalRepositories) ScanLogRepo() inventory.ScanLogRepository {
	return NewGormScanLogRepository(r.tx)
}

func (r *gormTransactionalRepositories) AuditRepo() inventory.AuditRepository {
	return NewGormAuditRepository(r.tx)
}

func (r *gormTransactionalRepositories) OutboxRepo() shared.OutboxRepository {
	return event.NewGormOutboxRepository(r.tx)
}

var (
	_ appinv.TransactionScope          = (*GormTransactionScope)(nil)
	_ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
