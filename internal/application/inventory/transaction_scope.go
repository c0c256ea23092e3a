package inventory

import (
	"context"

	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
)

// TransactionScope provides transactional access to ledger repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within a transaction.
// All repositories returned share the same underlying database transaction, so
// row locks taken through one of them are held until Execute returns.
type TransactionalRepositories interface {
	MedicineRepo() inventory.MedicineRepository
	BatchRepo() inventory.BatchRepository
	OpnameRepo() inventory.OpnameRepository
	DestructionRepo() inventory.DestructionRepository
	ScanLogRepo() inventory.ScanLogRepository
	AuditRepo() inventory.AuditRepository
	// OutboxRepo stores domain events in the same transaction as the change
	OutboxRepo() shared.OutboxRepository
}

// NoOpTransactionScope runs the function against fixed repositories without a transaction.
// Only suitable for tests.
type NoOpTransactionScope struct {
	Repos TransactionalRepositories
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s.Repos)
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
