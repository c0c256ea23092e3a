package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	batchstrategy "github.com/pharmaledger/backend/internal/infrastructure/strategy/batch"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	store        *memStore
	medicines    *MedicineService
	batches      *BatchService
	allocation   *AllocationService
	opnames      *OpnameService
	destructions *DestructionService
	audit        *AuditService
	actor        uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithStorage(t, nil)
}

func newTestEnvWithStorage(t *testing.T, storage ReportStorage) *testEnv {
	t.Helper()
	store := newMemStore()
	repos := memRepos{store}
	logger := zap.NewNop()
	ledger := NewStockLedger(logger)
	destructions := NewDestructionService(store, repos.DestructionRepo(), repos.BatchRepo(), ledger,
		storage, DefaultReportConfig(), logger)

	return &testEnv{
		store:        store,
		medicines:    NewMedicineService(store, repos.MedicineRepo(), ledger, logger),
		batches:      NewBatchService(store, repos.MedicineRepo(), repos.BatchRepo(), ledger, 0, logger),
		allocation:   NewAllocationService(store, repos.MedicineRepo(), repos.BatchRepo(), batchstrategy.NewFEFOBatchStrategy(), ledger, logger),
		opnames:      NewOpnameService(store, repos.OpnameRepo(), ledger, logger),
		destructions: destructions,
		audit:        NewAuditService(repos.ScanLogRepo(), repos.AuditRepo()),
		actor:        uuid.New(),
	}
}

func (e *testEnv) createMedicine(t *testing.T, code string, minimum int64) uuid.UUID {
	t.Helper()
	resp, err := e.medicines.Create(context.Background(), CreateMedicineInput{
		Code:          code,
		Name:          "Medicine " + code,
		Unit:          "tablet",
		StockMinimum:  minimum,
		PurchasePrice: decimal.NewFromInt(1000),
		SellingPrice:  decimal.NewFromInt(1500),
	})
	require.NoError(t, err)
	return resp.ID
}

func (e *testEnv) receive(t *testing.T, medicineID uuid.UUID, number string, quantity int64, expiresIn time.Duration) uuid.UUID {
	t.Helper()
	resp, err := e.batches.Receive(context.Background(), ReceiveBatchInput{
		MedicineID:  medicineID,
		BatchNumber: number,
		ExpiryDate:  time.Now().UTC().Add(expiresIn),
		Quantity:    quantity,
		UnitCost:    decimal.NewFromInt(1000),
		ActorID:     &e.actor,
	})
	require.NoError(t, err)
	return resp.ID
}

// seedLapsedBatch stores an active batch whose expiry date has already passed
func (e *testEnv) seedLapsedBatch(t *testing.T, medicineID uuid.UUID, number string, quantity int64) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	b, err := inventory.NewBatch(inventory.BatchAttributes{
		MedicineID:   medicineID,
		BatchNumber:  number,
		ReceivedDate: now.AddDate(0, -6, 0),
		ExpiryDate:   now.AddDate(0, 0, -1),
		Quantity:     quantity,
		UnitCost:     decimal.NewFromInt(2500),
	})
	require.NoError(t, err)
	b.ClearDomainEvents()
	e.store.batches[b.ID] = *b

	_, err = e.medicines.RecomputeTotal(context.Background(), medicineID)
	require.NoError(t, err)
	return b.ID
}

func (e *testEnv) removeBatch(id uuid.UUID) {
	b := e.store.batches[id]
	removedAt := time.Now().UTC()
	b.DeletedAt = &removedAt
	e.store.batches[id] = b
}
