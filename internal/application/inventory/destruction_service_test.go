package inventory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReportStorage is a mock implementation of ReportStorage
type MockReportStorage struct {
	mock.Mock
}

func (m *MockReportStorage) GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, storageKey, contentType, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockReportStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, storageKey, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockReportStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	args := m.Called(ctx, storageKey)
	return args.Bool(0), args.Error(1)
}

func destructionInput(actor uuid.UUID, lines ...inventory.DestructionLine) CreateDestructionInput {
	return CreateDestructionInput{
		ResponsiblePerson: "Apt. Rina",
		Location:          "Incinerator B",
		Method:            "incineration",
		Witnesses:         []string{"Budi", " ", "Sari"},
		Lines:             lines,
		ActorID:           actor,
	}
}

func TestDestructionService_Create(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	medicineID := env.createMedicine(t, "AMX500", 0)
	lapsed := env.seedLapsedBatch(t, medicineID, "OLD", 10)
	fresh := env.receive(t, medicineID, "NEW", 4, 90*day)

	t.Run("values every line at acquisition cost", func(t *testing.T) {
		resp, err := env.destructions.Create(ctx, destructionInput(env.actor,
			inventory.DestructionLine{BatchID: lapsed, Quantity: 4, Condition: "expired"},
		))
		require.NoError(t, err)
		assert.Equal(t, string(inventory.DestructionStatusDraft), resp.Status)
		assert.True(t, strings.HasPrefix(resp.Number, "DST-"))
		assert.Equal(t, []string{"Budi", "Sari"}, resp.Witnesses)
		require.Len(t, resp.Details, 1)
		assert.True(t, decimal.NewFromInt(10000).Equal(resp.Details[0].AcquisitionValue))
		assert.Equal(t, int64(10), env.store.batch(lapsed).AvailableQuantity)
	})

	t.Run("reports every offending line together", func(t *testing.T) {
		_, err := env.destructions.Create(ctx, destructionInput(env.actor,
			inventory.DestructionLine{BatchID: lapsed, Quantity: 11},
			inventory.DestructionLine{BatchID: fresh, Quantity: 5},
		))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Contains(t, err.Error(), lapsed.String())
		assert.Contains(t, err.Error(), fresh.String())
	})

	t.Run("rejects a zero quantity", func(t *testing.T) {
		_, err := env.destructions.Create(ctx, destructionInput(env.actor,
			inventory.DestructionLine{BatchID: lapsed, Quantity: 0},
		))
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects a removed batch as stale", func(t *testing.T) {
		gone := env.receive(t, medicineID, "GONE", 3, 90*day)
		env.removeBatch(gone)
		_, err := env.destructions.Create(ctx, destructionInput(env.actor,
			inventory.DestructionLine{BatchID: gone, Quantity: 1},
		))
		assert.ErrorIs(t, err, shared.ErrStaleReference)
	})
}

func TestDestructionService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the destroyed quantities", func(t *testing.T) {
		env := newTestEnv(t)
		medicineID := env.createMedicine(t, "AMX500", 0)
		lapsed := env.seedLapsedBatch(t, medicineID, "OLD", 10)
		_, err := env.batches.ExpireBatches(ctx)
		require.NoError(t, err)

		d, err := env.destructions.Create(ctx, destructionInput(env.actor,
			inventory.DestructionLine{BatchID: lapsed, Quantity: 10},
		))
		require.NoError(t, err)

		_, err = env.destructions.Approve(ctx, d.ID, env.actor)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)

		_, err = env.destructions.Complete(ctx, d.ID, env.actor)
		require.NoError(t, err)

		resp, err := env.destructions.Approve(ctx, d.ID, env.actor)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.DestructionStatusApproved), resp.Status)

		batch := env.store.batch(lapsed)
		assert.Equal(t, int64(0), batch.AvailableQuantity)
		assert.Equal(t, inventory.BatchStatusEmpty, batch.Status)

		audits := env.store.auditsFor(inventory.BatchSubject(lapsed))
		last := audits[len(audits)-1]
		assert.Equal(t, inventory.AuditActionDestroyed, last.Action)
		assert.Equal(t, int64(-10), last.Delta)
		require.NotNil(t, last.Source)
		assert.Equal(t, inventory.DestructionSubject(d.ID), *last.Source)

		assert.Len(t, env.store.outboxOfType(inventory.EventTypeDestructionApproved), 1)
		assert.Len(t, env.store.auditsFor(inventory.DestructionSubject(d.ID)), 3)
	})

	t.Run("re-checks stock at approval", func(t *testing.T) {
		env := newTestEnv(t)
		medicineID := env.createMedicine(t, "AMX500", 0)
		damaged := env.receive(t, medicineID, "DMG", 10, 90*day)

		input := destructionInput(env.actor, inventory.DestructionLine{BatchID: damaged, Quantity: 8})
		input.Reason = inventory.DestructionReasonDamaged
		d, err := env.destructions.Create(ctx, input)
		require.NoError(t, err)
		_, err = env.destructions.Complete(ctx, d.ID, env.actor)
		require.NoError(t, err)

		_, err = env.allocation.Dispense(ctx, DispenseInput{MedicineID: medicineID, Quantity: 5})
		require.NoError(t, err)

		_, err = env.destructions.Approve(ctx, d.ID, env.actor)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Equal(t, int64(5), env.store.batch(damaged).AvailableQuantity)

		got, err := env.destructions.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.DestructionStatusCompleted), got.Status)
	})
}

func TestDestructionService_Reports(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, *MockReportStorage, uuid.UUID) {
		storage := new(MockReportStorage)
		env := newTestEnvWithStorage(t, storage)
		medicineID := env.createMedicine(t, "AMX500", 0)
		lapsed := env.seedLapsedBatch(t, medicineID, "OLD", 10)
		d, err := env.destructions.Create(ctx, destructionInput(env.actor,
			inventory.DestructionLine{BatchID: lapsed, Quantity: 2},
		))
		require.NoError(t, err)
		return env, storage, d.ID
	}

	t.Run("issues an upload URL under the destruction prefix", func(t *testing.T) {
		env, storage, id := setup(t)
		expires := time.Now().Add(15 * time.Minute)
		storage.On("GenerateUploadURL", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "destructions/"+id.String()+"/") && strings.HasSuffix(key, ".pdf")
		}), "application/pdf", 15*time.Minute).Return("https://s3.local/upload", expires, nil)

		resp, err := env.destructions.RequestReportUpload(ctx, id, "application/pdf")
		require.NoError(t, err)
		assert.Equal(t, "https://s3.local/upload", resp.UploadURL)
		assert.Equal(t, expires, resp.ExpiresAt)
		storage.AssertExpectations(t)
	})

	t.Run("rejects an unsupported content type", func(t *testing.T) {
		env, storage, id := setup(t)
		_, err := env.destructions.RequestReportUpload(ctx, id, "text/html")
		assert.ErrorIs(t, err, shared.ErrValidation)
		storage.AssertNotCalled(t, "GenerateUploadURL")
	})

	t.Run("requires the object to exist before attaching", func(t *testing.T) {
		env, storage, id := setup(t)
		key := "destructions/" + id.String() + "/report.pdf"
		storage.On("ObjectExists", mock.Anything, key).Return(false, nil)

		_, err := env.destructions.AttachReport(ctx, id, key)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "UPLOAD_NOT_FOUND", domainErr.Code)
	})

	t.Run("rejects a key outside the destruction prefix", func(t *testing.T) {
		env, _, id := setup(t)
		_, err := env.destructions.AttachReport(ctx, id, "destructions/"+uuid.NewString()+"/x.pdf")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("attaches the report and signs a download URL", func(t *testing.T) {
		env, storage, id := setup(t)
		key := "destructions/" + id.String() + "/report.pdf"
		storage.On("ObjectExists", mock.Anything, key).Return(true, nil)
		storage.On("GenerateDownloadURL", mock.Anything, key, time.Hour).
			Return("https://s3.local/download", time.Now().Add(time.Hour), nil)

		resp, err := env.destructions.AttachReport(ctx, id, key)
		require.NoError(t, err)
		assert.Equal(t, key, resp.ReportKey)
		assert.Equal(t, "https://s3.local/download", resp.ReportURL)

		got, err := env.destructions.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "https://s3.local/download", got.ReportURL)
	})

	t.Run("keeps the response when signing fails", func(t *testing.T) {
		env, storage, id := setup(t)
		key := "destructions/" + id.String() + "/report.pdf"
		storage.On("ObjectExists", mock.Anything, key).Return(true, nil)
		storage.On("GenerateDownloadURL", mock.Anything, key, time.Hour).
			Return("", time.Time{}, errors.New("signer down"))

		resp, err := env.destructions.AttachReport(ctx, id, key)
		require.NoError(t, err)
		assert.Empty(t, resp.ReportURL)
	})

	t.Run("fails without storage", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.destructions.RequestReportUpload(ctx, uuid.New(), "application/pdf")
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "STORAGE_UNAVAILABLE", domainErr.Code)
	})
}

func TestDestructionService_Queries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	medicineID := env.createMedicine(t, "AMX500", 0)
	lapsed := env.seedLapsedBatch(t, medicineID, "OLD", 10)
	recalled := env.receive(t, medicineID, "RCL", 5, 90*day)
	env.receive(t, medicineID, "NEW", 5, 90*day)
	_, err := env.batches.Recall(ctx, recalled, "manufacturer notice", nil)
	require.NoError(t, err)

	eligible, err := env.destructions.ListEligibleBatches(ctx, ListFilter{})
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(eligible))
	for i, b := range eligible {
		ids[i] = b.ID
	}
	assert.ElementsMatch(t, []uuid.UUID{lapsed, recalled}, ids)

	d, err := env.destructions.Create(ctx, destructionInput(env.actor,
		inventory.DestructionLine{BatchID: recalled, Quantity: 5},
	))
	require.NoError(t, err)
	_, err = env.destructions.Complete(ctx, d.ID, env.actor)
	require.NoError(t, err)

	pending, total, err := env.destructions.ListPendingApproval(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)
	assert.Equal(t, d.ID, pending[0].ID)
}
