package inventory

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) completedOpname(t *testing.T, lines ...inventory.OpnameLine) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	o, err := e.opnames.Create(ctx, CreateOpnameInput{
		Unit:              "Central Pharmacy",
		ResponsiblePerson: "Apt. Rina",
		Lines:             lines,
		ActorID:           e.actor,
	})
	require.NoError(t, err)
	_, err = e.opnames.Start(ctx, o.ID, e.actor)
	require.NoError(t, err)
	_, err = e.opnames.Complete(ctx, o.ID, "Counted by two pharmacists", e.actor)
	require.NoError(t, err)
	return o.ID
}

func TestOpnameService_Create(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	medicineID := env.createMedicine(t, "AMX500", 0)
	a := env.receive(t, medicineID, "A", 50, 90*day)
	b := env.receive(t, medicineID, "B", 30, 120*day)

	t.Run("snapshots the system quantity of every line", func(t *testing.T) {
		o, err := env.opnames.Create(ctx, CreateOpnameInput{
			Unit: "Central Pharmacy",
			Lines: []inventory.OpnameLine{
				{BatchID: a, PhysicalQuantity: 45},
				{BatchID: b, PhysicalQuantity: 30},
			},
			ActorID: env.actor,
		})
		require.NoError(t, err)
		assert.Equal(t, string(inventory.OpnameStatusDraft), o.Status)
		assert.True(t, strings.HasPrefix(o.Number, "SO-"))
		assert.True(t, strings.HasSuffix(o.Number, "-0001"))
		require.Len(t, o.Details, 2)
		assert.Equal(t, int64(50), o.Details[0].SystemQuantity)
		assert.Equal(t, int64(-5), o.Details[0].Discrepancy)
		assert.Equal(t, int64(0), o.Details[1].Discrepancy)
		assert.Equal(t, int64(-5), o.TotalDiscrepancy)
	})

	t.Run("numbers opnames per day", func(t *testing.T) {
		o, err := env.opnames.Create(ctx, CreateOpnameInput{Unit: "Ward 3", ActorID: env.actor})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(o.Number, "-0002"))
	})

	t.Run("rejects an unknown batch", func(t *testing.T) {
		_, err := env.opnames.Create(ctx, CreateOpnameInput{
			Unit:    "Ward 3",
			Lines:   []inventory.OpnameLine{{BatchID: uuid.New(), PhysicalQuantity: 1}},
			ActorID: env.actor,
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects a batch counted twice", func(t *testing.T) {
		_, err := env.opnames.Create(ctx, CreateOpnameInput{
			Unit: "Ward 3",
			Lines: []inventory.OpnameLine{
				{BatchID: a, PhysicalQuantity: 1},
				{BatchID: a, PhysicalQuantity: 2},
			},
			ActorID: env.actor,
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestOpnameService_Workflow(t *testing.T) {
	ctx := context.Background()

	t.Run("enforces the status order", func(t *testing.T) {
		env := newTestEnv(t)
		medicineID := env.createMedicine(t, "AMX500", 0)
		a := env.receive(t, medicineID, "A", 50, 90*day)

		o, err := env.opnames.Create(ctx, CreateOpnameInput{
			Unit:    "Central Pharmacy",
			Lines:   []inventory.OpnameLine{{BatchID: a, PhysicalQuantity: 45}},
			ActorID: env.actor,
		})
		require.NoError(t, err)

		_, err = env.opnames.Approve(ctx, o.ID, env.actor)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		_, err = env.opnames.Complete(ctx, o.ID, "report", env.actor)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)

		_, err = env.opnames.Start(ctx, o.ID, env.actor)
		require.NoError(t, err)

		_, err = env.opnames.ReplaceDetails(ctx, o.ID, []inventory.OpnameLine{{BatchID: a, PhysicalQuantity: 1}})
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		_, err = env.opnames.Complete(ctx, o.ID, "  ", env.actor)
		assert.ErrorIs(t, err, shared.ErrValidation)

		resp, err := env.opnames.Complete(ctx, o.ID, "Counted", env.actor)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.OpnameStatusCompleted), resp.Status)

		transitions := env.store.auditsFor(inventory.OpnameSubject(o.ID))
		require.Len(t, transitions, 3)
		assert.Equal(t, inventory.AuditActionTransition, transitions[2].Action)
		assert.Equal(t, int64(50), env.store.batch(a).AvailableQuantity)
	})

	t.Run("replaces draft lines with a fresh snapshot", func(t *testing.T) {
		env := newTestEnv(t)
		medicineID := env.createMedicine(t, "AMX500", 0)
		a := env.receive(t, medicineID, "A", 50, 90*day)
		b := env.receive(t, medicineID, "B", 30, 90*day)

		o, err := env.opnames.Create(ctx, CreateOpnameInput{
			Unit:    "Central Pharmacy",
			Lines:   []inventory.OpnameLine{{BatchID: a, PhysicalQuantity: 45}},
			ActorID: env.actor,
		})
		require.NoError(t, err)

		resp, err := env.opnames.ReplaceDetails(ctx, o.ID, []inventory.OpnameLine{{BatchID: b, PhysicalQuantity: 28}})
		require.NoError(t, err)
		require.Len(t, resp.Details, 1)
		assert.Equal(t, b, resp.Details[0].BatchID)
		assert.Equal(t, int64(30), resp.Details[0].SystemQuantity)
	})
}

func TestOpnameService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("overwrites every batch with its physical count", func(t *testing.T) {
		env := newTestEnv(t)
		medicineID := env.createMedicine(t, "AMX500", 0)
		a := env.receive(t, medicineID, "A", 50, 90*day)
		b := env.receive(t, medicineID, "B", 30, 120*day)
		id := env.completedOpname(t,
			inventory.OpnameLine{BatchID: a, PhysicalQuantity: 45},
			inventory.OpnameLine{BatchID: b, PhysicalQuantity: 30},
		)

		resp, err := env.opnames.Approve(ctx, id, env.actor)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.OpnameStatusApproved), resp.Status)
		assert.Equal(t, &env.actor, resp.ApprovedBy)
		assert.NotNil(t, resp.ApprovedAt)

		assert.Equal(t, int64(45), env.store.batch(a).AvailableQuantity)
		assert.Equal(t, int64(30), env.store.batch(b).AvailableQuantity)
		assert.Equal(t, int64(75), env.store.medicine(medicineID).StockTotal)

		audits := env.store.auditsFor(inventory.BatchSubject(a))
		require.Len(t, audits, 2)
		assert.Equal(t, inventory.AuditActionReconciled, audits[1].Action)
		assert.Equal(t, int64(-5), audits[1].Delta)
		require.NotNil(t, audits[1].Source)
		assert.Equal(t, inventory.OpnameSubject(id), *audits[1].Source)
		assert.Len(t, env.store.auditsFor(inventory.BatchSubject(b)), 1)

		assert.Len(t, env.store.outboxOfType(inventory.EventTypeOpnameApproved), 1)
		for _, d := range resp.Details {
			assert.False(t, d.Drift)
			require.NotNil(t, d.QuantityAtApproval)
		}
	})

	t.Run("flags drift since the snapshot and still overwrites", func(t *testing.T) {
		env := newTestEnv(t)
		medicineID := env.createMedicine(t, "AMX500", 0)
		a := env.receive(t, medicineID, "A", 50, 90*day)
		id := env.completedOpname(t, inventory.OpnameLine{BatchID: a, PhysicalQuantity: 45})

		_, err := env.allocation.Dispense(ctx, DispenseInput{MedicineID: medicineID, Quantity: 10, Reference: "RX-9"})
		require.NoError(t, err)

		resp, err := env.opnames.Approve(ctx, id, env.actor)
		require.NoError(t, err)
		require.Len(t, resp.Details, 1)
		assert.True(t, resp.Details[0].Drift)
		assert.Equal(t, int64(40), *resp.Details[0].QuantityAtApproval)
		assert.Equal(t, int64(45), env.store.batch(a).AvailableQuantity)
	})

	t.Run("fails as a whole on a removed batch", func(t *testing.T) {
		env := newTestEnv(t)
		medicineID := env.createMedicine(t, "AMX500", 0)
		a := env.receive(t, medicineID, "A", 50, 90*day)
		b := env.receive(t, medicineID, "B", 30, 120*day)
		id := env.completedOpname(t,
			inventory.OpnameLine{BatchID: a, PhysicalQuantity: 45},
			inventory.OpnameLine{BatchID: b, PhysicalQuantity: 20},
		)
		env.removeBatch(b)

		_, err := env.opnames.Approve(ctx, id, env.actor)
		assert.ErrorIs(t, err, shared.ErrStaleReference)

		o, err := env.opnames.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.OpnameStatusCompleted), o.Status)
		assert.Equal(t, int64(50), env.store.batch(a).AvailableQuantity)
		assert.Empty(t, env.store.outboxOfType(inventory.EventTypeOpnameApproved))
	})

	t.Run("count above the initial quantity is rejected at create", func(t *testing.T) {
		env := newTestEnv(t)
		medicineID := env.createMedicine(t, "AMX500", 0)
		a := env.receive(t, medicineID, "A", 50, 90*day)
		b := env.receive(t, medicineID, "B", 30, 120*day)

		_, err := env.opnames.Create(ctx, CreateOpnameInput{
			Unit: "Central Pharmacy",
			Lines: []inventory.OpnameLine{
				{BatchID: a, PhysicalQuantity: 40},
				{BatchID: b, PhysicalQuantity: 31},
			},
			ActorID: env.actor,
		})

		require.ErrorIs(t, err, shared.ErrValidation)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, b.String(), domainErr.EntityID)
		_, total, err := env.opnames.List(ctx, ListFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Equal(t, int64(50), env.store.batch(a).AvailableQuantity)
	})

	t.Run("count above the initial quantity is rejected on replace", func(t *testing.T) {
		env := newTestEnv(t)
		medicineID := env.createMedicine(t, "AMX500", 0)
		a := env.receive(t, medicineID, "A", 50, 90*day)
		o, err := env.opnames.Create(ctx, CreateOpnameInput{Unit: "Central Pharmacy", ActorID: env.actor})
		require.NoError(t, err)

		_, err = env.opnames.ReplaceDetails(ctx, o.ID, []inventory.OpnameLine{{BatchID: a, PhysicalQuantity: 51}})
		assert.ErrorIs(t, err, shared.ErrValidation)

		resp, err := env.opnames.ReplaceDetails(ctx, o.ID, []inventory.OpnameLine{{BatchID: a, PhysicalQuantity: 50}})
		require.NoError(t, err)
		require.Len(t, resp.Details, 1)
	})
}

func TestOpnameService_List(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	medicineID := env.createMedicine(t, "AMX500", 0)
	a := env.receive(t, medicineID, "A", 50, 90*day)

	_, err := env.opnames.Create(ctx, CreateOpnameInput{Unit: "Ward 1", ActorID: env.actor})
	require.NoError(t, err)
	completed := env.completedOpname(t, inventory.OpnameLine{BatchID: a, PhysicalQuantity: 50})

	all, total, err := env.opnames.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	pending, total, err := env.opnames.ListPendingApproval(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)
	assert.Equal(t, completed, pending[0].ID)

	_, _, err = env.opnames.List(ctx, ListFilter{Status: "archived"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
