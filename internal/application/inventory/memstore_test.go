package inventory

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
)

// memStore is an in-memory ledger store. Execute snapshots every table and
// restores the snapshot when the function fails, so tests can observe
// rollback the same way they would against a database.
type memStore struct {
	medicines    map[uuid.UUID]inventory.Medicine
	batches      map[uuid.UUID]inventory.Batch
	opnames      map[uuid.UUID]inventory.StockOpname
	destructions map[uuid.UUID]inventory.Destruction
	scanLogs     []inventory.ScanLog
	audits       []inventory.AuditEntry
	outbox       []shared.OutboxEntry

	// failOutbox makes the next outbox save fail
	failOutbox bool
	// lockedBatches records every LockByIDs call in order
	lockedBatches [][]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		medicines:    make(map[uuid.UUID]inventory.Medicine),
		batches:      make(map[uuid.UUID]inventory.Batch),
		opnames:      make(map[uuid.UUID]inventory.StockOpname),
		destructions: make(map[uuid.UUID]inventory.Destruction),
	}
}

type memSnapshot struct {
	medicines    map[uuid.UUID]inventory.Medicine
	batches      map[uuid.UUID]inventory.Batch
	opnames      map[uuid.UUID]inventory.StockOpname
	destructions map[uuid.UUID]inventory.Destruction
	scanLogs     int
	audits       int
	outbox       int
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		medicines:    maps.Clone(s.medicines),
		batches:      maps.Clone(s.batches),
		opnames:      maps.Clone(s.opnames),
		destructions: maps.Clone(s.destructions),
		scanLogs:     len(s.scanLogs),
		audits:       len(s.audits),
		outbox:       len(s.outbox),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.medicines = snap.medicines
	s.batches = snap.batches
	s.opnames = snap.opnames
	s.destructions = snap.destructions
	s.scanLogs = s.scanLogs[:snap.scanLogs]
	s.audits = s.audits[:snap.audits]
	s.outbox = s.outbox[:snap.outbox]
}

// Execute implements TransactionScope
func (s *memStore) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	snap := s.snapshot()
	if err := fn(memRepos{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) auditsFor(subject inventory.AuditSubject) []inventory.AuditEntry {
	var out []inventory.AuditEntry
	for _, e := range s.audits {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) outboxOfType(eventType string) []shared.OutboxEntry {
	var out []shared.OutboxEntry
	for _, e := range s.outbox {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) batch(id uuid.UUID) inventory.Batch {
	return s.batches[id]
}

func (s *memStore) medicine(id uuid.UUID) inventory.Medicine {
	return s.medicines[id]
}

type memRepos struct{ s *memStore }

func (r memRepos) MedicineRepo() inventory.MedicineRepository       { return memMedicineRepo{r.s} }
func (r memRepos) BatchRepo() inventory.BatchRepository             { return memBatchRepo{r.s} }
func (r memRepos) OpnameRepo() inventory.OpnameRepository           { return memOpnameRepo{r.s} }
func (r memRepos) DestructionRepo() inventory.DestructionRepository { return memDestructionRepo{r.s} }
func (r memRepos) ScanLogRepo() inventory.ScanLogRepository         { return memScanLogRepo{r.s} }
func (r memRepos) AuditRepo() inventory.AuditRepository             { return memAuditRepo{r.s} }
func (r memRepos) OutboxRepo() shared.OutboxRepository              { return memOutboxRepo{r.s} }

func paginate[T any](items []T, filter shared.Filter) []T {
	filter = filter.Normalize()
	start := min(filter.Offset(), len(items))
	end := min(start+filter.PageSize, len(items))
	return items[start:end]
}

// ===================== Medicines =====================

type memMedicineRepo struct{ s *memStore }

func (r memMedicineRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Medicine, error) {
	m, ok := r.s.medicines[id]
	if !ok {
		return nil, shared.NewNotFoundError("medicine", id.String())
	}
	m.ClearDomainEvents()
	return &m, nil
}

func (r memMedicineRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Medicine, error) {
	return r.FindByID(ctx, id)
}

func (r memMedicineRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]inventory.Medicine, error) {
	var out []inventory.Medicine
	for _, id := range ids {
		if m, ok := r.s.medicines[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memMedicineRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, m := range r.s.medicines {
		if m.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r memMedicineRepo) all() []inventory.Medicine {
	out := slices.Collect(maps.Values(r.s.medicines))
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (r memMedicineRepo) FindAll(_ context.Context, filter shared.Filter) ([]inventory.Medicine, error) {
	return paginate(r.all(), filter), nil
}

func (r memMedicineRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.s.medicines)), nil
}

func (r memMedicineRepo) FindLowStock(_ context.Context, filter shared.Filter) ([]inventory.Medicine, error) {
	var out []inventory.Medicine
	for _, m := range r.all() {
		if m.IsActive && m.IsLowStock() {
			out = append(out, m)
		}
	}
	return paginate(out, filter), nil
}

func (r memMedicineRepo) Save(_ context.Context, m *inventory.Medicine) error {
	stored := *m
	stored.ClearDomainEvents()
	r.s.medicines[m.ID] = stored
	return nil
}

// ===================== Batches =====================

type memBatchRepo struct{ s *memStore }

func sortBatchesFEFO(batches []inventory.Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}

func (r memBatchRepo) live(keep func(b inventory.Batch) bool) []inventory.Batch {
	var out []inventory.Batch
	for _, b := range r.s.batches {
		if !b.IsRemoved() && keep(b) {
			b.ClearDomainEvents()
			out = append(out, b)
		}
	}
	sortBatchesFEFO(out)
	return out
}

func (r memBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Batch, error) {
	b, ok := r.s.batches[id]
	if !ok || b.IsRemoved() {
		return nil, shared.NewNotFoundError("batch", id.String())
	}
	b.ClearDomainEvents()
	return &b, nil
}

func (r memBatchRepo) FindByCode(_ context.Context, code string) (*inventory.Batch, error) {
	found := r.live(func(b inventory.Batch) bool { return b.Code == code })
	if len(found) == 0 {
		return nil, shared.NewNotFoundError("batch", code)
	}
	return &found[0], nil
}

func (r memBatchRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]inventory.Batch, error) {
	var out []inventory.Batch
	for _, id := range ids {
		if b, ok := r.s.batches[id]; ok {
			b.ClearDomainEvents()
			out = append(out, b)
		}
	}
	return out, nil
}

func (r memBatchRepo) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]inventory.Batch, error) {
	sorted := sortedUnique(ids)
	r.s.lockedBatches = append(r.s.lockedBatches, sorted)
	return r.FindByIDs(ctx, sorted)
}

func (r memBatchRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, b := range r.s.batches {
		if b.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r memBatchRepo) ExistsByBatchNumber(_ context.Context, medicineID uuid.UUID, batchNumber string) (bool, error) {
	for _, b := range r.s.batches {
		if b.MedicineID == medicineID && b.BatchNumber == batchNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r memBatchRepo) FindByMedicine(_ context.Context, medicineID uuid.UUID) ([]inventory.Batch, error) {
	return r.live(func(b inventory.Batch) bool { return b.MedicineID == medicineID }), nil
}

func (r memBatchRepo) FindAllocatable(_ context.Context, medicineID uuid.UUID) ([]inventory.Batch, error) {
	return r.live(func(b inventory.Batch) bool {
		return b.MedicineID == medicineID && b.Status == inventory.BatchStatusActive && b.AvailableQuantity > 0
	}), nil
}

func (r memBatchRepo) FindExpiringSoon(_ context.Context, now time.Time, days int, filter shared.Filter) ([]inventory.Batch, error) {
	return paginate(r.live(func(b inventory.Batch) bool {
		return b.Status == inventory.BatchStatusActive && b.AvailableQuantity > 0 && b.WillExpireWithin(now, days)
	}), filter), nil
}

func (r memBatchRepo) FindExpiredWithStock(_ context.Context, now time.Time, filter shared.Filter) ([]inventory.Batch, error) {
	return paginate(r.live(func(b inventory.Batch) bool {
		return b.AvailableQuantity > 0 && b.IsExpired(now)
	}), filter), nil
}

func (r memBatchRepo) FindEligibleForDestruction(_ context.Context, now time.Time, filter shared.Filter) ([]inventory.Batch, error) {
	return paginate(r.live(func(b inventory.Batch) bool {
		return b.AvailableQuantity > 0 && (b.IsExpired(now) || b.Status == inventory.BatchStatusExpired || b.Status == inventory.BatchStatusRecalled)
	}), filter), nil
}

func (r memBatchRepo) FindMedicinesWithLapsedBatches(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, b := range r.live(func(b inventory.Batch) bool {
		return b.Status == inventory.BatchStatusActive && b.IsExpired(now)
	}) {
		ids = append(ids, b.MedicineID)
	}
	return ids, nil
}

func (r memBatchRepo) LockLapsedByMedicine(_ context.Context, medicineID uuid.UUID, now time.Time) ([]inventory.Batch, error) {
	found := r.live(func(b inventory.Batch) bool {
		return b.MedicineID == medicineID && b.Status == inventory.BatchStatusActive && b.IsExpired(now)
	})
	sort.Slice(found, func(i, j int) bool { return bytes.Compare(found[i].ID[:], found[j].ID[:]) < 0 })
	return found, nil
}

func (r memBatchRepo) SumActiveAvailable(_ context.Context, medicineID uuid.UUID) (int64, error) {
	var total int64
	for _, b := range r.live(func(b inventory.Batch) bool {
		return b.MedicineID == medicineID && b.Status == inventory.BatchStatusActive
	}) {
		total += b.AvailableQuantity
	}
	return total, nil
}

func (r memBatchRepo) Statistics(_ context.Context, now time.Time, days int) (*inventory.BatchStatistics, error) {
	var stats inventory.BatchStatistics
	for _, b := range r.live(func(inventory.Batch) bool { return true }) {
		stats.Total++
		switch b.Status {
		case inventory.BatchStatusActive:
			if b.AvailableQuantity > 0 {
				stats.Available++
				if b.WillExpireWithin(now, days) {
					stats.ExpiringSoon++
				}
			}
		case inventory.BatchStatusExpired:
			stats.Expired++
		case inventory.BatchStatusEmpty:
			stats.Empty++
		case inventory.BatchStatusRecalled:
			stats.Recalled++
		}
	}
	return &stats, nil
}

func (r memBatchRepo) Save(_ context.Context, b *inventory.Batch) error {
	stored := *b
	stored.ClearDomainEvents()
	r.s.batches[b.ID] = stored
	return nil
}

// ===================== Workflow documents =====================

type memOpnameRepo struct{ s *memStore }

func (r memOpnameRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.StockOpname, error) {
	o, ok := r.s.opnames[id]
	if !ok {
		return nil, shared.NewNotFoundError("stock opname", id.String())
	}
	o.Details = slices.Clone(o.Details)
	o.ClearDomainEvents()
	return &o, nil
}

func (r memOpnameRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.StockOpname, error) {
	return r.FindByID(ctx, id)
}

func (r memOpnameRepo) filtered(filter shared.Filter) []inventory.StockOpname {
	var out []inventory.StockOpname
	for _, o := range r.s.opnames {
		if status, ok := filter.Filters["status"]; ok && string(o.Status) != status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (r memOpnameRepo) FindAll(_ context.Context, filter shared.Filter) ([]inventory.StockOpname, error) {
	return paginate(r.filtered(filter), filter), nil
}

func (r memOpnameRepo) Count(_ context.Context, filter shared.Filter) (int64, error) {
	return int64(len(r.filtered(filter))), nil
}

func (r memOpnameRepo) NextSequence(_ context.Context, date time.Time) (int, error) {
	seq := 1
	for _, o := range r.s.opnames {
		if o.OpnameDate.Format(time.DateOnly) == date.Format(time.DateOnly) {
			seq++
		}
	}
	return seq, nil
}

func (r memOpnameRepo) Save(_ context.Context, o *inventory.StockOpname) error {
	stored := *o
	stored.Details = slices.Clone(o.Details)
	stored.ClearDomainEvents()
	r.s.opnames[o.ID] = stored
	return nil
}

func (r memOpnameRepo) ReplaceDetails(ctx context.Context, o *inventory.StockOpname) error {
	return r.Save(ctx, o)
}

type memDestructionRepo struct{ s *memStore }

func (r memDestructionRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Destruction, error) {
	d, ok := r.s.destructions[id]
	if !ok {
		return nil, shared.NewNotFoundError("destruction", id.String())
	}
	d.Details = slices.Clone(d.Details)
	d.ClearDomainEvents()
	return &d, nil
}

func (r memDestructionRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*inventory.Destruction, error) {
	return r.FindByID(ctx, id)
}

func (r memDestructionRepo) filtered(filter shared.Filter) []inventory.Destruction {
	var out []inventory.Destruction
	for _, d := range r.s.destructions {
		if status, ok := filter.Filters["status"]; ok && string(d.Status) != status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (r memDestructionRepo) FindAll(_ context.Context, filter shared.Filter) ([]inventory.Destruction, error) {
	return paginate(r.filtered(filter), filter), nil
}

func (r memDestructionRepo) Count(_ context.Context, filter shared.Filter) (int64, error) {
	return int64(len(r.filtered(filter))), nil
}

func (r memDestructionRepo) NextSequence(_ context.Context, date time.Time) (int, error) {
	seq := 1
	for _, d := range r.s.destructions {
		if d.DestructionDate.Format(time.DateOnly) == date.Format(time.DateOnly) {
			seq++
		}
	}
	return seq, nil
}

func (r memDestructionRepo) Save(_ context.Context, d *inventory.Destruction) error {
	stored := *d
	stored.Details = slices.Clone(d.Details)
	stored.ClearDomainEvents()
	r.s.destructions[d.ID] = stored
	return nil
}

func (r memDestructionRepo) ReplaceDetails(ctx context.Context, d *inventory.Destruction) error {
	return r.Save(ctx, d)
}

// ===================== Append-only sinks =====================

type memScanLogRepo struct{ s *memStore }

func (r memScanLogRepo) Create(_ context.Context, log *inventory.ScanLog) error {
	r.s.scanLogs = append(r.s.scanLogs, *log)
	return nil
}

func (r memScanLogRepo) filtered(filter shared.Filter) []inventory.ScanLog {
	var out []inventory.ScanLog
	for _, l := range r.s.scanLogs {
		if result, ok := filter.Filters["result"]; ok && string(l.Result) != result {
			continue
		}
		if batchID, ok := filter.Filters["batch_id"]; ok && (l.BatchID == nil || *l.BatchID != batchID) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (r memScanLogRepo) FindAll(_ context.Context, filter shared.Filter) ([]inventory.ScanLog, error) {
	return paginate(r.filtered(filter), filter), nil
}

func (r memScanLogRepo) Count(_ context.Context, filter shared.Filter) (int64, error) {
	return int64(len(r.filtered(filter))), nil
}

func (r memScanLogRepo) Analytics(_ context.Context, q inventory.ScanAnalyticsQuery) (*inventory.ScanAnalytics, error) {
	out := &inventory.ScanAnalytics{
		ByResult: make(map[inventory.ScanResult]int64),
		ByMethod: make(map[inventory.ScanMethod]int64),
	}
	batchCounts := make(map[uuid.UUID]int64)
	medicineCounts := make(map[uuid.UUID]int64)
	dayCounts := make(map[string]int64)
	for _, l := range r.s.scanLogs {
		if !l.ScannedAt.Before(q.TrendSince) {
			dayCounts[l.ScannedAt.UTC().Format(inventory.DayLayout)]++
		}
		if q.Since != nil && l.ScannedAt.Before(*q.Since) {
			continue
		}
		out.Total++
		out.ByResult[l.Result]++
		out.ByMethod[l.Method]++
		if l.BatchID == nil {
			continue
		}
		if b, ok := r.s.batches[*l.BatchID]; ok {
			batchCounts[b.ID]++
			medicineCounts[b.MedicineID]++
		}
	}

	for id, n := range batchCounts {
		b := r.s.batches[id]
		out.TopBatches = append(out.TopBatches, inventory.BatchScanCount{
			BatchID: id, Code: b.Code, BatchNumber: b.BatchNumber, MedicineID: b.MedicineID, Count: n,
		})
	}
	sort.Slice(out.TopBatches, func(i, j int) bool {
		a, b := out.TopBatches[i], out.TopBatches[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Code < b.Code
	})
	for id, n := range medicineCounts {
		m := r.s.medicines[id]
		out.TopMedicines = append(out.TopMedicines, inventory.MedicineScanCount{
			MedicineID: id, Code: m.Code, Name: m.Name, Count: n,
		})
	}
	sort.Slice(out.TopMedicines, func(i, j int) bool {
		a, b := out.TopMedicines[i], out.TopMedicines[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Code < b.Code
	})
	if q.Top > 0 && len(out.TopBatches) > q.Top {
		out.TopBatches = out.TopBatches[:q.Top]
	}
	if q.Top > 0 && len(out.TopMedicines) > q.Top {
		out.TopMedicines = out.TopMedicines[:q.Top]
	}

	for day, n := range dayCounts {
		out.Trend = append(out.Trend, inventory.DailyScanCount{Day: day, Count: n})
	}
	sort.Slice(out.Trend, func(i, j int) bool { return out.Trend[i].Day < out.Trend[j].Day })
	return out, nil
}

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Create(_ context.Context, entries ...*inventory.AuditEntry) error {
	for _, e := range entries {
		r.s.audits = append(r.s.audits, *e)
	}
	return nil
}

func (r memAuditRepo) FindBySubject(_ context.Context, subject inventory.AuditSubject, filter shared.Filter) ([]inventory.AuditEntry, error) {
	out := r.s.auditsFor(subject)
	slices.Reverse(out)
	return paginate(out, filter), nil
}

func (r memAuditRepo) CountBySubject(_ context.Context, subject inventory.AuditSubject) (int64, error) {
	return int64(len(r.s.auditsFor(subject))), nil
}

type memOutboxRepo struct{ s *memStore }

var errOutboxUnavailable = errors.New("outbox unavailable")

func (r memOutboxRepo) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	if r.s.failOutbox {
		r.s.failOutbox = false
		return errOutboxUnavailable
	}
	for _, e := range entries {
		r.s.outbox = append(r.s.outbox, *e)
	}
	return nil
}

func (r memOutboxRepo) FindPending(_ context.Context, _ int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r memOutboxRepo) FindRetryable(_ context.Context, _ time.Time, _ int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r memOutboxRepo) MarkProcessing(_ context.Context, _ []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r memOutboxRepo) Update(_ context.Context, _ *shared.OutboxEntry) error {
	return nil
}

func (r memOutboxRepo) DeleteSentBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

var (
	_ TransactionScope             = (*memStore)(nil)
	_ TransactionalRepositories    = memRepos{}
	_ inventory.MedicineRepository = memMedicineRepo{}
	_ inventory.BatchRepository    = memBatchRepo{}
)
