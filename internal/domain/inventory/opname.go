package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
)

// AggregateTypeOpname is the aggregate type name of StockOpname
const AggregateTypeOpname = "StockOpname"

// OpnameStatus represents the status of a stock opname document
type OpnameStatus string

const (
	OpnameStatusDraft      OpnameStatus = "draft"
	OpnameStatusInProgress OpnameStatus = "in_progress"
	OpnameStatusCompleted  OpnameStatus = "completed"
	OpnameStatusApproved   OpnameStatus = "approved"
)

var opnameTransitions = transitionTable[OpnameStatus]{
	OpnameStatusDraft:      {ActionStart: OpnameStatusInProgress},
	OpnameStatusInProgress: {ActionComplete: OpnameStatusCompleted},
	OpnameStatusCompleted:  {ActionApprove: OpnameStatusApproved},
}

// IsValid checks if the status is a valid OpnameStatus
func (s OpnameStatus) IsValid() bool {
	switch s {
	case OpnameStatusDraft, OpnameStatusInProgress, OpnameStatusCompleted, OpnameStatusApproved:
		return true
	}
	return false
}

// String returns the string representation of OpnameStatus
func (s OpnameStatus) String() string {
	return string(s)
}

// Next returns the status reached by applying action, if the table allows it
func (s OpnameStatus) Next(action Action) (OpnameStatus, bool) {
	return opnameTransitions.next(s, action)
}

// FormatOpnameNumber renders SO-YYYYMMDD-NNNN
func FormatOpnameNumber(date time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", OpnameNumberPrefix(date), seq)
}

// OpnameNumberPrefix is the shared prefix of all numbers issued on date
func OpnameNumberPrefix(date time.Time) string {
	return "SO-" + date.Format("20060102") + "-"
}

// OpnameLine is a counted batch submitted by the user
type OpnameLine struct {
	BatchID          uuid.UUID
	PhysicalQuantity int64
	Note             string
}

// OpnameDetail is one counted batch of an opname
type OpnameDetail struct {
	ID                 uuid.UUID
	OpnameID           uuid.UUID
	BatchID            uuid.UUID
	SystemQuantity     int64 // available at the time the line was recorded
	PhysicalQuantity   int64
	Discrepancy        int64 // physical - system
	Note               string
	QuantityAtApproval *int64
	Drift              bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StockOpname is a physical count reconciling recorded batch quantities
// against what is on the shelf. It is the aggregate root of its details.
type StockOpname struct {
	shared.BaseAggregateRoot
	Number            string
	Unit              string
	OpnameDate        time.Time
	ResponsiblePerson string
	Status            OpnameStatus
	Notes             string
	Report            string
	ApprovedBy        *uuid.UUID
	ApprovedAt        *time.Time
	CreatedBy         uuid.UUID
	Details           []OpnameDetail
}

// OpnameHeader holds the header fields supplied on creation
type OpnameHeader struct {
	Number            string
	Unit              string
	OpnameDate        time.Time
	ResponsiblePerson string
	Notes             string
}

// NewStockOpname creates a draft opname
func NewStockOpname(header OpnameHeader, createdBy uuid.UUID) (*StockOpname, error) {
	if strings.TrimSpace(header.Number) == "" {
		return nil, shared.NewValidationError("opname number cannot be empty")
	}
	if strings.TrimSpace(header.Unit) == "" {
		return nil, shared.NewValidationError("opname unit cannot be empty")
	}
	if header.OpnameDate.IsZero() {
		return nil, shared.NewValidationError("opname date is required")
	}

	o := &StockOpname{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            header.Number,
		Unit:              header.Unit,
		OpnameDate:        header.OpnameDate,
		ResponsiblePerson: header.ResponsiblePerson,
		Status:            OpnameStatusDraft,
		Notes:             header.Notes,
		CreatedBy:         createdBy,
		Details:           make([]OpnameDetail, 0),
	}
	return o, nil
}

// CheckTransition returns InvalidStateTransition if action is not allowed now
func (o *StockOpname) CheckTransition(action Action) error {
	if _, ok := o.Status.Next(action); !ok {
		return shared.NewInvalidTransitionError("opname", o.ID.String(), string(action), string(o.Status))
	}
	return nil
}

func (o *StockOpname) apply(action Action) error {
	next, ok := o.Status.Next(action)
	if !ok {
		return shared.NewInvalidTransitionError("opname", o.ID.String(), string(action), string(o.Status))
	}
	o.Status = next
	o.Touch()
	o.IncrementVersion()
	return nil
}

// BatchSnapshot is the state of a batch a counted line is checked against
type BatchSnapshot struct {
	Available int64
	Initial   int64
}

// ReplaceDetails swaps the whole detail list. snapshot holds every
// referenced batch as read in the same transaction. A count above the
// batch's initial quantity can never be applied, so it is rejected here.
func (o *StockOpname) ReplaceDetails(lines []OpnameLine, snapshot map[uuid.UUID]BatchSnapshot) error {
	if o.Status != OpnameStatusDraft {
		return shared.NewInvalidTransitionError("opname", o.ID.String(), "edit", string(o.Status))
	}

	seen := make(map[uuid.UUID]struct{}, len(lines))
	now := time.Now().UTC()
	details := make([]OpnameDetail, 0, len(lines))
	for _, line := range lines {
		if line.BatchID == uuid.Nil {
			return shared.NewValidationError("batch id cannot be empty")
		}
		if _, dup := seen[line.BatchID]; dup {
			return shared.NewValidationError("batch %s appears more than once", line.BatchID).WithEntity(line.BatchID.String())
		}
		seen[line.BatchID] = struct{}{}

		if line.PhysicalQuantity < 0 {
			return shared.NewValidationError("physical quantity cannot be negative").WithEntity(line.BatchID.String())
		}
		batch, ok := snapshot[line.BatchID]
		if !ok {
			return shared.NewNotFoundError("batch", line.BatchID.String())
		}
		if line.PhysicalQuantity > batch.Initial {
			return shared.NewValidationError("batch %s: physical quantity %d exceeds initial quantity %d",
				line.BatchID, line.PhysicalQuantity, batch.Initial).WithEntity(line.BatchID.String())
		}
		system := batch.Available

		details = append(details, OpnameDetail{
			ID:               uuid.New(),
			OpnameID:         o.ID,
			BatchID:          line.BatchID,
			SystemQuantity:   system,
			PhysicalQuantity: line.PhysicalQuantity,
			Discrepancy:      line.PhysicalQuantity - system,
			Note:             line.Note,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	o.Details = details
	o.Touch()
	o.IncrementVersion()
	return nil
}

// Start moves a draft into counting
func (o *StockOpname) Start() error {
	return o.apply(ActionStart)
}

// Complete closes counting. An official report and at least one line are required.
func (o *StockOpname) Complete(report string) error {
	if err := o.CheckTransition(ActionComplete); err != nil {
		return err
	}
	if strings.TrimSpace(report) == "" {
		return shared.NewValidationError("official report is required to complete an opname")
	}
	if len(o.Details) == 0 {
		return shared.NewValidationError("opname has no details")
	}
	o.Report = report
	return o.apply(ActionComplete)
}

// RecordApplied stores the batch quantity found at approval time and flags
// drift from the snapshot. Returns true when drift was detected.
func (o *StockOpname) RecordApplied(batchID uuid.UUID, current int64) bool {
	for i := range o.Details {
		d := &o.Details[i]
		if d.BatchID != batchID {
			continue
		}
		q := current
		d.QuantityAtApproval = &q
		d.Drift = current != d.SystemQuantity
		d.UpdatedAt = time.Now().UTC()
		return d.Drift
	}
	return false
}

// Approve finalizes the opname. Call RecordApplied for every detail first.
func (o *StockOpname) Approve(approver uuid.UUID, at time.Time) error {
	if err := o.apply(ActionApprove); err != nil {
		return err
	}
	o.ApprovedBy = &approver
	approvedAt := at.UTC()
	o.ApprovedAt = &approvedAt
	o.AddDomainEvent(NewOpnameApprovedEvent(o))
	return nil
}

// BatchIDs returns the referenced batch ids in detail order
func (o *StockOpname) BatchIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Details))
	for _, d := range o.Details {
		ids = append(ids, d.BatchID)
	}
	return ids
}

// DriftedBatches returns the batches whose quantity moved after the snapshot
func (o *StockOpname) DriftedBatches() []uuid.UUID {
	var ids []uuid.UUID
	for _, d := range o.Details {
		if d.Drift {
			ids = append(ids, d.BatchID)
		}
	}
	return ids
}

// TotalDiscrepancy sums the recorded discrepancies
func (o *StockOpname) TotalDiscrepancy() int64 {
	var total int64
	for _, d := range o.Details {
		total += d.Discrepancy
	}
	return total
}
