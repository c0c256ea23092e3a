package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeDestruction is the aggregate type name of Destruction
const AggregateTypeDestruction = "Destruction"

// DestructionStatus represents the status of a destruction document
type DestructionStatus string

const (
	DestructionStatusDraft     DestructionStatus = "draft"
	DestructionStatusCompleted DestructionStatus = "completed"
	DestructionStatusApproved  DestructionStatus = "approved"
)

var destructionTransitions = transitionTable[DestructionStatus]{
	DestructionStatusDraft:     {ActionComplete: DestructionStatusCompleted},
	DestructionStatusCompleted: {ActionApprove: DestructionStatusApproved},
}

// IsValid checks if the status is a valid DestructionStatus
func (s DestructionStatus) IsValid() bool {
	switch s {
	case DestructionStatusDraft, DestructionStatusCompleted, DestructionStatusApproved:
		return true
	}
	return false
}

// String returns the string representation of DestructionStatus
func (s DestructionStatus) String() string {
	return string(s)
}

// Next returns the status reached by applying action, if the table allows it
func (s DestructionStatus) Next(action Action) (DestructionStatus, bool) {
	return destructionTransitions.next(s, action)
}

// DestructionReason is why stock is written off
type DestructionReason string

const (
	DestructionReasonExpired  DestructionReason = "expired"
	DestructionReasonDamaged  DestructionReason = "damaged"
	DestructionReasonRecalled DestructionReason = "recalled"
	DestructionReasonOther    DestructionReason = "other"
)

// IsValid checks if the reason is a known DestructionReason
func (r DestructionReason) IsValid() bool {
	switch r {
	case DestructionReasonExpired, DestructionReasonDamaged, DestructionReasonRecalled, DestructionReasonOther:
		return true
	}
	return false
}

// FormatDestructionNumber renders DST-YYYYMMDD-NNNN
func FormatDestructionNumber(date time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", DestructionNumberPrefix(date), seq)
}

// DestructionNumberPrefix is the shared prefix of all numbers issued on date
func DestructionNumberPrefix(date time.Time) string {
	return "DST-" + date.Format("20060102") + "-"
}

// DestructionLine is a batch quantity submitted for destruction
type DestructionLine struct {
	BatchID   uuid.UUID
	Quantity  int64
	Condition string
}

// DestructionDetail is one destroyed batch quantity
type DestructionDetail struct {
	ID               uuid.UUID
	DestructionID    uuid.UUID
	BatchID          uuid.UUID
	Quantity         int64
	AcquisitionValue decimal.Decimal
	Condition        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Destruction is a witnessed write-off of stock
type Destruction struct {
	shared.BaseAggregateRoot
	Number            string
	DestructionDate   time.Time
	ResponsiblePerson string
	Location          string
	Method            string
	Witnesses         []string
	Reason            DestructionReason
	Notes             string
	ReportKey         string
	Status            DestructionStatus
	ApprovedBy        *uuid.UUID
	ApprovedAt        *time.Time
	CreatedBy         uuid.UUID
	Details           []DestructionDetail
}

// DestructionHeader holds the header fields supplied on creation
type DestructionHeader struct {
	Number            string
	DestructionDate   time.Time
	ResponsiblePerson string
	Location          string
	Method            string
	Witnesses         []string
	Reason            DestructionReason
	Notes             string
}

// NewDestruction creates a draft destruction
func NewDestruction(header DestructionHeader, createdBy uuid.UUID) (*Destruction, error) {
	if strings.TrimSpace(header.Number) == "" {
		return nil, shared.NewValidationError("destruction number cannot be empty")
	}
	if header.DestructionDate.IsZero() {
		return nil, shared.NewValidationError("destruction date is required")
	}
	if strings.TrimSpace(header.ResponsiblePerson) == "" {
		return nil, shared.NewValidationError("responsible person is required")
	}
	if strings.TrimSpace(header.Location) == "" {
		return nil, shared.NewValidationError("destruction location is required")
	}
	if strings.TrimSpace(header.Method) == "" {
		return nil, shared.NewValidationError("destruction method is required")
	}
	if header.Reason == "" {
		header.Reason = DestructionReasonExpired
	}
	if !header.Reason.IsValid() {
		return nil, shared.NewValidationError("unknown destruction reason %q", header.Reason)
	}

	witnesses := make([]string, 0, len(header.Witnesses))
	for _, w := range header.Witnesses {
		if w = strings.TrimSpace(w); w != "" {
			witnesses = append(witnesses, w)
		}
	}

	return &Destruction{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            header.Number,
		DestructionDate:   header.DestructionDate,
		ResponsiblePerson: header.ResponsiblePerson,
		Location:          header.Location,
		Method:            header.Method,
		Witnesses:         witnesses,
		Reason:            header.Reason,
		Notes:             header.Notes,
		Status:            DestructionStatusDraft,
		CreatedBy:         createdBy,
		Details:           make([]DestructionDetail, 0),
	}, nil
}

// CheckTransition returns InvalidStateTransition if action is not allowed now
func (d *Destruction) CheckTransition(action Action) error {
	if _, ok := d.Status.Next(action); !ok {
		return shared.NewInvalidTransitionError("destruction", d.ID.String(), string(action), string(d.Status))
	}
	return nil
}

func (d *Destruction) apply(action Action) error {
	if err := d.CheckTransition(action); err != nil {
		return err
	}
	d.Status, _ = d.Status.Next(action)
	d.Touch()
	d.IncrementVersion()
	return nil
}

// ReplaceDetails swaps the whole detail list after checking every line
// against the current batch quantities. Nothing changes if any line fails.
func (d *Destruction) ReplaceDetails(lines []DestructionLine, batches map[uuid.UUID]*Batch) error {
	if d.Status != DestructionStatusDraft {
		return shared.NewInvalidTransitionError("destruction", d.ID.String(), "edit", string(d.Status))
	}

	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if line.BatchID == uuid.Nil {
			return shared.NewValidationError("batch id cannot be empty")
		}
		if _, dup := seen[line.BatchID]; dup {
			return shared.NewValidationError("batch %s appears more than once", line.BatchID).WithEntity(line.BatchID.String())
		}
		seen[line.BatchID] = struct{}{}
		if line.Quantity < 1 {
			return shared.NewValidationError("destroyed quantity must be at least 1").WithEntity(line.BatchID.String())
		}
	}

	now := time.Now().UTC()
	details := make([]DestructionDetail, 0, len(lines))
	for _, line := range lines {
		batch, ok := batches[line.BatchID]
		if !ok {
			return shared.NewNotFoundError("batch", line.BatchID.String())
		}
		details = append(details, DestructionDetail{
			ID:               uuid.New(),
			DestructionID:    d.ID,
			BatchID:          line.BatchID,
			Quantity:         line.Quantity,
			AcquisitionValue: batch.AcquisitionValue(line.Quantity),
			Condition:        line.Condition,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	if err := checkDestructionStock(details, batches); err != nil {
		return err
	}

	d.Details = details
	d.Touch()
	d.IncrementVersion()
	return nil
}

// CheckAvailability verifies every detail against the current batch quantities
func (d *Destruction) CheckAvailability(batches map[uuid.UUID]*Batch) error {
	return checkDestructionStock(d.Details, batches)
}

// checkDestructionStock returns one joined error covering every offending batch
func checkDestructionStock(details []DestructionDetail, batches map[uuid.UUID]*Batch) error {
	var errs []error
	for _, detail := range details {
		batch, ok := batches[detail.BatchID]
		if !ok {
			errs = append(errs, shared.NewNotFoundError("batch", detail.BatchID.String()))
			continue
		}
		if batch.IsRemoved() {
			errs = append(errs, shared.NewStaleReferenceError(batch.ID.String()))
			continue
		}
		if detail.Quantity > batch.AvailableQuantity {
			errs = append(errs, shared.NewInsufficientStockError(batch.ID.String(), detail.Quantity, batch.AvailableQuantity))
		}
	}
	return errors.Join(errs...)
}

// Complete submits the destruction for approval
func (d *Destruction) Complete(batches map[uuid.UUID]*Batch) error {
	if err := d.CheckTransition(ActionComplete); err != nil {
		return err
	}
	if len(d.Details) == 0 {
		return shared.NewValidationError("destruction has no details")
	}
	if err := d.CheckAvailability(batches); err != nil {
		return err
	}
	return d.apply(ActionComplete)
}

// Approve finalizes the destruction
func (d *Destruction) Approve(approver uuid.UUID, at time.Time) error {
	if err := d.apply(ActionApprove); err != nil {
		return err
	}
	d.ApprovedBy = &approver
	approvedAt := at.UTC()
	d.ApprovedAt = &approvedAt
	d.AddDomainEvent(NewDestructionApprovedEvent(d))
	return nil
}

// AttachReport records the object key of the signed destruction report
func (d *Destruction) AttachReport(objectKey string) error {
	if d.Status == DestructionStatusApproved {
		return shared.NewInvalidTransitionError("destruction", d.ID.String(), "attach report to", string(d.Status))
	}
	if strings.TrimSpace(objectKey) == "" {
		return shared.NewValidationError("report object key cannot be empty")
	}
	d.ReportKey = objectKey
	d.Touch()
	return nil
}

// BatchIDs returns the referenced batch ids in detail order
func (d *Destruction) BatchIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.Details))
	for _, detail := range d.Details {
		ids = append(ids, detail.BatchID)
	}
	return ids
}

// TotalQuantity sums the destroyed quantities
func (d *Destruction) TotalQuantity() int64 {
	var total int64
	for _, detail := range d.Details {
		total += detail.Quantity
	}
	return total
}

// TotalValue sums the acquisition value snapshots
func (d *Destruction) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, detail := range d.Details {
		total = total.Add(detail.AcquisitionValue)
	}
	return total
}
