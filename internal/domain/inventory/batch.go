package inventory

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// AggregateTypeBatch is the aggregate type name of Batch
const AggregateTypeBatch = "Batch"

// BatchStatus represents the lifecycle status of a batch
type BatchStatus string

const (
	BatchStatusActive   BatchStatus = "active"
	BatchStatusExpired  BatchStatus = "expired"
	BatchStatusEmpty    BatchStatus = "empty"
	BatchStatusRecalled BatchStatus = "recalled"
)

// IsValid checks if the status is a known BatchStatus
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusActive, BatchStatusExpired, BatchStatusEmpty, BatchStatusRecalled:
		return true
	}
	return false
}

// String returns the string representation of BatchStatus
func (s BatchStatus) String() string {
	return string(s)
}

// batchCodePattern matches generated batch identifiers
var batchCodePattern = regexp.MustCompile(`^BATCH-\d{14}-[A-Z0-9]{6}$`)

// GenerateBatchCode returns a new identifier of the form BATCH-YYYYMMDDHHMMSS-XXXXXX
func GenerateBatchCode(now time.Time) string {
	// rand.Text is base32: uppercase letters and digits 2-7
	return fmt.Sprintf("BATCH-%s-%s", now.UTC().Format("20060102150405"), rand.Text()[:6])
}

// IsGeneratedBatchCode reports whether code has the generated identifier shape
func IsGeneratedBatchCode(code string) bool {
	return batchCodePattern.MatchString(code)
}

// Batch is a lot of one medicine with its own expiry date and quantity.
// AvailableQuantity changes only through Adjust.
type Batch struct {
	shared.BaseAggregateRoot
	MedicineID        uuid.UUID
	BatchNumber       string
	Code              string
	ProductionDate    *time.Time
	ExpiryDate        time.Time
	ReceivedDate      time.Time
	InitialQuantity   int64
	AvailableQuantity int64
	UnitCost          decimal.Decimal
	Status            BatchStatus
	Notes             string
	DeletedAt         *time.Time
}

// BatchAttributes describes a lot being received
type BatchAttributes struct {
	MedicineID     uuid.UUID
	BatchNumber    string
	Code           string
	ProductionDate *time.Time
	ExpiryDate     time.Time
	ReceivedDate   time.Time
	Quantity       int64
	UnitCost       decimal.Decimal
	Notes          string
}

// NewBatch validates attrs and creates an active batch with its full
// quantity available. A code is generated when none is supplied.
func NewBatch(attrs BatchAttributes) (*Batch, error) {
	if attrs.MedicineID == uuid.Nil {
		return nil, shared.NewValidationError("medicine id cannot be empty")
	}
	batchNumber := strings.TrimSpace(attrs.BatchNumber)
	if batchNumber == "" {
		return nil, shared.NewValidationError("batch number cannot be empty")
	}
	if attrs.Quantity <= 0 {
		return nil, shared.NewValidationError("initial quantity must be positive")
	}
	if attrs.UnitCost.IsNegative() {
		return nil, shared.NewValidationError("unit cost cannot be negative")
	}
	if attrs.ExpiryDate.IsZero() {
		return nil, shared.NewValidationError("expiry date is required")
	}

	received := attrs.ReceivedDate
	if received.IsZero() {
		received = time.Now().UTC()
	}
	if !attrs.ExpiryDate.After(received) {
		return nil, shared.NewValidationError("expiry date must be after received date")
	}
	if attrs.ProductionDate != nil && attrs.ProductionDate.After(attrs.ExpiryDate) {
		return nil, shared.NewValidationError("production date cannot be after expiry date")
	}

	code := strings.TrimSpace(attrs.Code)
	if code == "" {
		code = GenerateBatchCode(time.Now())
	}

	b := &Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		MedicineID:        attrs.MedicineID,
		BatchNumber:       batchNumber,
		Code:              code,
		ProductionDate:    attrs.ProductionDate,
		ExpiryDate:        attrs.ExpiryDate.UTC(),
		ReceivedDate:      received.UTC(),
		InitialQuantity:   attrs.Quantity,
		AvailableQuantity: attrs.Quantity,
		UnitCost:          attrs.UnitCost,
		Status:            BatchStatusActive,
		Notes:             attrs.Notes,
	}
	b.AddDomainEvent(NewBatchReceivedEvent(b))
	return b, nil
}

// Adjust applies a signed delta to the available quantity.
// The result must stay within [0, InitialQuantity]. Reaching zero empties the
// batch; raising an empty batch puts it back in circulation.
func (b *Batch) Adjust(delta int64) (before, after int64, err error) {
	if b.IsRemoved() {
		return 0, 0, shared.NewStaleReferenceError(b.ID.String())
	}

	before = b.AvailableQuantity
	after = before + delta
	if after < 0 {
		return before, before, shared.NewInsufficientStockError(b.ID.String(), -delta, before)
	}
	if after > b.InitialQuantity {
		return before, before, shared.NewValidationError(
			"batch %s: quantity %d would exceed initial quantity %d", b.BatchNumber, after, b.InitialQuantity,
		).WithEntity(b.ID.String())
	}

	b.AvailableQuantity = after
	switch {
	case after == 0 && b.Status != BatchStatusRecalled:
		b.Status = BatchStatusEmpty
	case before == 0 && after > 0 && b.Status == BatchStatusEmpty:
		if b.IsExpired(time.Now()) {
			b.Status = BatchStatusExpired
		} else {
			b.Status = BatchStatusActive
		}
	}
	b.Touch()
	b.IncrementVersion()
	return before, after, nil
}

// MarkExpired moves an active batch whose expiry date has passed to expired
func (b *Batch) MarkExpired(now time.Time) bool {
	if b.Status != BatchStatusActive || !b.IsExpired(now) {
		return false
	}
	b.Status = BatchStatusExpired
	b.Touch()
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchExpiredEvent(b))
	return true
}

// Recall withdraws the batch from circulation
func (b *Batch) Recall(reason string) error {
	if b.IsRemoved() {
		return shared.NewStaleReferenceError(b.ID.String())
	}
	if b.Status == BatchStatusRecalled {
		return shared.NewInvalidTransitionError("batch", b.ID.String(), "recall", string(b.Status))
	}
	b.Status = BatchStatusRecalled
	b.Touch()
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchRecalledEvent(b, reason))
	return nil
}

// IsRemoved reports whether the batch was soft-deleted
func (b *Batch) IsRemoved() bool {
	return b.DeletedAt != nil
}

// IsActive reports whether the batch counts towards the medicine total
func (b *Batch) IsActive() bool {
	return b.Status == BatchStatusActive && !b.IsRemoved()
}

// IsExpired returns true if the expiry date has passed
func (b *Batch) IsExpired(now time.Time) bool {
	return b.ExpiryDate.Before(now)
}

// WillExpireWithin returns true if the batch expires within the given number of days
func (b *Batch) WillExpireWithin(now time.Time, days int) bool {
	return !b.IsExpired(now) && b.ExpiryDate.Before(now.AddDate(0, 0, days))
}

// DaysUntilExpiry returns the whole days left, negative once expired
func (b *Batch) DaysUntilExpiry(now time.Time) int {
	return int(b.ExpiryDate.Sub(now).Hours() / 24)
}

// AcquisitionValue returns unit cost times quantity
func (b *Batch) AcquisitionValue(quantity int64) decimal.Decimal {
	return b.UnitCost.Mul(decimal.NewFromInt(quantity))
}

// ToLot returns the allocation view of the batch
func (b *Batch) ToLot() strategy.Lot {
	return strategy.Lot{
		ID:          b.ID,
		MedicineID:  b.MedicineID,
		BatchNumber: b.BatchNumber,
		Available:   b.AvailableQuantity,
		ExpiryDate:  b.ExpiryDate,
		CreatedAt:   b.CreatedAt,
		Active:      b.IsActive(),
	}
}

// QRPayload is the structured content encoded into a batch label
type QRPayload struct {
	Code     string          `json:"code"`
	Medicine QRMedicine      `json:"medicine"`
	Batch    QRBatchSnapshot `json:"batch"`
}

// QRMedicine is the medicine part of a QR payload
type QRMedicine struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	GenericName string    `json:"generic_name,omitempty"`
	Category    string    `json:"category,omitempty"`
	Unit        string    `json:"unit"`
}

// QRBatchSnapshot is the batch part of a QR payload
type QRBatchSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	Expiry    string    `json:"expiry"`
	Available int64     `json:"available"`
	Status    string    `json:"status"`
}

// BuildQRPayload assembles the label payload of a batch
func BuildQRPayload(b *Batch, m *Medicine) QRPayload {
	return QRPayload{
		Code: b.Code,
		Medicine: QRMedicine{
			ID:          m.ID,
			Code:        m.Code,
			Name:        m.Name,
			GenericName: m.GenericName,
			Category:    m.Category,
			Unit:        m.Unit,
		},
		Batch: QRBatchSnapshot{
			ID:        b.ID,
			Number:    b.BatchNumber,
			Expiry:    b.ExpiryDate.Format(time.DateOnly),
			Available: b.AvailableQuantity,
			Status:    string(b.Status),
		},
	}
}
