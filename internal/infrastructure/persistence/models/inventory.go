package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MedicineModel is the persistence model for the Medicine aggregate root.
type MedicineModel struct {
	AggregateModel
	Code          string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name          string          `gorm:"type:varchar(200);not null;index"`
	GenericName   string          `gorm:"type:varchar(200)"`
	Category      string          `gorm:"type:varchar(100)"`
	DosageForm    string          `gorm:"type:varchar(50)"`
	Unit          string          `gorm:"type:varchar(20);not null"`
	StockTotal    int64           `gorm:"not null;default:0"`
	StockMinimum  int64           `gorm:"not null;default:0"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	SellingPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	IsActive      bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MedicineModel) TableName() string {
	return "medicines"
}

// ToDomain converts the persistence model to a domain Medicine entity.
func (m *MedicineModel) ToDomain() *inventory.Medicine {
	return &inventory.Medicine{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		GenericName:       m.GenericName,
		Category:          m.Category,
		DosageForm:        m.DosageForm,
		Unit:              m.Unit,
		StockTotal:        m.StockTotal,
		StockMinimum:      m.StockMinimum,
		PurchasePrice:     m.PurchasePrice,
		SellingPrice:      m.SellingPrice,
		IsActive:          m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Medicine entity.
func (m *MedicineModel) FromDomain(med *inventory.Medicine) {
	m.FromDomainAggregateRoot(med.BaseAggregateRoot)
	m.Code = med.Code
	m.Name = med.Name
	m.GenericName = med.GenericName
	m.Category = med.Category
	m.DosageForm = med.DosageForm
	m.Unit = med.Unit
	m.StockTotal = med.StockTotal
	m.StockMinimum = med.StockMinimum
	m.PurchasePrice = med.PurchasePrice
	m.SellingPrice = med.SellingPrice
	m.IsActive = med.IsActive
}

// MedicineModelFromDomain creates a new persistence model from a domain Medicine entity.
func MedicineModelFromDomain(med *inventory.Medicine) *MedicineModel {
	m := &MedicineModel{}
	m.FromDomain(med)
	return m
}

// BatchModel is the persistence model for the Batch aggregate root.
// Removed batches keep their row; DeletedAt hides them from default scopes.
type BatchModel struct {
	AggregateModel
	MedicineID        uuid.UUID             `gorm:"type:uuid;not null;index:idx_batch_medicine_expiry,priority:1;uniqueIndex:idx_batch_medicine_number,priority:1"`
	BatchNumber       string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_batch_medicine_number,priority:2"`
	Code              string                `gorm:"type:varchar(100);not null;uniqueIndex"`
	ProductionDate    *time.Time            `gorm:"type:date"`
	ExpiryDate        time.Time             `gorm:"type:date;not null;index:idx_batch_medicine_expiry,priority:2"`
	ReceivedDate      time.Time             `gorm:"type:date;not null"`
	InitialQuantity   int64                 `gorm:"not null"`
	AvailableQuantity int64                 `gorm:"not null;check:available_quantity >= 0"`
	UnitCost          decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Status            inventory.BatchStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	Notes             string                `gorm:"type:text"`
	DeletedAt         gorm.DeletedAt        `gorm:"index"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a domain Batch entity.
func (m *BatchModel) ToDomain() *inventory.Batch {
	b := &inventory.Batch{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		MedicineID:        m.MedicineID,
		BatchNumber:       m.BatchNumber,
		Code:              m.Code,
		ProductionDate:    m.ProductionDate,
		ExpiryDate:        m.ExpiryDate,
		ReceivedDate:      m.ReceivedDate,
		InitialQuantity:   m.InitialQuantity,
		AvailableQuantity: m.AvailableQuantity,
		UnitCost:          m.UnitCost,
		Status:            m.Status,
		Notes:             m.Notes,
	}
	if m.DeletedAt.Valid {
		deletedAt := m.DeletedAt.Time
		b.DeletedAt = &deletedAt
	}
	return b
}

// FromDomain populates the persistence model from a domain Batch entity.
func (m *BatchModel) FromDomain(b *inventory.Batch) {
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	m.MedicineID = b.MedicineID
	m.BatchNumber = b.BatchNumber
	m.Code = b.Code
	m.ProductionDate = b.ProductionDate
	m.ExpiryDate = b.ExpiryDate
	m.ReceivedDate = b.ReceivedDate
	m.InitialQuantity = b.InitialQuantity
	m.AvailableQuantity = b.AvailableQuantity
	m.UnitCost = b.UnitCost
	m.Status = b.Status
	m.Notes = b.Notes
	m.DeletedAt = gorm.DeletedAt{}
	if b.DeletedAt != nil {
		m.DeletedAt = gorm.DeletedAt{Time: *b.DeletedAt, Valid: true}
	}
}

// BatchModelFromDomain creates a new persistence model from a domain Batch entity.
func BatchModelFromDomain(b *inventory.Batch) *BatchModel {
	m := &BatchModel{}
	m.FromDomain(b)
	return m
}

// StockOpnameModel is the persistence model for the StockOpname aggregate root.
type StockOpnameModel struct {
	AggregateModel
	Number            string                 `gorm:"type:varchar(50);not null;uniqueIndex"`
	Unit              string                 `gorm:"type:varchar(100)"`
	OpnameDate        time.Time              `gorm:"type:date;not null;index"`
	ResponsiblePerson string                 `gorm:"type:varchar(100);not null"`
	Status            inventory.OpnameStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	Notes             string                 `gorm:"type:text"`
	Report            string                 `gorm:"type:text"`
	ApprovedBy        *uuid.UUID             `gorm:"type:uuid"`
	ApprovedAt        *time.Time
	CreatedBy         uuid.UUID                `gorm:"type:uuid;not null"`
	Details           []StockOpnameDetailModel `gorm:"foreignKey:OpnameID;references:ID"`
}

// TableName returns the table name for GORM
func (StockOpnameModel) TableName() string {
	return "stock_opnames"
}

// ToDomain converts the persistence model to a domain StockOpname entity.
func (m *StockOpnameModel) ToDomain() *inventory.StockOpname {
	o := &inventory.StockOpname{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		Unit:              m.Unit,
		OpnameDate:        m.OpnameDate,
		ResponsiblePerson: m.ResponsiblePerson,
		Status:            m.Status,
		Notes:             m.Notes,
		Report:            m.Report,
		ApprovedBy:        m.ApprovedBy,
		ApprovedAt:        m.ApprovedAt,
		CreatedBy:         m.CreatedBy,
		Details:           make([]inventory.OpnameDetail, len(m.Details)),
	}
	for i, detail := range m.Details {
		o.Details[i] = *detail.ToDomain()
	}
	return o
}

// FromDomain populates the persistence model from a domain StockOpname entity.
func (m *StockOpnameModel) FromDomain(o *inventory.StockOpname) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.Number = o.Number
	m.Unit = o.Unit
	m.OpnameDate = o.OpnameDate
	m.ResponsiblePerson = o.ResponsiblePerson
	m.Status = o.Status
	m.Notes = o.Notes
	m.Report = o.Report
	m.ApprovedBy = o.ApprovedBy
	m.ApprovedAt = o.ApprovedAt
	m.CreatedBy = o.CreatedBy
	m.Details = make([]StockOpnameDetailModel, len(o.Details))
	for i := range o.Details {
		m.Details[i] = *StockOpnameDetailModelFromDomain(&o.Details[i])
	}
}

// StockOpnameModelFromDomain creates a new persistence model from a domain StockOpname entity.
func StockOpnameModelFromDomain(o *inventory.StockOpname) *StockOpnameModel {
	m := &StockOpnameModel{}
	m.FromDomain(o)
	return m
}

// StockOpnameDetailModel is the persistence model for one counted batch line.
type StockOpnameDetailModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key"`
	OpnameID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_opname_detail_batch,priority:1"`
	BatchID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_opname_detail_batch,priority:2;index"`
	SystemQuantity     int64     `gorm:"not null"`
	PhysicalQuantity   int64     `gorm:"not null;check:physical_quantity >= 0"`
	Discrepancy        int64     `gorm:"not null"`
	Note               string    `gorm:"type:text"`
	QuantityAtApproval *int64
	Drift              bool      `gorm:"not null;default:false"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockOpnameDetailModel) TableName() string {
	return "stock_opname_details"
}

// ToDomain converts the persistence model to a domain OpnameDetail.
func (m *StockOpnameDetailModel) ToDomain() *inventory.OpnameDetail {
	return &inventory.OpnameDetail{
		ID:                 m.ID,
		OpnameID:           m.OpnameID,
		BatchID:            m.BatchID,
		SystemQuantity:     m.SystemQuantity,
		PhysicalQuantity:   m.PhysicalQuantity,
		Discrepancy:        m.Discrepancy,
		Note:               m.Note,
		QuantityAtApproval: m.QuantityAtApproval,
		Drift:              m.Drift,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// StockOpnameDetailModelFromDomain creates a new persistence model from a domain OpnameDetail.
func StockOpnameDetailModelFromDomain(d *inventory.OpnameDetail) *StockOpnameDetailModel {
	return &StockOpnameDetailModel{
		ID:                 d.ID,
		OpnameID:           d.OpnameID,
		BatchID:            d.BatchID,
		SystemQuantity:     d.SystemQuantity,
		PhysicalQuantity:   d.PhysicalQuantity,
		Discrepancy:        d.Discrepancy,
		Note:               d.Note,
		QuantityAtApproval: d.QuantityAtApproval,
		Drift:              d.Drift,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// DestructionModel is the persistence model for the Destruction aggregate root.
type DestructionModel struct {
	AggregateModel
	Number            string                      `gorm:"type:varchar(50);not null;uniqueIndex"`
	DestructionDate   time.Time                   `gorm:"type:date;not null;index"`
	ResponsiblePerson string                      `gorm:"type:varchar(100);not null"`
	Location          string                      `gorm:"type:varchar(200)"`
	Method            string                      `gorm:"type:varchar(100)"`
	Witnesses         []string                    `gorm:"type:jsonb;serializer:json"`
	Reason            inventory.DestructionReason `gorm:"type:varchar(20);not null"`
	Notes             string                      `gorm:"type:text"`
	ReportKey         string                      `gorm:"type:varchar(500)"`
	Status            inventory.DestructionStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	ApprovedBy        *uuid.UUID                  `gorm:"type:uuid"`
	ApprovedAt        *time.Time
	CreatedBy         uuid.UUID                `gorm:"type:uuid;not null"`
	Details           []DestructionDetailModel `gorm:"foreignKey:DestructionID;references:ID"`
}

// TableName returns the table name for GORM
func (DestructionModel) TableName() string {
	return "destructions"
}

// ToDomain converts the persistence model to a domain Destruction entity.
func (m *DestructionModel) ToDomain() *inventory.Destruction {
	d := &inventory.Destruction{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		DestructionDate:   m.DestructionDate,
		ResponsiblePerson: m.ResponsiblePerson,
		Location:          m.Location,
		Method:            m.Method,
		Witnesses:         m.Witnesses,
		Reason:            m.Reason,
		Notes:             m.Notes,
		ReportKey:         m.ReportKey,
		Status:            m.Status,
		ApprovedBy:        m.ApprovedBy,
		ApprovedAt:        m.ApprovedAt,
		CreatedBy:         m.CreatedBy,
		Details:           make([]inventory.DestructionDetail, len(m.Details)),
	}
	for i, detail := range m.Details {
		d.Details[i] = *detail.ToDomain()
	}
	return d
}

// FromDomain populates the persistence model from a domain Destruction entity.
func (m *DestructionModel) FromDomain(d *inventory.Destruction) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.Number = d.Number
	m.DestructionDate = d.DestructionDate
	m.ResponsiblePerson = d.ResponsiblePerson
	m.Location = d.Location
	m.Method = d.Method
	m.Witnesses = d.Witnesses
	m.Reason = d.Reason
	m.Notes = d.Notes
	m.ReportKey = d.ReportKey
	m.Status = d.Status
	m.ApprovedBy = d.ApprovedBy
	m.ApprovedAt = d.ApprovedAt
	m.CreatedBy = d.CreatedBy
	m.Details = make([]DestructionDetailModel, len(d.Details))
	for i := range d.Details {
		m.Details[i] = *DestructionDetailModelFromDomain(&d.Details[i])
	}
}

// DestructionModelFromDomain creates a new persistence model from a domain Destruction entity.
func DestructionModelFromDomain(d *inventory.Destruction) *DestructionModel {
	m := &DestructionModel{}
	m.FromDomain(d)
	return m
}

// DestructionDetailModel is the persistence model for one destroyed batch line.
type DestructionDetailModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	DestructionID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_destruction_detail_batch,priority:1"`
	BatchID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_destruction_detail_batch,priority:2;index"`
	Quantity         int64           `gorm:"not null;check:quantity > 0"`
	AcquisitionValue decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Condition        string          `gorm:"type:varchar(200)"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DestructionDetailModel) TableName() string {
	return "destruction_details"
}

// ToDomain converts the persistence model to a domain DestructionDetail.
func (m *DestructionDetailModel) ToDomain() *inventory.DestructionDetail {
	return &inventory.DestructionDetail{
		ID:               m.ID,
		DestructionID:    m.DestructionID,
		BatchID:          m.BatchID,
		Quantity:         m.Quantity,
		AcquisitionValue: m.AcquisitionValue,
		Condition:        m.Condition,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// DestructionDetailModelFromDomain creates a new persistence model from a domain DestructionDetail.
func DestructionDetailModelFromDomain(d *inventory.DestructionDetail) *DestructionDetailModel {
	return &DestructionDetailModel{
		ID:               d.ID,
		DestructionID:    d.DestructionID,
		BatchID:          d.BatchID,
		Quantity:         d.Quantity,
		AcquisitionValue: d.AcquisitionValue,
		Condition:        d.Condition,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}
