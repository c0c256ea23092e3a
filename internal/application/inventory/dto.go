package inventory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// ===================== Inputs =====================

// CreateMedicineInput carries the master data of a new medicine
type CreateMedicineInput struct {
	Code          string
	Name          string
	GenericName   string
	Category      string
	DosageForm    string
	Unit          string
	StockMinimum  int64
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
}

// ReceiveBatchInput describes a received lot
type ReceiveBatchInput struct {
	MedicineID     uuid.UUID
	BatchNumber    string
	Code           string
	ProductionDate *time.Time
	ExpiryDate     time.Time
	ReceivedDate   time.Time
	Quantity       int64
	UnitCost       decimal.Decimal
	Notes          string
	ActorID        *uuid.UUID
}

// AdjustInput is a manual signed correction of a batch
type AdjustInput struct {
	BatchID uuid.UUID
	Delta   int64
	Reason  string
	ActorID *uuid.UUID
}

// DispenseInput requests stock of a medicine to leave the pharmacy
type DispenseInput struct {
	MedicineID uuid.UUID
	Quantity   int64
	Reference  string
	ActorID    *uuid.UUID
}

// CreateOpnameInput creates a stock opname with its counted lines
type CreateOpnameInput struct {
	Unit              string
	OpnameDate        time.Time
	ResponsiblePerson string
	Notes             string
	Lines             []inventory.OpnameLine
	ActorID           uuid.UUID
}

// CreateDestructionInput creates a destruction with its lines
type CreateDestructionInput struct {
	DestructionDate   time.Time
	ResponsiblePerson string
	Location          string
	Method            string
	Witnesses         []string
	Reason            inventory.DestructionReason
	Notes             string
	Lines             []inventory.DestructionLine
	ActorID           uuid.UUID
}

// ListFilter is the paging and filtering input of list queries
type ListFilter struct {
	Page     int
	PageSize int
	Search   string
	Status   string
	BatchID  *uuid.UUID
	Result   string
	From     *time.Time
	To       *time.Time
}

// toFilter converts list input into a repository filter
func (f ListFilter) toFilter() shared.Filter {
	filter := shared.DefaultFilter()
	filter.Page = f.Page
	filter.PageSize = f.PageSize
	if f.Search != "" {
		filter.Filters["search"] = f.Search
	}
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	if f.BatchID != nil {
		filter.Filters["batch_id"] = *f.BatchID
	}
	if f.Result != "" {
		filter.Filters["result"] = f.Result
	}
	if f.From != nil {
		filter.Filters["from"] = *f.From
	}
	if f.To != nil {
		filter.Filters["to"] = *f.To
	}
	return filter.Normalize()
}

// ===================== Responses =====================

// MedicineResponse represents a medicine
type MedicineResponse struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	GenericName   string          `json:"generic_name,omitempty"`
	Category      string          `json:"category,omitempty"`
	DosageForm    string          `json:"dosage_form,omitempty"`
	Unit          string          `json:"unit"`
	StockTotal    int64           `json:"stock_total"`
	StockMinimum  int64           `json:"stock_minimum"`
	IsLowStock    bool            `json:"is_low_stock"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// ToMedicineResponse converts a domain Medicine to a response
func ToMedicineResponse(m *inventory.Medicine) MedicineResponse {
	return MedicineResponse{
		ID:            m.ID,
		Code:          m.Code,
		Name:          m.Name,
		GenericName:   m.GenericName,
		Category:      m.Category,
		DosageForm:    m.DosageForm,
		Unit:          m.Unit,
		StockTotal:    m.StockTotal,
		StockMinimum:  m.StockMinimum,
		IsLowStock:    m.IsLowStock(),
		PurchasePrice: m.PurchasePrice,
		SellingPrice:  m.SellingPrice,
		IsActive:      m.IsActive,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Version:       m.Version,
	}
}

// ToMedicineResponses converts a slice of medicines
func ToMedicineResponses(ms []inventory.Medicine) []MedicineResponse {
	out := make([]MedicineResponse, len(ms))
	for i := range ms {
		out[i] = ToMedicineResponse(&ms[i])
	}
	return out
}

// BatchResponse represents a batch
type BatchResponse struct {
	ID                uuid.UUID       `json:"id"`
	MedicineID        uuid.UUID       `json:"medicine_id"`
	BatchNumber       string          `json:"batch_number"`
	Code              string          `json:"code"`
	ProductionDate    *time.Time      `json:"production_date,omitempty"`
	ExpiryDate        time.Time       `json:"expiry_date"`
	ReceivedDate      time.Time       `json:"received_date"`
	InitialQuantity   int64           `json:"initial_quantity"`
	AvailableQuantity int64           `json:"available_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	Status            string          `json:"status"`
	IsExpired         bool            `json:"is_expired"`
	DaysUntilExpiry   int             `json:"days_until_expiry"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToBatchResponse converts a domain Batch to a response
func ToBatchResponse(b *inventory.Batch) BatchResponse {
	now := time.Now()
	return BatchResponse{
		ID:                b.ID,
		MedicineID:        b.MedicineID,
		BatchNumber:       b.BatchNumber,
		Code:              b.Code,
		ProductionDate:    b.ProductionDate,
		ExpiryDate:        b.ExpiryDate,
		ReceivedDate:      b.ReceivedDate,
		InitialQuantity:   b.InitialQuantity,
		AvailableQuantity: b.AvailableQuantity,
		UnitCost:          b.UnitCost,
		Status:            string(b.Status),
		IsExpired:         b.IsExpired(now),
		DaysUntilExpiry:   b.DaysUntilExpiry(now),
		Notes:             b.Notes,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

// ToBatchResponses converts a slice of batches
func ToBatchResponses(bs []inventory.Batch) []BatchResponse {
	out := make([]BatchResponse, len(bs))
	for i := range bs {
		out[i] = ToBatchResponse(&bs[i])
	}
	return out
}

// AllocationResponse is a FEFO plan for a requested quantity
type AllocationResponse struct {
	MedicineID uuid.UUID               `json:"medicine_id"`
	Requested  int64                   `json:"requested"`
	Allocated  int64                   `json:"allocated"`
	Shortfall  int64                   `json:"shortfall"`
	Lines      []strategy.LotSelection `json:"lines"`
}

// DispenseResponse reports what was taken from which batch
type DispenseResponse struct {
	MedicineID uuid.UUID               `json:"medicine_id"`
	Quantity   int64                   `json:"quantity"`
	Reference  string                  `json:"reference,omitempty"`
	Lines      []strategy.LotSelection `json:"lines"`
	StockTotal int64                   `json:"stock_total"`
}

// ScanResponse is the outcome of resolving an identifier
type ScanResponse struct {
	Result   inventory.ScanResult `json:"result"`
	Warning  string               `json:"warning,omitempty"`
	Batch    *BatchResponse       `json:"batch,omitempty"`
	Medicine *MedicineResponse    `json:"medicine,omitempty"`
}

// OpnameDetailResponse represents one counted batch
type OpnameDetailResponse struct {
	ID                 uuid.UUID `json:"id"`
	BatchID            uuid.UUID `json:"batch_id"`
	SystemQuantity     int64     `json:"system_quantity"`
	PhysicalQuantity   int64     `json:"physical_quantity"`
	Discrepancy        int64     `json:"discrepancy"`
	Note               string    `json:"note,omitempty"`
	QuantityAtApproval *int64    `json:"quantity_at_approval,omitempty"`
	Drift              bool      `json:"drift"`
}

// OpnameResponse represents a stock opname
type OpnameResponse struct {
	ID                uuid.UUID              `json:"id"`
	Number            string                 `json:"number"`
	Unit              string                 `json:"unit"`
	OpnameDate        time.Time              `json:"opname_date"`
	ResponsiblePerson string                 `json:"responsible_person,omitempty"`
	Status            string                 `json:"status"`
	Notes             string                 `json:"notes,omitempty"`
	Report            string                 `json:"report,omitempty"`
	ApprovedBy        *uuid.UUID             `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time             `json:"approved_at,omitempty"`
	CreatedBy         uuid.UUID              `json:"created_by"`
	TotalDiscrepancy  int64                  `json:"total_discrepancy"`
	Details           []OpnameDetailResponse `json:"details"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Version           int                    `json:"version"`
}

// ToOpnameResponse converts a domain StockOpname to a response
func ToOpnameResponse(o *inventory.StockOpname) OpnameResponse {
	details := make([]OpnameDetailResponse, len(o.Details))
	for i, d := range o.Details {
		details[i] = OpnameDetailResponse{
			ID:                 d.ID,
			BatchID:            d.BatchID,
			SystemQuantity:     d.SystemQuantity,
			PhysicalQuantity:   d.PhysicalQuantity,
			Discrepancy:        d.Discrepancy,
			Note:               d.Note,
			QuantityAtApproval: d.QuantityAtApproval,
			Drift:              d.Drift,
		}
	}
	return OpnameResponse{
		ID:                o.ID,
		Number:            o.Number,
		Unit:              o.Unit,
		OpnameDate:        o.OpnameDate,
		ResponsiblePerson: o.ResponsiblePerson,
		Status:            string(o.Status),
		Notes:             o.Notes,
		Report:            o.Report,
		ApprovedBy:        o.ApprovedBy,
		ApprovedAt:        o.ApprovedAt,
		CreatedBy:         o.CreatedBy,
		TotalDiscrepancy:  o.TotalDiscrepancy(),
		Details:           details,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		Version:           o.Version,
	}
}

// ToOpnameResponses converts a slice of opnames
func ToOpnameResponses(opnames []inventory.StockOpname) []OpnameResponse {
	out := make([]OpnameResponse, len(opnames))
	for i := range opnames {
		out[i] = ToOpnameResponse(&opnames[i])
	}
	return out
}

// DestructionDetailResponse represents one destroyed batch quantity
type DestructionDetailResponse struct {
	ID               uuid.UUID       `json:"id"`
	BatchID          uuid.UUID       `json:"batch_id"`
	Quantity         int64           `json:"quantity"`
	AcquisitionValue decimal.Decimal `json:"acquisition_value"`
	Condition        string          `json:"condition,omitempty"`
}

// DestructionResponse represents a destruction
type DestructionResponse struct {
	ID                uuid.UUID                   `json:"id"`
	Number            string                      `json:"number"`
	DestructionDate   time.Time                   `json:"destruction_date"`
	ResponsiblePerson string                      `json:"responsible_person"`
	Location          string                      `json:"location"`
	Method            string                      `json:"method"`
	Witnesses         []string                    `json:"witnesses"`
	Reason            string                      `json:"reason"`
	Notes             string                      `json:"notes,omitempty"`
	ReportKey         string                      `json:"report_key,omitempty"`
	ReportURL         string                      `json:"report_url,omitempty"`
	Status            string                      `json:"status"`
	ApprovedBy        *uuid.UUID                  `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time                  `json:"approved_at,omitempty"`
	CreatedBy         uuid.UUID                   `json:"created_by"`
	TotalQuantity     int64                       `json:"total_quantity"`
	TotalValue        decimal.Decimal             `json:"total_value"`
	Details           []DestructionDetailResponse `json:"details"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
	Version           int                         `json:"version"`
}

// ToDestructionResponse converts a domain Destruction to a response
func ToDestructionResponse(d *inventory.Destruction) DestructionResponse {
	details := make([]DestructionDetailResponse, len(d.Details))
	for i, detail := range d.Details {
		details[i] = DestructionDetailResponse{
			ID:               detail.ID,
			BatchID:          detail.BatchID,
			Quantity:         detail.Quantity,
			AcquisitionValue: detail.AcquisitionValue,
			Condition:        detail.Condition,
		}
	}
	return DestructionResponse{
		ID:                d.ID,
		Number:            d.Number,
		DestructionDate:   d.DestructionDate,
		ResponsiblePerson: d.ResponsiblePerson,
		Location:          d.Location,
		Method:            d.Method,
		Witnesses:         d.Witnesses,
		Reason:            string(d.Reason),
		Notes:             d.Notes,
		ReportKey:         d.ReportKey,
		Status:            string(d.Status),
		ApprovedBy:        d.ApprovedBy,
		ApprovedAt:        d.ApprovedAt,
		CreatedBy:         d.CreatedBy,
		TotalQuantity:     d.TotalQuantity(),
		TotalValue:        d.TotalValue(),
		Details:           details,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		Version:           d.Version,
	}
}

// ToDestructionResponses converts a slice of destructions
func ToDestructionResponses(ds []inventory.Destruction) []DestructionResponse {
	out := make([]DestructionResponse, len(ds))
	for i := range ds {
		out[i] = ToDestructionResponse(&ds[i])
	}
	return out
}

// ReportUploadResponse carries a presigned URL for the signed report
type ReportUploadResponse struct {
	ObjectKey string    `json:"object_key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ScanLogResponse represents one scan attempt
type ScanLogResponse struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	Method       string          `json:"method"`
	Result       string          `json:"result"`
	ErrorMessage string          `json:"error_message,omitempty"`
	BatchID      *uuid.UUID      `json:"batch_id,omitempty"`
	ActorID      *uuid.UUID      `json:"actor_id,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	IPAddress    string          `json:"ip_address,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	ScannedAt    time.Time       `json:"scanned_at"`
}

// ToScanLogResponses converts a slice of scan logs
func ToScanLogResponses(logs []inventory.ScanLog) []ScanLogResponse {
	out := make([]ScanLogResponse, len(logs))
	for i, l := range logs {
		out[i] = ScanLogResponse{
			ID:           l.ID,
			Code:         l.Code,
			Method:       string(l.Method),
			Result:       string(l.Result),
			ErrorMessage: l.ErrorMessage,
			BatchID:      l.BatchID,
			ActorID:      l.ActorID,
			Payload:      l.Payload,
			IPAddress:    l.IPAddress,
			UserAgent:    l.UserAgent,
			ScannedAt:    l.ScannedAt,
		}
	}
	return out
}

// ScanAnalyticsResponse summarises scan activity over a period
type ScanAnalyticsResponse struct {
	Period       string                      `json:"period"`
	From         *time.Time                  `json:"from,omitempty"`
	TotalScans   int64                       `json:"total_scans"`
	ByResult     map[string]int64            `json:"by_result"`
	ByMethod     map[string]int64            `json:"by_method"`
	TopBatches   []BatchScanCountResponse    `json:"top_batches"`
	TopMedicines []MedicineScanCountResponse `json:"top_medicines"`
	Trend        []DailyScanCountResponse    `json:"trend"`
}

// BatchScanCountResponse is one entry of the most-scanned batches
type BatchScanCountResponse struct {
	BatchID     uuid.UUID `json:"batch_id"`
	Code        string    `json:"code"`
	BatchNumber string    `json:"batch_number"`
	MedicineID  uuid.UUID `json:"medicine_id"`
	ScanCount   int64     `json:"scan_count"`
}

// MedicineScanCountResponse is one entry of the most-scanned medicines
type MedicineScanCountResponse struct {
	MedicineID uuid.UUID `json:"medicine_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	ScanCount  int64     `json:"scan_count"`
}

// DailyScanCountResponse is the scan count of one day
type DailyScanCountResponse struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ToScanAnalyticsResponse converts scan analytics. Every known result and
// method is present, zero when unseen.
func ToScanAnalyticsResponse(period inventory.AnalyticsPeriod, from *time.Time, a *inventory.ScanAnalytics) *ScanAnalyticsResponse {
	resp := &ScanAnalyticsResponse{
		Period:       string(period),
		From:         from,
		TotalScans:   a.Total,
		ByResult:     make(map[string]int64),
		ByMethod:     make(map[string]int64),
		TopBatches:   make([]BatchScanCountResponse, len(a.TopBatches)),
		TopMedicines: make([]MedicineScanCountResponse, len(a.TopMedicines)),
		Trend:        make([]DailyScanCountResponse, len(a.Trend)),
	}
	for _, r := range []inventory.ScanResult{
		inventory.ScanResultSuccess, inventory.ScanResultNotFound, inventory.ScanResultExpired, inventory.ScanResultError,
	} {
		resp.ByResult[string(r)] = a.ByResult[r]
	}
	for _, m := range []inventory.ScanMethod{inventory.ScanMethodCamera, inventory.ScanMethodScanner, inventory.ScanMethodManual} {
		resp.ByMethod[string(m)] = a.ByMethod[m]
	}
	for i, b := range a.TopBatches {
		resp.TopBatches[i] = BatchScanCountResponse{
			BatchID:     b.BatchID,
			Code:        b.Code,
			BatchNumber: b.BatchNumber,
			MedicineID:  b.MedicineID,
			ScanCount:   b.Count,
		}
	}
	for i, m := range a.TopMedicines {
		resp.TopMedicines[i] = MedicineScanCountResponse{
			MedicineID: m.MedicineID,
			Code:       m.Code,
			Name:       m.Name,
			ScanCount:  m.Count,
		}
	}
	for i, d := range a.Trend {
		resp.Trend[i] = DailyScanCountResponse{Date: d.Day, Count: d.Count}
	}
	return resp
}

// BatchStatisticsResponse counts batches by state
type BatchStatisticsResponse struct {
	TotalBatches     int64 `json:"total_batches"`
	AvailableBatches int64 `json:"available_batches"`
	ExpiredBatches   int64 `json:"expired_batches"`
	EmptyBatches     int64 `json:"empty_batches"`
	RecalledBatches  int64 `json:"recalled_batches"`
	ExpiringSoon     int64 `json:"expiring_soon"`
	ExpiringWithin   int   `json:"expiring_within_days"`
}

// ToBatchStatisticsResponse converts batch statistics
func ToBatchStatisticsResponse(s *inventory.BatchStatistics, days int) *BatchStatisticsResponse {
	return &BatchStatisticsResponse{
		TotalBatches:     s.Total,
		AvailableBatches: s.Available,
		ExpiredBatches:   s.Expired,
		EmptyBatches:     s.Empty,
		RecalledBatches:  s.Recalled,
		ExpiringSoon:     s.ExpiringSoon,
		ExpiringWithin:   days,
	}
}

// AuditEntryResponse represents one audit entry
type AuditEntryResponse struct {
	ID             uuid.UUID  `json:"id"`
	SubjectKind    string     `json:"subject_kind"`
	SubjectID      uuid.UUID  `json:"subject_id"`
	SourceKind     string     `json:"source_kind,omitempty"`
	SourceID       *uuid.UUID `json:"source_id,omitempty"`
	Action         string     `json:"action"`
	ActorID        *uuid.UUID `json:"actor_id,omitempty"`
	Delta          int64      `json:"delta"`
	QuantityBefore int64      `json:"quantity_before"`
	QuantityAfter  int64      `json:"quantity_after"`
	Reason         string     `json:"reason,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// ToAuditEntryResponses converts a slice of audit entries
func ToAuditEntryResponses(entries []inventory.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		r := AuditEntryResponse{
			ID:             e.ID,
			SubjectKind:    string(e.Subject.Kind()),
			SubjectID:      e.Subject.ID(),
			Action:         string(e.Action),
			ActorID:        e.ActorID,
			Delta:          e.Delta,
			QuantityBefore: e.QuantityBefore,
			QuantityAfter:  e.QuantityAfter,
			Reason:         e.Reason,
			OccurredAt:     e.OccurredAt,
		}
		if e.Source != nil {
			r.SourceKind = string(e.Source.Kind())
			id := e.Source.ID()
			r.SourceID = &id
		}
		out[i] = r
	}
	return out
}
