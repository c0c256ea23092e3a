package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	inventoryapp "github.com/pharmaledger/backend/internal/application/inventory"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// ExpiryRunner runs one expiry sweep on demand
type ExpiryRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// BatchHandler serves batch intake, corrections, expiry queries and scanning
type BatchHandler struct {
	BaseHandler
	batches *inventoryapp.BatchService
	expiry  ExpiryRunner
}

// NewBatchHandler creates a new BatchHandler.
// expiry may be nil, in which case the sweep runs inline on the batch service.
func NewBatchHandler(batches *inventoryapp.BatchService, expiry ExpiryRunner) *BatchHandler {
	return &BatchHandler{
		batches: batches,
		expiry:  expiry,
	}
}

// ReceiveBatchRequest is the body of POST /batches
type ReceiveBatchRequest struct {
	MedicineID     string          `json:"medicine_id" binding:"required,uuid"`
	BatchNumber    string          `json:"batch_number" binding:"required,notblank,max=50"`
	Code           string          `json:"code" binding:"max=100"`
	ProductionDate string          `json:"production_date" binding:"omitempty,isodate"`
	ExpiryDate     string          `json:"expiry_date" binding:"required,isodate"`
	ReceivedDate   string          `json:"received_date" binding:"omitempty,isodate"`
	Quantity       int64           `json:"quantity" binding:"required,gt=0"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Notes          string          `json:"notes" binding:"max=500"`
}

// AdjustBatchRequest is the body of POST /batches/:id/adjust
type AdjustBatchRequest struct {
	Delta  int64  `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required,notblank,max=255"`
}

// RecallBatchRequest is the body of POST /batches/:id/recall
type RecallBatchRequest struct {
	Reason string `json:"reason" binding:"required,notblank,max=255"`
}

// ScanRequest is the body of POST /scan
type ScanRequest struct {
	Code   string `json:"code" binding:"max=100"`
	Method string `json:"method" binding:"omitempty,oneof=camera scanner manual"`
}

// ExpireResult reports how many batches a sweep expired
type ExpireResult struct {
	Expired int `json:"expired"`
}

// Receive godoc
// @Summary  Receive a batch
// @Tags     batches
// @Router   /batches [post]
func (h *BatchHandler) Receive(c *gin.Context) {
	var req ReceiveBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	// formats were checked by the isodate binding
	expiry, _ := parseDate(req.ExpiryDate)
	production, ok := h.optionalDate(c, "production_date", req.ProductionDate)
	if !ok {
		return
	}
	received, ok := h.optionalDate(c, "received_date", req.ReceivedDate)
	if !ok {
		return
	}
	input := inventoryapp.ReceiveBatchInput{
		MedicineID:     uuid.MustParse(req.MedicineID),
		BatchNumber:    req.BatchNumber,
		Code:           req.Code,
		ProductionDate: production,
		ExpiryDate:     expiry,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		Notes:          req.Notes,
		ActorID:        actorPtr(c),
	}
	if received != nil {
		input.ReceivedDate = *received
	}

	batch, err := h.batches.Receive(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// Get godoc
// @Summary  Get a batch
// @Tags     batches
// @Router   /batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id", "batch")
	if !ok {
		return
	}
	batch, err := h.batches.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// QR godoc
// @Summary  Get the label payload of a batch
// @Tags     batches
// @Router   /batches/{id}/qr [get]
func (h *BatchHandler) QR(c *gin.Context) {
	id, ok := h.pathID(c, "id", "batch")
	if !ok {
		return
	}
	payload, err := h.batches.QRPayload(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payload)
}

// Adjust godoc
// @Summary  Apply a signed manual correction
// @Tags     batches
// @Router   /batches/{id}/adjust [post]
func (h *BatchHandler) Adjust(c *gin.Context) {
	id, ok := h.pathID(c, "id", "batch")
	if !ok {
		return
	}
	var req AdjustBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	batch, err := h.batches.Adjust(c.Request.Context(), inventoryapp.AdjustInput{
		BatchID: id,
		Delta:   req.Delta,
		Reason:  req.Reason,
		ActorID: actorPtr(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Recall godoc
// @Summary  Recall a batch
// @Tags     batches
// @Router   /batches/{id}/recall [post]
func (h *BatchHandler) Recall(c *gin.Context) {
	id, ok := h.pathID(c, "id", "batch")
	if !ok {
		return
	}
	var req RecallBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	batch, err := h.batches.Recall(c.Request.Context(), id, req.Reason, actorPtr(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Statistics godoc
// @Summary  Count batches by status, plus those expiring soon
// @Tags     batches
// @Router   /batches/statistics [get]
func (h *BatchHandler) Statistics(c *gin.Context) {
	stats, err := h.batches.Statistics(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// Expiring godoc
// @Summary  List batches expiring within ?days (default from configuration)
// @Tags     batches
// @Router   /batches/expiring [get]
func (h *BatchHandler) Expiring(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 3650 {
			h.BadRequest(c, "days must be between 1 and 3650")
			return
		}
		days = n
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	batches, err := h.batches.ListExpiringSoon(c.Request.Context(), days, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// Expired godoc
// @Summary  List expired batches that still hold stock
// @Tags     batches
// @Router   /batches/expired [get]
func (h *BatchHandler) Expired(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	batches, err := h.batches.ListExpired(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// Expire godoc
// @Summary  Run the expiry sweep now
// @Tags     batches
// @Router   /batches/expire [post]
func (h *BatchHandler) Expire(c *gin.Context) {
	var (
		n   int
		err error
	)
	if h.expiry != nil {
		n, err = h.expiry.RunOnce(c.Request.Context())
	} else {
		n, err = h.batches.ExpireBatches(c.Request.Context())
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ExpireResult{Expired: n})
}

// Scan godoc
// @Summary  Resolve a scanned or typed identifier
// @Tags     scan
// @Router   /scan [post]
func (h *BatchHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if !h.bindJSON(c, &req) {
		return
	}
	method := inventory.ScanMethod(req.Method)
	if method == "" {
		method = inventory.ScanMethodManual
	}

	result, err := h.batches.Resolve(c.Request.Context(), inventory.ScanContext{
		Code:      req.Code,
		Method:    method,
		ActorID:   actorPtr(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
