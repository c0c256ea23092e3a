package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	inventoryapp "github.com/pharmaledger/backend/internal/application/inventory"
	"github.com/pharmaledger/backend/internal/domain/inventory"
)

// DestructionHandler serves the destruction workflow and its signed report
type DestructionHandler struct {
	BaseHandler
	destructions *inventoryapp.DestructionService
}

// NewDestructionHandler creates a new DestructionHandler
func NewDestructionHandler(destructions *inventoryapp.DestructionService) *DestructionHandler {
	return &DestructionHandler{destructions: destructions}
}

// DestructionLineRequest is one destroyed batch quantity
type DestructionLineRequest struct {
	BatchID   string `json:"batch_id" binding:"required,uuid"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Condition string `json:"condition" binding:"max=255"`
}

// CreateDestructionRequest is the body of POST /destructions
type CreateDestructionRequest struct {
	DestructionDate   string                   `json:"destruction_date" binding:"omitempty,isodate"`
	ResponsiblePerson string                   `json:"responsible_person" binding:"required,notblank,max=100"`
	Location          string                   `json:"location" binding:"required,notblank,max=255"`
	Method            string                   `json:"method" binding:"required,notblank,max=100"`
	Witnesses         []string                 `json:"witnesses" binding:"dive,notblank"`
	Reason            string                   `json:"reason" binding:"required,oneof=expired damaged recalled other"`
	Notes             string                   `json:"notes" binding:"max=500"`
	Details           []DestructionLineRequest `json:"details" binding:"dive"`
}

// ReplaceDestructionDetailsRequest is the body of PUT /destructions/:id/details
type ReplaceDestructionDetailsRequest struct {
	Details []DestructionLineRequest `json:"details" binding:"required,min=1,dive"`
}

// ReportUploadRequest asks for a presigned upload URL
type ReportUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// AttachReportRequest confirms an uploaded report
type AttachReportRequest struct {
	ObjectKey string `json:"object_key" binding:"required,notblank"`
}

func toDestructionLines(reqs []DestructionLineRequest) []inventory.DestructionLine {
	lines := make([]inventory.DestructionLine, len(reqs))
	for i, r := range reqs {
		lines[i] = inventory.DestructionLine{
			BatchID:   uuid.MustParse(r.BatchID),
			Quantity:  r.Quantity,
			Condition: r.Condition,
		}
	}
	return lines
}

// Create godoc
// @Summary  Open a destruction
// @Tags     destructions
// @Router   /destructions [post]
func (h *DestructionHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req CreateDestructionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	input := inventoryapp.CreateDestructionInput{
		ResponsiblePerson: req.ResponsiblePerson,
		Location:          req.Location,
		Method:            req.Method,
		Witnesses:         req.Witnesses,
		Reason:            inventory.DestructionReason(req.Reason),
		Notes:             req.Notes,
		Lines:             toDestructionLines(req.Details),
		ActorID:           actor,
	}
	date, ok := h.optionalDate(c, "destruction_date", req.DestructionDate)
	if !ok {
		return
	}
	if date != nil {
		input.DestructionDate = *date
	}

	destruction, err := h.destructions.Create(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, destruction)
}

// List godoc
// @Summary  List destructions, optionally by status
// @Tags     destructions
// @Router   /destructions [get]
func (h *DestructionHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	destructions, total, err := h.destructions.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, destructions, total, filter.Page, filter.PageSize)
}

// Pending godoc
// @Summary  List completed destructions awaiting approval
// @Tags     destructions
// @Router   /destructions/pending [get]
func (h *DestructionHandler) Pending(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	destructions, total, err := h.destructions.ListPendingApproval(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, destructions, total, filter.Page, filter.PageSize)
}

// EligibleBatches godoc
// @Summary  List expired batches that still hold stock
// @Tags     destructions
// @Router   /destructions/eligible-batches [get]
func (h *DestructionHandler) EligibleBatches(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	batches, err := h.destructions.ListEligibleBatches(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// Get godoc
// @Summary  Get a destruction, with a report download URL when one is attached
// @Tags     destructions
// @Router   /destructions/{id} [get]
func (h *DestructionHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id", "destruction")
	if !ok {
		return
	}
	destruction, err := h.destructions.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, destruction)
}

// ReplaceDetails godoc
// @Summary  Replace the lines of a draft destruction
// @Tags     destructions
// @Router   /destructions/{id}/details [put]
func (h *DestructionHandler) ReplaceDetails(c *gin.Context) {
	id, ok := h.pathID(c, "id", "destruction")
	if !ok {
		return
	}
	var req ReplaceDestructionDetailsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	destruction, err := h.destructions.ReplaceDetails(c.Request.Context(), id, toDestructionLines(req.Details))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, destruction)
}

// RequestReportUpload godoc
// @Summary  Get a presigned URL for the signed report
// @Tags     destructions
// @Router   /destructions/{id}/report-upload [post]
func (h *DestructionHandler) RequestReportUpload(c *gin.Context) {
	id, ok := h.pathID(c, "id", "destruction")
	if !ok {
		return
	}
	var req ReportUploadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	upload, err := h.destructions.RequestReportUpload(c.Request.Context(), id, req.ContentType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, upload)
}

// AttachReport godoc
// @Summary  Attach an uploaded report
// @Tags     destructions
// @Router   /destructions/{id}/report [post]
func (h *DestructionHandler) AttachReport(c *gin.Context) {
	id, ok := h.pathID(c, "id", "destruction")
	if !ok {
		return
	}
	var req AttachReportRequest
	if !h.bindJSON(c, &req) {
		return
	}
	destruction, err := h.destructions.AttachReport(c.Request.Context(), id, req.ObjectKey)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, destruction)
}

// Complete godoc
// @Summary  Mark the destruction as carried out
// @Tags     destructions
// @Router   /destructions/{id}/complete [post]
func (h *DestructionHandler) Complete(c *gin.Context) {
	id, ok := h.pathID(c, "id", "destruction")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	destruction, err := h.destructions.Complete(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, destruction)
}

// Approve godoc
// @Summary  Approve and deduct the destroyed stock
// @Tags     destructions
// @Router   /destructions/{id}/approve [post]
func (h *DestructionHandler) Approve(c *gin.Context) {
	id, ok := h.pathID(c, "id", "destruction")
	if !ok {
		return
	}
	approver, ok := h.requireActor(c)
	if !ok {
		return
	}
	destruction, err := h.destructions.Approve(c.Request.Context(), id, approver)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, destruction)
}
