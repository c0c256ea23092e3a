package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	inventoryapp "github.com/pharmaledger/backend/internal/application/inventory"
	"github.com/pharmaledger/backend/internal/domain/inventory"
)

// OpnameHandler serves the stock opname workflow
type OpnameHandler struct {
	BaseHandler
	opnames *inventoryapp.OpnameService
}

// NewOpnameHandler creates a new OpnameHandler
func NewOpnameHandler(opnames *inventoryapp.OpnameService) *OpnameHandler {
	return &OpnameHandler{opnames: opnames}
}

// OpnameLineRequest is one counted batch
type OpnameLineRequest struct {
	BatchID          string `json:"batch_id" binding:"required,uuid"`
	PhysicalQuantity int64  `json:"physical_quantity" binding:"gte=0"`
	Note             string `json:"note" binding:"max=255"`
}

// CreateOpnameRequest is the body of POST /opnames
type CreateOpnameRequest struct {
	Unit              string              `json:"unit" binding:"required,notblank,max=100"`
	OpnameDate        string              `json:"opname_date" binding:"omitempty,isodate"`
	ResponsiblePerson string              `json:"responsible_person" binding:"max=100"`
	Notes             string              `json:"notes" binding:"max=500"`
	Details           []OpnameLineRequest `json:"details" binding:"dive"`
}

// ReplaceOpnameDetailsRequest is the body of PUT /opnames/:id/details
type ReplaceOpnameDetailsRequest struct {
	Details []OpnameLineRequest `json:"details" binding:"required,min=1,dive"`
}

// CompleteOpnameRequest is the body of POST /opnames/:id/complete
type CompleteOpnameRequest struct {
	Report string `json:"report" binding:"required,notblank"`
}

func toOpnameLines(reqs []OpnameLineRequest) []inventory.OpnameLine {
	lines := make([]inventory.OpnameLine, len(reqs))
	for i, r := range reqs {
		lines[i] = inventory.OpnameLine{
			BatchID:          uuid.MustParse(r.BatchID),
			PhysicalQuantity: r.PhysicalQuantity,
			Note:             r.Note,
		}
	}
	return lines
}

// Create godoc
// @Summary  Open a draft opname
// @Tags     opnames
// @Router   /opnames [post]
func (h *OpnameHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req CreateOpnameRequest
	if !h.bindJSON(c, &req) {
		return
	}

	date, ok := h.optionalDate(c, "opname_date", req.OpnameDate)
	if !ok {
		return
	}

	input := inventoryapp.CreateOpnameInput{
		Unit:              req.Unit,
		ResponsiblePerson: req.ResponsiblePerson,
		Notes:             req.Notes,
		Lines:             toOpnameLines(req.Details),
		ActorID:           actor,
	}
	if date != nil {
		input.OpnameDate = *date
	}

	opname, err := h.opnames.Create(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, opname)
}

// List godoc
// @Summary  List opnames, optionally by status
// @Tags     opnames
// @Router   /opnames [get]
func (h *OpnameHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	opnames, total, err := h.opnames.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, opnames, total, filter.Page, filter.PageSize)
}

// Pending godoc
// @Summary  List completed opnames awaiting approval
// @Tags     opnames
// @Router   /opnames/pending [get]
func (h *OpnameHandler) Pending(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	opnames, total, err := h.opnames.ListPendingApproval(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, opnames, total, filter.Page, filter.PageSize)
}

// Get godoc
// @Summary  Get an opname with its details
// @Tags     opnames
// @Router   /opnames/{id} [get]
func (h *OpnameHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id", "opname")
	if !ok {
		return
	}
	opname, err := h.opnames.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, opname)
}

// ReplaceDetails godoc
// @Summary  Replace the counted lines of a draft opname
// @Tags     opnames
// @Router   /opnames/{id}/details [put]
func (h *OpnameHandler) ReplaceDetails(c *gin.Context) {
	id, ok := h.pathID(c, "id", "opname")
	if !ok {
		return
	}
	var req ReplaceOpnameDetailsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	opname, err := h.opnames.ReplaceDetails(c.Request.Context(), id, toOpnameLines(req.Details))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, opname)
}

// Start godoc
// @Summary  Start counting
// @Tags     opnames
// @Router   /opnames/{id}/start [post]
func (h *OpnameHandler) Start(c *gin.Context) {
	id, ok := h.pathID(c, "id", "opname")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	opname, err := h.opnames.Start(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, opname)
}

// Complete godoc
// @Summary  Close counting with the report text
// @Tags     opnames
// @Router   /opnames/{id}/complete [post]
func (h *OpnameHandler) Complete(c *gin.Context) {
	id, ok := h.pathID(c, "id", "opname")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req CompleteOpnameRequest
	if !h.bindJSON(c, &req) {
		return
	}
	opname, err := h.opnames.Complete(c.Request.Context(), id, req.Report, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, opname)
}

// Approve godoc
// @Summary  Approve and apply the physical counts
// @Tags     opnames
// @Router   /opnames/{id}/approve [post]
func (h *OpnameHandler) Approve(c *gin.Context) {
	id, ok := h.pathID(c, "id", "opname")
	if !ok {
		return
	}
	approver, ok := h.requireActor(c)
	if !ok {
		return
	}
	opname, err := h.opnames.Approve(c.Request.Context(), id, approver)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, opname)
}
