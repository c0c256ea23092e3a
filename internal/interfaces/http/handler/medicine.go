package handler

import (
	"github.com/gin-gonic/gin"
	inventoryapp "github.com/pharmaledger/backend/internal/application/inventory"
	"github.com/shopspring/decimal"
)

// MedicineHandler serves medicine master data, FEFO allocation and dispensing
type MedicineHandler struct {
	BaseHandler
	medicines  *inventoryapp.MedicineService
	batches    *inventoryapp.BatchService
	allocation *inventoryapp.AllocationService
}

// NewMedicineHandler creates a new MedicineHandler
func NewMedicineHandler(
	medicines *inventoryapp.MedicineService,
	batches *inventoryapp.BatchService,
	allocation *inventoryapp.AllocationService,
) *MedicineHandler {
	return &MedicineHandler{
		medicines:  medicines,
		batches:    batches,
		allocation: allocation,
	}
}

// CreateMedicineRequest is the body of POST /medicines
type CreateMedicineRequest struct {
	Code          string          `json:"code" binding:"required,notblank,max=50"`
	Name          string          `json:"name" binding:"required,notblank,max=200"`
	GenericName   string          `json:"generic_name" binding:"max=200"`
	Category      string          `json:"category" binding:"max=100"`
	DosageForm    string          `json:"dosage_form" binding:"max=100"`
	Unit          string          `json:"unit" binding:"required,notblank,max=50"`
	StockMinimum  int64           `json:"stock_minimum" binding:"gte=0"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
}

// QuantityRequest is the body of allocate
type QuantityRequest struct {
	Quantity int64 `json:"quantity" binding:"required,gt=0"`
}

// DispenseRequest is the body of dispense
type DispenseRequest struct {
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Reference string `json:"reference" binding:"max=100"`
}

// Create godoc
// @Summary  Register a medicine
// @Tags     medicines
// @Router   /medicines [post]
func (h *MedicineHandler) Create(c *gin.Context) {
	var req CreateMedicineRequest
	if !h.bindJSON(c, &req) {
		return
	}

	medicine, err := h.medicines.Create(c.Request.Context(), inventoryapp.CreateMedicineInput{
		Code:          req.Code,
		Name:          req.Name,
		GenericName:   req.GenericName,
		Category:      req.Category,
		DosageForm:    req.DosageForm,
		Unit:          req.Unit,
		StockMinimum:  req.StockMinimum,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, medicine)
}

// List godoc
// @Summary  List medicines, or only those below their minimum with low_stock=true
// @Tags     medicines
// @Router   /medicines [get]
func (h *MedicineHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	if queryBool(c, "low_stock") {
		medicines, err := h.medicines.ListLowStock(c.Request.Context(), filter)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, medicines)
		return
	}

	medicines, total, err := h.medicines.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, medicines, total, filter.Page, filter.PageSize)
}

// Get godoc
// @Summary  Get a medicine
// @Tags     medicines
// @Router   /medicines/{id} [get]
func (h *MedicineHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id", "medicine")
	if !ok {
		return
	}
	medicine, err := h.medicines.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, medicine)
}

// Recompute godoc
// @Summary  Recompute stock_total from active batches
// @Tags     medicines
// @Router   /medicines/{id}/recompute [post]
func (h *MedicineHandler) Recompute(c *gin.Context) {
	id, ok := h.pathID(c, "id", "medicine")
	if !ok {
		return
	}
	medicine, err := h.medicines.RecomputeTotal(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, medicine)
}

// Batches godoc
// @Summary  List the batches of a medicine in FEFO order
// @Tags     medicines
// @Router   /medicines/{id}/batches [get]
func (h *MedicineHandler) Batches(c *gin.Context) {
	id, ok := h.pathID(c, "id", "medicine")
	if !ok {
		return
	}
	batches, err := h.batches.ListByMedicine(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// Allocate godoc
// @Summary  Plan a FEFO allocation without changing stock
// @Tags     medicines
// @Router   /medicines/{id}/allocate [post]
func (h *MedicineHandler) Allocate(c *gin.Context) {
	id, ok := h.pathID(c, "id", "medicine")
	if !ok {
		return
	}
	var req QuantityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	plan, err := h.allocation.Allocate(c.Request.Context(), id, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// Dispense godoc
// @Summary  Dispense stock across batches in FEFO order
// @Tags     medicines
// @Router   /medicines/{id}/dispense [post]
func (h *MedicineHandler) Dispense(c *gin.Context) {
	id, ok := h.pathID(c, "id", "medicine")
	if !ok {
		return
	}
	var req DispenseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.allocation.Dispense(c.Request.Context(), inventoryapp.DispenseInput{
		MedicineID: id,
		Quantity:   req.Quantity,
		Reference:  req.Reference,
		ActorID:    actorPtr(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
