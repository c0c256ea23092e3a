package handler

import (
	"github.com/gin-gonic/gin"
	inventoryapp "github.com/pharmaledger/backend/internal/application/inventory"
)

// AuditHandler serves the scan log and the per-subject audit trail
type AuditHandler struct {
	BaseHandler
	audit *inventoryapp.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit *inventoryapp.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// ScanLogs godoc
// @Summary  List scan attempts, filtered by batch_id, result, from and to
// @Tags     audit
// @Router   /scan-logs [get]
func (h *AuditHandler) ScanLogs(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	logs, total, err := h.audit.ListScanLogs(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, logs, total, filter.Page, filter.PageSize)
}

// ScanAnalytics godoc
// @Summary  Scan totals by result and method, most-scanned batches and medicines, daily trend
// @Tags     audit
// @Param    period query string false "today (default), week, month, year or all"
// @Router   /scan-logs/analytics [get]
func (h *AuditHandler) ScanAnalytics(c *gin.Context) {
	analytics, err := h.audit.ScanAnalytics(c.Request.Context(), c.Query("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, analytics)
}

// Entries godoc
// @Summary  List audit entries of a batch, opname or destruction
// @Tags     audit
// @Router   /audit/{kind}/{id} [get]
func (h *AuditHandler) Entries(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	entries, total, err := h.audit.ListAuditEntries(c.Request.Context(), c.Param("kind"), c.Param("id"), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, filter.Page, filter.PageSize)
}
