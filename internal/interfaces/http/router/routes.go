package router

import (
	"github.com/gin-gonic/gin"
	"github.com/pharmaledger/backend/internal/interfaces/http/handler"
)

// Handlers groups the HTTP handlers mounted by Mount.
// Outbox is optional; the admin routes are skipped when it is nil.
type Handlers struct {
	Medicine    *handler.MedicineHandler
	Batch       *handler.BatchHandler
	Audit       *handler.AuditHandler
	Opname      *handler.OpnameHandler
	Destruction *handler.DestructionHandler
	Outbox      *handler.OutboxHandler
	Health      *handler.HealthHandler
}

// Mount registers the probes on the engine root and every ledger route
// under the versioned API group, then calls Setup.
func Mount(engine *gin.Engine, h Handlers, opts ...RouterOption) *Router {
	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
		engine.GET("/ready", h.Health.Ready)
	}

	r := NewRouter(engine, opts...)
	r.Register(
		medicineRoutes(h.Medicine),
		batchRoutes(h.Batch),
		scanRoutes(h.Batch, h.Audit),
		opnameRoutes(h.Opname),
		destructionRoutes(h.Destruction),
	)
	if h.Outbox != nil {
		r.Register(systemRoutes(h.Outbox))
	}
	r.Setup()
	return r
}

func medicineRoutes(h *handler.MedicineHandler) *DomainGroup {
	g := NewDomainGroup("medicines", "/medicines")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/recompute", h.Recompute)
	g.GET("/:id/batches", h.Batches)
	g.POST("/:id/allocate", h.Allocate)
	g.POST("/:id/dispense", h.Dispense)
	return g
}

func batchRoutes(h *handler.BatchHandler) *DomainGroup {
	g := NewDomainGroup("batches", "/batches")
	g.POST("", h.Receive)
	g.GET("/statistics", h.Statistics)
	g.GET("/expiring", h.Expiring)
	g.GET("/expired", h.Expired)
	g.POST("/expire", h.Expire)
	g.GET("/:id", h.Get)
	g.GET("/:id/qr", h.QR)
	g.POST("/:id/adjust", h.Adjust)
	g.POST("/:id/recall", h.Recall)
	return g
}

// scan resolution and the read-only audit trail share the root of the API
func scanRoutes(batches *handler.BatchHandler, audit *handler.AuditHandler) *DomainGroup {
	g := NewDomainGroup("scan", "")
	g.POST("/scan", batches.Scan)
	g.GET("/scan-logs", audit.ScanLogs)
	g.GET("/scan-logs/analytics", audit.ScanAnalytics)
	g.GET("/audit/:kind/:id", audit.Entries)
	return g
}

func opnameRoutes(h *handler.OpnameHandler) *DomainGroup {
	g := NewDomainGroup("opnames", "/opnames")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/pending", h.Pending)
	g.GET("/:id", h.Get)
	g.PUT("/:id/details", h.ReplaceDetails)
	g.POST("/:id/start", h.Start)
	g.POST("/:id/complete", h.Complete)
	g.POST("/:id/approve", h.Approve)
	return g
}

func destructionRoutes(h *handler.DestructionHandler) *DomainGroup {
	g := NewDomainGroup("destructions", "/destructions")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/pending", h.Pending)
	g.GET("/eligible-batches", h.EligibleBatches)
	g.GET("/:id", h.Get)
	g.PUT("/:id/details", h.ReplaceDetails)
	g.POST("/:id/report-upload", h.RequestReportUpload)
	g.POST("/:id/report", h.AttachReport)
	g.POST("/:id/complete", h.Complete)
	g.POST("/:id/approve", h.Approve)
	return g
}

func systemRoutes(h *handler.OutboxHandler) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	outbox := g.Group("outbox", "/outbox")
	outbox.GET("/stats", h.GetStats)
	outbox.GET("/dead", h.GetDeadLetterEntries)
	outbox.POST("/dead/retry", h.RetryAllDeadEntries)
	outbox.GET("/:id", h.GetEntry)
	outbox.POST("/:id/retry", h.RetryDeadEntry)
	return g
}
