package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmaledger/backend/internal/interfaces/http/dto"
)

// HealthChecker is one dependency probed by the readiness endpoint
type HealthChecker struct {
	Name string
	// Optional dependencies are reported but do not fail readiness
	Optional bool
	Check    func(ctx context.Context) error
}

// PingChecker adapts anything with a context-aware Ping
func PingChecker(name string, optional bool, p interface{ PingContext(context.Context) error }) HealthChecker {
	return HealthChecker{Name: name, Optional: optional, Check: p.PingContext}
}

// FlagChecker adapts a boolean health probe such as a broker connection
func FlagChecker(name string, optional bool, healthy func() bool) HealthChecker {
	return HealthChecker{
		Name:     name,
		Optional: optional,
		Check: func(context.Context) error {
			if !healthy() {
				return errors.New("unhealthy")
			}
			return nil
		},
	}
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checkers  []HealthChecker
	timeout   time.Duration
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(name, version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checkers:  checkers,
		timeout:   2 * time.Second,
	}
}

// LivenessResponse is the body of /health
type LivenessResponse struct {
	Status    string `json:"status"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// ReadinessResponse is the body of /ready
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health godoc
// @Summary  Liveness probe
// @Tags     system
// @Router   /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	h.Success(c, LivenessResponse{
		Status:    "ok",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready godoc
// @Summary  Readiness probe; 503 when a required dependency is down
// @Tags     system
// @Router   /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.checkers))}
	for _, checker := range h.checkers {
		if err := checker.Check(ctx); err != nil {
			resp.Checks[checker.Name] = "down: " + err.Error()
			if !checker.Optional {
				resp.Status = "not_ready"
			}
			continue
		}
		resp.Checks[checker.Name] = "up"
	}

	if resp.Status != "ready" {
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    resp,
			Error: &dto.ErrorInfo{
				Code:      dto.ErrCodeServiceUnavailable,
				Message:   "A required dependency is unavailable",
				RequestID: getRequestID(c),
			},
		})
		return
	}
	h.Success(c, resp)
}
