package router

import (
	"github.com/gin-gonic/gin"
	"github.com/pharmaledger/backend/internal/infrastructure/config"
	"github.com/pharmaledger/backend/internal/infrastructure/logger"
	"github.com/pharmaledger/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig holds what NewEngine needs to build the global middleware stack
type EngineConfig struct {
	HTTP      config.HTTPConfig
	Tracing   middleware.TracingConfig
	Profiling middleware.ProfilingConfig
	// Meter is nil when metrics are disabled
	Meter metric.Meter
}

// NewEngine creates a gin engine with the global middleware stack applied
// in order:
//  1. RequestID - generate or propagate the request id
//  2. Recovery - catch panics
//  3. Logger - log requests
//  4. Tracing - server span per request
//  5. Profiling - pprof labels per route, off unless the profiler runs
//  6. Metrics - request count and latency per route
//  7. CORS
//  8. Secure - hardening headers
//  9. BodyLimit
// 10. Timeout - bound the request context
func NewEngine(cfg EngineConfig, log *zap.Logger) *gin.Engine {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(cfg.Tracing))
	engine.Use(middleware.ProfilingWithConfig(cfg.Profiling))
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)))
	engine.Use(middleware.Secure())
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	return engine
}

// APIMiddleware returns the middleware for the versioned API group:
// actor authentication followed by span enrichment, which needs the actor.
func APIMiddleware(jwtCfg middleware.JWTMiddlewareConfig) RouterOption {
	return WithAPIMiddleware(
		middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
		middleware.SpanAttributes(),
	)
}
