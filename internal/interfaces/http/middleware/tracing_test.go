package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(prev)
	})
	return sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func tracedRouter(status int) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Tracing(DefaultTracingConfig()))
	router.Use(func(c *gin.Context) {
		c.Set(logger.GinActorIDKey, "8a4f0d0e-0c7e-4d37-9a8f-5d1e1f1b2c3d")
		c.Next()
	})
	router.Use(SpanAttributes())
	router.GET("/api/v1/batches/:id", func(c *gin.Context) {
		c.Status(status)
	})
	return router
}

func TestTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(Tracing(TracingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestSpanAttributes(t *testing.T) {
	t.Run("tags request and actor", func(t *testing.T) {
		sr := setupTestTracer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+uuid.NewString(), nil)
		req.Header.Set(RequestIDHeader, "req-trace-1")
		w := httptest.NewRecorder()
		tracedRouter(http.StatusOK).ServeHTTP(w, req)

		spans := sr.Ended()
		require.Len(t, spans, 1)
		v, ok := spanAttr(spans[0], "request_id")
		require.True(t, ok)
		assert.Equal(t, "req-trace-1", v.AsString())
		v, ok = spanAttr(spans[0], "actor_id")
		require.True(t, ok)
		assert.Equal(t, "8a4f0d0e-0c7e-4d37-9a8f-5d1e1f1b2c3d", v.AsString())
		assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("client errors keep the span ok", func(t *testing.T) {
		sr := setupTestTracer(t)

		w := httptest.NewRecorder()
		tracedRouter(http.StatusUnprocessableEntity).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/batches/x", nil))

		spans := sr.Ended()
		require.Len(t, spans, 1)
		v, ok := spanAttr(spans[0], "http.status_code")
		require.True(t, ok)
		assert.Equal(t, int64(http.StatusUnprocessableEntity), v.AsInt64())
		assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("server errors mark the span", func(t *testing.T) {
		sr := setupTestTracer(t)

		w := httptest.NewRecorder()
		tracedRouter(http.StatusInternalServerError).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/batches/x", nil))

		spans := sr.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("no span is a no-op", func(t *testing.T) {
		router := gin.New()
		router.Use(SpanAttributes())
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusTeapot) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
	})
}
