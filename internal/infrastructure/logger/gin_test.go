package logger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func accessLog(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("logs route, status and ids", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(GinRequestIDKey, "req-42")
			c.Set(GinActorIDKey, "actor-1")
			c.Next()
		})
		router.Use(GinMiddleware(zap.New(core)))

		var ctxRequestID string
		router.GET("/batches/:id", func(c *gin.Context) {
			ctxRequestID = GetRequestID(c.Request.Context())
			GetGinLogger(c).Info("inside handler")
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batches/abc?x=1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-42", ctxRequestID)

		entry := accessLog(t, recorded)
		assert.Equal(t, zapcore.InfoLevel, entry.Level)
		fields := entry.ContextMap()
		assert.Equal(t, "/batches/:id", fields["route"])
		assert.Equal(t, "req-42", fields["request_id"])
		assert.Equal(t, "actor-1", fields["actor_id"])
		assert.Equal(t, "x=1", fields["query"])
		assert.EqualValues(t, http.StatusOK, fields["status"])

		inner := recorded.FilterMessage("inside handler").All()
		require.Len(t, inner, 1)
		assert.Equal(t, "req-42", inner[0].ContextMap()["request_id"])
	})

	t.Run("level follows status", func(t *testing.T) {
		cases := map[int]zapcore.Level{
			http.StatusNotFound:            zapcore.WarnLevel,
			http.StatusConflict:            zapcore.WarnLevel,
			http.StatusInternalServerError: zapcore.ErrorLevel,
		}
		for status, level := range cases {
			core, recorded := observer.New(zapcore.InfoLevel)
			router := gin.New()
			router.Use(GinMiddleware(zap.New(core)))
			router.GET("/x", func(c *gin.Context) { c.Status(status) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, level, accessLog(t, recorded).Level, "status %d", status)
		}
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(GinRequestIDKey, "req-panic")
		c.Next()
	})
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) { panic("ledger exploded") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "ERR_INTERNAL", body.Error.Code)
	assert.Equal(t, "req-panic", body.Error.RequestID)

	assert.Equal(t, 1, recorded.FilterMessage("Panic recovered").Len())
}

func TestGetGinLogger_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}
