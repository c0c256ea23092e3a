package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfilingWithConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	labelsOf := func(c *gin.Context) gin.H {
		h := gin.H{}
		pprof.ForLabels(c.Request.Context(), func(key, value string) bool {
			h[key] = value
			return true
		})
		return h
	}

	router := gin.New()
	router.Use(Profiling())
	router.GET("/api/v1/opnames/:id", func(c *gin.Context) { c.JSON(http.StatusOK, labelsOf(c)) })
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, labelsOf(c)) })

	t.Run("labels requests by route pattern", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/opnames/3f0c", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"method":"GET","route":"/api/v1/opnames/:id","controller":"opnames"}`, w.Body.String())
	})

	t.Run("skips health checks", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{}`, w.Body.String())
	})

	t.Run("disabled middleware passes through", func(t *testing.T) {
		r := gin.New()
		r.Use(ProfilingWithConfig(ProfilingConfig{}))
		r.GET("/api/v1/batches", func(c *gin.Context) { c.JSON(http.StatusOK, labelsOf(c)) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/batches", nil))
		assert.JSONEq(t, `{}`, w.Body.String())
	})
}

func TestControllerFromRoute(t *testing.T) {
	assert.Equal(t, "opnames", controllerFromRoute("/api/v1/opnames/:id/approve"))
	assert.Equal(t, "batches", controllerFromRoute("/api/v1/batches/statistics"))
	assert.Equal(t, "", controllerFromRoute("/api/v2/:id"))
}
