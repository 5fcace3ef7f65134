package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger_SetsTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger().Handler())

	var traceID string
	r.GET("/ping", func(c *gin.Context) {
		traceID = c.GetString("trace_id")
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, traceID, "Каждый запрос получает trace_id")
}

func TestRequestLogger_SkipList(t *testing.T) {
	rl := NewRequestLogger()
	_, metrics := rl.skip["/metrics"]
	_, health := rl.skip["/health"]
	assert.True(t, metrics, "/metrics пропускается по умолчанию")
	assert.True(t, health, "/health пропускается по умолчанию")

	custom := NewRequestLogger("/internal/debug")
	_, debug := custom.skip["/internal/debug"]
	_, defaultMetrics := custom.skip["/metrics"]
	assert.True(t, debug, "Явный skip-список используется как есть")
	assert.False(t, defaultMetrics, "Явный список вытесняет дефолтный")
}
