package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMiddleware_CountsByRoute(t *testing.T) {
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/admin/events", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/events?date=2024-01-01", nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/admin/events", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))
}

func TestEventUpdatesAndGauge(t *testing.T) {
	m := New()

	m.ObserveEventUpdate("moved")
	m.ObserveEventUpdate("moved")
	m.ObserveEventUpdate("repaired")
	m.SetUnmappedDomains(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventUpdates.WithLabelValues("moved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventUpdates.WithLabelValues("repaired")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.unmappedDomains))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEventUpdate("updated")
		m.SetUnmappedDomains(1)
	})
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New()
	m.SetUnmappedDomains(3)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "timewatch_admin_unmapped_domains 3")
}
