package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Registration()
	m.Registration()
	m.PhotoCaptured()
	m.YearbookBuilt()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	if got := testutil.ToFloat64(m.registrations); got != 2 {
		t.Errorf("expected 2 registrations, got %v", got)
	}
	if got := testutil.ToFloat64(m.photos); got != 1 {
		t.Errorf("expected 1 photo, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Registration()
	m.PhotoCaptured()
	m.YearbookBuilt()
	m.CacheLookup(true)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestGinMiddlewareObserves(t *testing.T) {
	m := New(prometheus.NewRegistry())
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if n := testutil.CollectAndCount(m.requests); n != 2 {
		t.Errorf("expected 2 label sets, got %d", n)
	}
}
