// Package metrics holds the prometheus collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service collectors.
type Metrics struct {
	requests       *prometheus.HistogramVec
	registrations  prometheus.Counter
	photos         prometheus.Counter
	yearbookBuilds prometheus.Counter
	cacheLookups   *prometheus.CounterVec
}

// New registers collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "snapbook",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		registrations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "snapbook",
			Name:      "registrations_total",
			Help:      "Participants registered.",
		}),
		photos: f.NewCounter(prometheus.CounterOpts{
			Namespace: "snapbook",
			Name:      "photos_captured_total",
			Help:      "Photos appended to participants.",
		}),
		yearbookBuilds: f.NewCounter(prometheus.CounterOpts{
			Namespace: "snapbook",
			Name:      "yearbook_builds_total",
			Help:      "Yearbook entry derivations.",
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapbook",
			Name:      "yearbook_cache_lookups_total",
			Help:      "Yearbook cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) Registration() {
	if m != nil {
		m.registrations.Inc()
	}
}

func (m *Metrics) PhotoCaptured() {
	if m != nil {
		m.photos.Inc()
	}
}

func (m *Metrics) YearbookBuilt() {
	if m != nil {
		m.yearbookBuilds.Inc()
	}
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// GinMiddleware observes request latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
