package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "timewatch_admin"

// Metrics держит собственный registry, чтобы тесты могли создавать экземпляры повторно
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	eventUpdates    *prometheus.CounterVec
	unmappedDomains prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})
	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	m.eventUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_updates_total",
		Help:      "Event updates by outcome (updated, moved, repaired)",
	}, []string{"outcome"})
	m.unmappedDomains = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "unmapped_domains",
		Help:      "Unmapped domains found by the last aggregation",
	})

	m.registry.MustRegister(
		m.requests, m.requestDuration, m.eventUpdates, m.unmappedDomains,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Middleware считает запросы по шаблону маршрута, а не по сырому пути
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveEventUpdate(outcome string) {
	if m == nil {
		return
	}
	m.eventUpdates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetUnmappedDomains(n int) {
	if m == nil {
		return
	}
	m.unmappedDomains.Set(float64(n))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
