package sharrock

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds per-service Prometheus collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses a fresh private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sharrock",
			Name:      "requests_total",
			Help:      "Service executions by app, version, service, method and status code.",
		}, []string{"app", "version", "service", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sharrock",
			Name:      "request_duration_seconds",
			Help:      "Service execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"app", "version", "service"}),
		gatherer: reg,
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// unmatchedKey labels requests that addressed no registered service. Label
// values never come from an unmatched path, so the series stay bounded.
var unmatchedKey = Key{Slug: "unmatched"}

// methodLabel folds methods outside the standard set into "other".
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	default:
		return "other"
	}
}

// observe is safe on a nil receiver so routers without metrics skip it.
func (m *Metrics) observe(key Key, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(key.App, key.Version, key.Slug, methodLabel(method), strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(key.App, key.Version, key.Slug).Observe(elapsed.Seconds())
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RequestCounter exposes the request counter for tests and custom exporters.
func (m *Metrics) RequestCounter() *prometheus.CounterVec {
	return m.requests
}
