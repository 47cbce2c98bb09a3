// Package metrics exposes Prometheus collectors for the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
)

const namespace = "books"

// Result labels.
const (
	ResultOK          = "ok"
	ResultRejected    = "rejected"
	ResultInvalid     = "invalid"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// Metrics holds the collectors of one server. Every method is safe to call
// on a nil *Metrics, which records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	logins        *prometheus.CounterVec
	sessionChecks *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	publishedRows *prometheus.CounterVec
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_checks_total",
			Help:      "Session validations by result.",
		}, []string{"result"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_publishes_total",
			Help:      "Report publishes by kind and result.",
		}, []string{"kind", "result"}),
		publishedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_rows_total",
			Help:      "Published report rows by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.logins,
		m.sessionChecks,
		m.publishes,
		m.publishedRows,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

// Login records a login attempt.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// SessionCheck records a session validation.
func (m *Metrics) SessionCheck(result string) {
	if m == nil {
		return
	}
	m.sessionChecks.WithLabelValues(result).Inc()
}

// Publish records a publish attempt and, when it succeeded, its row counts.
func (m *Metrics) Publish(kind string, summary reconcile.Summary, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishes.WithLabelValues(kind, ResultError).Inc()
		return
	}
	m.publishes.WithLabelValues(kind, ResultOK).Inc()
	m.publishedRows.WithLabelValues(kind, "inserted").Add(float64(summary.Inserted))
	m.publishedRows.WithLabelValues(kind, "skipped").Add(float64(summary.Skipped))
	m.publishedRows.WithLabelValues(kind, "replaced").Add(float64(summary.Replaced))
}
