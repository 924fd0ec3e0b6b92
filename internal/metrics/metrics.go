// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	AuthAttemptsTotal  *prometheus.CounterVec
	AuthFailuresTotal  *prometheus.CounterVec
	TokensIssuedTotal  *prometheus.CounterVec
	RoleChangesTotal   *prometheus.CounterVec
	PasswordHashTiming prometheus.Histogram

	// Cache metrics
	CacheLookupsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on registry. A nil registry gets a
// fresh one with the Go and process collectors attached.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shop_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_auth_attempts_total",
				Help: "Credential operations by kind and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_auth_rejections_total",
				Help: "Requests rejected by the authorization middleware",
			},
			[]string{"transport", "status"},
		),
		TokensIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_tokens_issued_total",
				Help: "Signed tokens by type and subject kind",
			},
			[]string{"type", "kind"},
		),
		RoleChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_role_changes_total",
				Help: "Role mutations performed through the admin API",
			},
			[]string{"action"},
		),
		PasswordHashTiming: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shop_password_hash_duration_seconds",
				Help:    "Time spent hashing passwords",
				Buckets: []float64{.05, .1, .2, .4, .8, 1.6, 3.2},
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_cache_lookups_total",
				Help: "Response cache lookups by result",
			},
			[]string{"result"},
		),
		registry: registry,
	}
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthAttemptsTotal,
		m.AuthFailuresTotal,
		m.TokensIssuedTotal,
		m.RoleChangesTotal,
		m.PasswordHashTiming,
		m.CacheLookupsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// AuthAttempt counts one credential operation.
func (m *Metrics) AuthAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttemptsTotal.WithLabelValues(operation, outcome).Inc()
}

// TokenIssued counts one signed token.
func (m *Metrics) TokenIssued(typ, kind string) {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.WithLabelValues(typ, kind).Inc()
}

// Rejected counts one middleware rejection.
func (m *Metrics) Rejected(transport, status string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(transport, status).Inc()
}

// RoleChange counts one role mutation.
func (m *Metrics) RoleChange(action string) {
	if m == nil {
		return
	}
	m.RoleChangesTotal.WithLabelValues(action).Inc()
}

// CacheLookup counts one cache lookup.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveRequest records one served HTTP request. path is the route
// template, not the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveHash records the duration of one password hash.
func (m *Metrics) ObserveHash(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PasswordHashTiming.Observe(elapsed.Seconds())
}
