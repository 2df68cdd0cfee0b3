package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Config loader metrics
	ConfigLoadsTotal   *prometheus.CounterVec
	ConfigLoadDuration prometheus.Histogram

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Directory metrics
	DirectoryErrorsTotal *prometheus.CounterVec

	// Decision metrics
	PermissionsBuiltTotal *prometheus.CounterVec
	DecisionsTotal        *prometheus.CounterVec

	// Rate limiter metrics
	RateLimitedTotal *prometheus.CounterVec

	// Webhook metrics
	WebhookDeliveriesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_rbac_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helpdesk_rbac_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ConfigLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_rbac_config_loads_total",
				Help: "Total number of group-role configuration loads by resulting source",
			},
			[]string{"source"},
		),
		ConfigLoadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "helpdesk_rbac_config_load_duration_seconds",
				Help:    "Time spent reading group-role configuration rows",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_rbac_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_rbac_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		DirectoryErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_rbac_directory_errors_total",
				Help: "Total number of failed directory lookups",
			},
			[]string{"operation"},
		),

		PermissionsBuiltTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_rbac_permissions_built_total",
				Help: "Total number of permission snapshots built by role",
			},
			[]string{"role"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_rbac_decisions_total",
				Help: "Total number of ticket decisions by predicate and outcome",
			},
			[]string{"predicate", "allowed"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_rbac_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_rbac_webhook_deliveries_total",
				Help: "Total number of webhook delivery outcomes by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ConfigLoadsTotal,
		m.ConfigLoadDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DirectoryErrorsTotal,
		m.PermissionsBuiltTotal,
		m.DecisionsTotal,
		m.RateLimitedTotal,
		m.WebhookDeliveriesTotal,
	)

	return m
}

// The Record helpers are safe on a nil *Metrics so components can run without
// a registry in tests.

// RecordConfigLoad counts a configuration load and its duration
func (m *Metrics) RecordConfigLoad(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ConfigLoadsTotal.WithLabelValues(source).Inc()
	m.ConfigLoadDuration.Observe(duration.Seconds())
}

// RecordCacheHit counts a hit on the named cache
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss counts a miss on the named cache
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordDirectoryError counts a failed directory operation
func (m *Metrics) RecordDirectoryError(operation string) {
	if m == nil {
		return
	}
	m.DirectoryErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordPermissionsBuilt counts a permission snapshot for a role
func (m *Metrics) RecordPermissionsBuilt(role string) {
	if m == nil {
		return
	}
	m.PermissionsBuiltTotal.WithLabelValues(role).Inc()
}

// RecordDecision counts one predicate outcome
func (m *Metrics) RecordDecision(predicate string, allowed bool) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(predicate, strconv.FormatBool(allowed)).Inc()
}

// RecordRateLimited counts a request rejected by the named limiter
func (m *Metrics) RecordRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// RecordWebhookDelivery counts one webhook delivery outcome
func (m *Metrics) RecordWebhookDelivery(status string) {
	if m == nil {
		return
	}
	m.WebhookDeliveriesTotal.WithLabelValues(status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// pathFor maps a request to a bounded label, usually the route template.
func HTTPMetricsMiddleware(metrics *Metrics, pathFor func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if pathFor != nil {
				path = pathFor(r)
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
