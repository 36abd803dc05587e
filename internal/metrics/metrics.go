// Package metrics provides Prometheus instrumentation for Constable.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for Constable.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Domain metrics
	UsersRegisteredTotal prometheus.Counter
	TokensIssuedTotal    prometheus.Counter
	TokensRevokedTotal   prometheus.Counter
	SearchesTotal        *prometheus.CounterVec
	SearchResultSize     prometheus.Histogram
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constable_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "constable_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.UsersRegisteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "constable_users_registered_total",
			Help: "Total number of user accounts registered",
		},
	)

	m.TokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "constable_tokens_issued_total",
			Help: "Total number of session tokens issued",
		},
	)

	m.TokensRevokedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "constable_tokens_revoked_total",
			Help: "Total number of session tokens revoked",
		},
	)

	m.SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constable_searches_total",
			Help: "Total number of search requests by outcome",
		},
		[]string{"status"},
	)

	m.SearchResultSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "constable_search_result_size",
			Help:    "Number of records returned per search page",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	return m
}

// RecordSearch records a search outcome.
func (m *Metrics) RecordSearch(status string, resultSize int) {
	m.SearchesTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.SearchResultSize.Observe(float64(resultSize))
	}
}

// Middleware instruments HTTP requests with count and duration. The route
// label uses the chi route pattern, not the raw path, so token IDs and
// other high-cardinality values never become label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
