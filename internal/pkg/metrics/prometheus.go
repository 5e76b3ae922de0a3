package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commitcanvas",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "commitcanvas",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commitcanvas",
			Subsystem: "engine",
			Name:      "commits_total",
			Help:      "Commit records by kind and final status",
		},
		[]string{"kind", "status"},
	)

	remoteWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commitcanvas",
			Subsystem: "remote",
			Name:      "writes_total",
			Help:      "Remote repository write attempts by outcome",
		},
		[]string{"outcome"},
	)

	schedulerPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commitcanvas",
			Subsystem: "scheduler",
			Name:      "passes_total",
			Help:      "Cadence passes executed by the scheduler",
		},
		[]string{"cadence"},
	)

	schedulerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commitcanvas",
			Subsystem: "scheduler",
			Name:      "item_errors_total",
			Help:      "Per-item failures swallowed during a cadence pass",
		},
		[]string{"cadence"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns an HTTP middleware recording request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCommit counts a commit record reaching a final status.
func RecordCommit(kind, status string) {
	commitsTotal.WithLabelValues(kind, status).Inc()
}

// RecordRemoteWrite counts a remote write attempt by outcome.
func RecordRemoteWrite(outcome string) {
	remoteWritesTotal.WithLabelValues(outcome).Inc()
}

// RecordSchedulerPass counts one cadence pass.
func RecordSchedulerPass(cadence string) {
	schedulerPassesTotal.WithLabelValues(cadence).Inc()
}

// RecordSchedulerItemError counts a swallowed per-item failure.
func RecordSchedulerItemError(cadence string) {
	schedulerErrorsTotal.WithLabelValues(cadence).Inc()
}
