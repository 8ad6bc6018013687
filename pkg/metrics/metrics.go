// Package metrics provides Prometheus instrumentation for Driftmarket.
//
// It pre-defines the standard HTTP metrics plus the business counters the
// order/email pipeline reports. Scrape /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ─────────────────────────────────────────────
// Built-in HTTP metrics
// ─────────────────────────────────────────────

var (
	// RequestDuration tracks how long each HTTP request takes,
	// broken down by method, route path, and status code.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "driftmarket",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts all HTTP requests.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftmarket",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// RequestInFlight tracks how many requests are currently being served.
	RequestInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "driftmarket",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})
)

// ─────────────────────────────────────────────
// Business metrics (order/email pipeline)
// ─────────────────────────────────────────────

var (
	// OrdersCreated counts orders persisted at checkout.
	OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "driftmarket",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Total orders saved at checkout.",
	})

	// OrderEmails counts order confirmation email attempts by outcome.
	OrderEmails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftmarket",
			Subsystem: "orders",
			Name:      "emails_total",
			Help:      "Order confirmation email attempts.",
		},
		[]string{"outcome"}, // "sent" | "failed"
	)

	// SweepRuns counts retry sweep executions by trigger.
	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftmarket",
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Email retry sweep executions.",
		},
		[]string{"trigger"}, // "cron" | "admin" | "schedule" | "cli"
	)

	// ProductsImported counts bulk-import item outcomes.
	ProductsImported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftmarket",
			Subsystem: "catalog",
			Name:      "imported_total",
			Help:      "Bulk import item outcomes.",
		},
		[]string{"outcome"}, // "imported" | "skipped" | "failed"
	)
)

// ─────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────

// DefaultRegistry is the Prometheus registry used by Driftmarket.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	// Go runtime metrics (GC, goroutines, memory)
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	// OS process metrics (CPU, open FDs)
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		RequestDuration,
		RequestTotal,
		RequestInFlight,
		OrdersCreated,
		OrderEmails,
		SweepRuns,
		ProductsImported,
	)
}

// Register adds a prometheus.Collector to the registry.
func Register(c prometheus.Collector) error {
	return DefaultRegistry.Register(c)
}

// MustRegister panics if registration fails.
func MustRegister(c ...prometheus.Collector) {
	DefaultRegistry.MustRegister(c...)
}

// ─────────────────────────────────────────────
// HTTP wiring
// ─────────────────────────────────────────────

// Handler returns the /metrics scrape endpoint.
func Handler() http.HandlerFunc {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{}).ServeHTTP
}

// statusRecorder captures the response status for labelling.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Middleware instruments every request with duration/count/in-flight metrics.
// Wire it outermost so it observes total latency.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			RequestInFlight.Inc()
			defer RequestInFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.status)
			RequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
			RequestTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		})
	}
}
