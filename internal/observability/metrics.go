package observability

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_events_total",
			Help: "Committed audit events by kind.",
		},
		[]string{"kind"},
	)

	callFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_call_failures_total",
			Help: "Rejected or rolled back ledger calls by operation and reason code.",
		},
		[]string{"op", "code"},
	)

	escrowLocked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_escrow_locked",
		Help: "Funds currently held by the escrow, in minor units.",
	})

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(eventsTotal, callFailuresTotal, escrowLocked, httpInFlight, httpRequestsTotal, httpRequestDuration)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountEvent increments the committed-event counter.
func CountEvent(kind string) {
	eventsTotal.WithLabelValues(kind).Inc()
}

// CountFailure records a failed call. Unclassified errors are reported as "internal".
func CountFailure(op, code string) {
	if code == "" {
		code = "internal"
	}
	callFailuresTotal.WithLabelValues(op, code).Inc()
}

func SetEscrowLocked(amount int64) {
	escrowLocked.Set(float64(amount))
}

// Instrument wraps next with request count, latency and in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := CanonicalPath(r.URL.Path)
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// CanonicalPath collapses identifiers in API paths so label cardinality stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(p, "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "jobs", "identities", "reputation", "balances":
			if parts[i] != "" && parts[i] != "me" {
				parts[i] = ":id"
			}
		}
	}
	return strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
