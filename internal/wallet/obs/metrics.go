// Package obs exposes Prometheus metrics for the protocol server.
package obs

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uwp_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uwp_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uwp_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	pushEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uwp_push_events_total",
			Help: "Events broadcast to push subscribers.",
		},
		[]string{"type"},
	)

	unlockFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uwp_unlock_failures_total",
		Help: "Failed wallet unlock attempts.",
	})
)

var initOnce sync.Once

// Init registers the metrics in the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			pushEventsTotal, unlockFailuresTotal)
	})
}

// RegisterStateGauges exposes live session and pending request counts.
// Re-registration (a second server in the same process) is ignored.
func RegisterStateGauges(sessions, pending, subscribers func() float64) {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "uwp_active_sessions",
			Help: "Currently active sessions.",
		}, sessions),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "uwp_pending_requests",
			Help: "Authorization requests awaiting a decision.",
		}, pending),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "uwp_push_subscribers",
			Help: "Connected push subscribers.",
		}, subscribers),
	}
	for _, g := range gauges {
		_ = prometheus.Register(g)
	}
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePushEvent counts one broadcast event.
func ObservePushEvent(eventType string) {
	pushEventsTotal.WithLabelValues(eventType).Inc()
}

// ObserveUnlockFailure counts one failed unlock attempt.
func ObserveUnlockFailure() {
	unlockFailuresTotal.Inc()
}

// Instrument measures request counts, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)
		path := CanonicalPath(r.URL.Path)

		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses per-request path segments so metric cardinality
// stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}

	for _, prefix := range []string{
		"/api/v1/auth/status/",
		"/api/v1/auth/approve/",
		"/api/v1/auth/deny/",
	} {
		if strings.HasPrefix(path, prefix) {
			return prefix + ":request_id"
		}
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/balance/"); ok && rest != "" {
		if strings.Contains(rest, "/") {
			return "/api/v1/balance/:contract/:spender"
		}
		return "/api/v1/balance/:contract"
	}
	return path
}

// statusWriter records the response code. It forwards Hijack so the
// websocket upgrade works through the instrumented chain.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
