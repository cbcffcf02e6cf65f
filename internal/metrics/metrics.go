// Package metrics provides Prometheus instrumentation for the vault engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OperationsTotal counts processed operations by name and outcome
	// ("ok" or the rejection's error name).
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_operations_total",
		Help: "Total number of operations processed",
	}, []string{"op", "result"})

	// OperationLatency tracks end-to-end operation latency, lock wait included.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_operation_latency_seconds",
		Help:    "Operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// FeesCollected sums fees moved to fee or insurance destinations, in e6 units.
	FeesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_fees_collected_e6_total",
		Help: "Fees collected in e6 units",
	}, []string{"kind"})

	// TokenTransfers counts calls to the asset transfer primitive.
	TokenTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_token_transfers_total",
		Help: "Asset transfers issued, by reason and outcome",
	}, []string{"reason", "result"})

	// CompensatingTransfers counts reversal legs issued after a failed commit.
	CompensatingTransfers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_compensating_transfers_total",
		Help: "Transfers reversed because the record commit failed",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveOperation records one processed operation.
func ObserveOperation(op, result string, started time.Time) {
	OperationsTotal.WithLabelValues(op, result).Inc()
	OperationLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps the path label low-cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
