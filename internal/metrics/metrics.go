// Package metrics provides Prometheus instrumentation for the engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts ticks ingested from the feed, per pair.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fx_ticks_total",
		Help: "Total number of ticks ingested",
	}, []string{"pair"})

	// SignalsTotal counts strategy signals by outcome:
	// accepted, dropped (incomplete prices) or rejected (risk limits).
	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fx_signals_total",
		Help: "Total strategy signals by outcome",
	}, []string{"outcome"})

	// OrdersTotal counts orders forwarded to the execution adapter.
	OrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fx_orders_total",
		Help: "Total orders forwarded to execution",
	})

	// FillsTotal counts settled fills by status.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fx_fills_total",
		Help: "Total fills settled by the portfolio",
	}, []string{"status"})

	// Equity tracks the account equity in home currency. Gauge precision
	// is observability-grade only; the books stay in decimal.
	Equity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fx_equity",
		Help: "Account equity in home currency",
	})

	// QueueDepth tracks the buffered depth of each engine queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fx_queue_depth",
		Help: "Buffered events per engine queue",
	}, []string{"queue"})

	// DispatchIterations counts dispatcher loop iterations.
	DispatchIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fx_dispatch_iterations_total",
		Help: "Total dispatcher loop iterations",
	})

	// WebSocketClients tracks connected result-stream clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fx_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fx_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fx_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

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

		path := r.URL.Path
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
