package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "educaster_ledger_build_info",
			Help: "Build information of the Educaster ledger API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "educaster_ledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "educaster_ledger_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "educaster_ledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Ledger operation metrics
	LedgerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "educaster_ledger_ops_total",
			Help: "Total number of ledger operations",
		},
		[]string{"op", "status"},
	)

	LedgerOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "educaster_ledger_op_duration_seconds",
			Help:    "Duration of ledger operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"op"},
	)

	PointsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "educaster_ledger_points_recorded_total",
			Help: "Total quiz points credited across all campaigns",
		},
	)

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "educaster_ledger_claims_total",
			Help: "Total number of reward claims",
		},
		[]string{"status"},
	)

	SettlementRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "educaster_ledger_settlement_runs_total",
			Help: "Total number of weekly settlement runs",
		},
		[]string{"status"},
	)

	SettledCampaignsPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "educaster_ledger_settled_campaigns_per_run",
			Help:    "Number of campaigns settled per settlement run",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
		},
	)

	CurrentWeekGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "educaster_ledger_current_week",
			Help: "Current epoch week identifier",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordLedgerOp records the outcome and duration of a ledger operation.
func RecordLedgerOp(op string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	LedgerOpsTotal.WithLabelValues(op, status).Inc()
	LedgerOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordClaim records a claim attempt.
func RecordClaim(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ClaimsTotal.WithLabelValues(status).Inc()
}

// RecordSettlement records a settlement run and the number of campaigns it
// settled.
func RecordSettlement(settled int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SettlementRunsTotal.WithLabelValues(status).Inc()
	if err == nil {
		SettledCampaignsPerRun.Observe(float64(settled))
	}
}
