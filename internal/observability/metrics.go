// Package observability provides Prometheus metrics and structured logging.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Verification metrics
	Verifications     *prometheus.CounterVec
	VerifyLatency     prometheus.Histogram
	RateLimitRejected *prometheus.CounterVec

	// Executor metrics
	ExecutorAttempts *prometheus.CounterVec
	ExecutorDuration *prometheus.HistogramVec
	RPCCallLatency   *prometheus.HistogramVec

	// Settlement metrics
	Settlements       *prometheus.CounterVec
	SettledVolume     prometheus.Counter
	CommissionsEarned prometheus.Counter

	// Curve metrics
	CurveTrades *prometheus.CounterVec
	Graduations *prometheus.CounterVec

	// Supporting services
	NotificationsSent *prometheus.CounterVec
	PriceLookups      *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_marketplace"
	}

	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "results_total",
			Help:      "Transaction verifications by direction and outcome",
		}, []string{"direction", "outcome"}),
		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "latency_seconds",
			Help:      "Time spent verifying an external transaction",
			Buckets:   prometheus.DefBuckets,
		}),
		RateLimitRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "rate_limited_total",
			Help:      "Verification requests rejected by the rate limiter",
		}, []string{"scope"}),

		ExecutorAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "attempts_total",
			Help:      "Transfer submission attempts by outcome",
		}, []string{"outcome"}),
		ExecutorDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "duration_seconds",
			Help:      "End-to-end execution time including confirmation",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"status"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		Settlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "settlements_total",
			Help:      "Settlements by final status",
		}, []string{"status"}),
		SettledVolume: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "volume_lamports_total",
			Help:      "Gross lamports settled",
		}),
		CommissionsEarned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "commission_lamports_total",
			Help:      "Platform commission lamports paid out",
		}),

		CurveTrades: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "trades_total",
			Help:      "Curve trades by side and status",
		}, []string{"side", "status"}),
		Graduations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "graduations_total",
			Help:      "Graduation attempts by outcome",
		}, []string{"outcome"}),

		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by kind and outcome",
		}, []string{"kind", "outcome"}),
		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "lookups_total",
			Help:      "Quote price lookups by source (fresh, cached, stale, fallback)",
		}, []string{"source"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordVerification records a verification outcome.
func RecordVerification(direction, outcome string, seconds float64) {
	DefaultMetrics.Verifications.WithLabelValues(direction, outcome).Inc()
	DefaultMetrics.VerifyLatency.Observe(seconds)
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited(scope string) {
	DefaultMetrics.RateLimitRejected.WithLabelValues(scope).Inc()
}

// RecordExecutorAttempt records one submission attempt.
func RecordExecutorAttempt(outcome string) {
	DefaultMetrics.ExecutorAttempts.WithLabelValues(outcome).Inc()
}

// RecordExecution records the end-to-end result of one Execute call.
func RecordExecution(status string, seconds float64) {
	DefaultMetrics.ExecutorDuration.WithLabelValues(status).Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordSettlement records a settlement reaching a final status.
func RecordSettlement(status string, gross, commission uint64) {
	DefaultMetrics.Settlements.WithLabelValues(status).Inc()
	if status == "completed" {
		DefaultMetrics.SettledVolume.Add(float64(gross))
		DefaultMetrics.CommissionsEarned.Add(float64(commission))
	}
}

// RecordCurveTrade records a curve trade status change.
func RecordCurveTrade(side, status string) {
	DefaultMetrics.CurveTrades.WithLabelValues(side, status).Inc()
}

// RecordGraduation records a graduation attempt outcome.
func RecordGraduation(outcome string) {
	DefaultMetrics.Graduations.WithLabelValues(outcome).Inc()
}

// RecordNotification records a notification delivery outcome.
func RecordNotification(kind, outcome string) {
	DefaultMetrics.NotificationsSent.WithLabelValues(kind, outcome).Inc()
}

// RecordPriceLookup records where a quote price came from.
func RecordPriceLookup(source string) {
	DefaultMetrics.PriceLookups.WithLabelValues(source).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(route string, code int, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, http.StatusText(code)).Inc()
	DefaultMetrics.HTTPDuration.WithLabelValues(route).Observe(seconds)
}
