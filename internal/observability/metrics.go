// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pass metrics
	PassesTotal    *prometheus.CounterVec
	PassDuration   prometheus.Histogram
	PassesInFlight prometheus.Gauge
	WalletStates   *prometheus.CounterVec
	ClaimedSOL     prometheus.Counter
	ReinvestedSOL  *prometheus.CounterVec

	// Venue metrics
	VenueRequests   *prometheus.CounterVec
	VenueLatency    *prometheus.HistogramVec
	BreakerState    prometheus.Gauge
	ClaimAnomalies  prometheus.Counter
	WatcherReads    prometheus.Histogram
	WatcherTimeouts *prometheus.CounterVec

	// Solana metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	ActivityDropped prometheus.Counter

	// Health metrics
	LastSuccessfulPass prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "fee_reinvestor"
	}

	return &Metrics{
		// Pass metrics
		PassesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "runs_total",
			Help:      "Total number of passes by trigger and status",
		}, []string{"trigger", "status"}),
		PassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "duration_seconds",
			Help:      "Pass execution duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		PassesInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "in_flight",
			Help:      "Number of passes currently executing",
		}),
		WalletStates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "wallet_states_total",
			Help:      "Terminal wallet states reached, by state",
		}, []string{"state"}),
		ClaimedSOL: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "claimed_sol_total",
			Help:      "Total SOL confirmed as claimed creator fees",
		}),
		ReinvestedSOL: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "reinvested_sol_total",
			Help:      "Total SOL sent to the venue for buys or transfers, by kind",
		}, []string{"kind"}),

		// Venue metrics
		VenueRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "requests_total",
			Help:      "Total venue requests by action and result",
		}, []string{"action", "result"}),
		VenueLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "request_latency_seconds",
			Help:      "Venue request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "breaker_state",
			Help:      "Venue circuit breaker state (0 closed, 1 half-open, 2 open)",
		}),
		ClaimAnomalies: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "claim_anomalies_total",
			Help:      "Claims accepted by the venue with no confirmed balance increase",
		}),
		WatcherReads: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "reads_per_wait",
			Help:      "Balance reads needed per confirmation wait",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 12},
		}),
		WatcherTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "timeouts_total",
			Help:      "Confirmation waits that exhausted their polls, by kind",
		}, []string{"kind"}),

		// Solana metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		ActivityDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "activity_dropped_total",
			Help:      "Activity records that failed to persist",
		}),

		// Health metrics
		LastSuccessfulPass: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pass_timestamp",
			Help:      "Unix timestamp of last completed pass",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPass records a finished pass.
func RecordPass(trigger, status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.PassesTotal.WithLabelValues(trigger, status).Inc()
	DefaultMetrics.PassDuration.Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulPass.Set(float64(finishedUnix))
	}
}

// PassStarted increments the in-flight gauge and returns its decrement.
func PassStarted() func() {
	DefaultMetrics.PassesInFlight.Inc()
	return func() { DefaultMetrics.PassesInFlight.Dec() }
}

// RecordWalletState counts a terminal wallet state.
func RecordWalletState(state string) {
	DefaultMetrics.WalletStates.WithLabelValues(state).Inc()
}

// RecordClaimed adds confirmed claimed SOL.
func RecordClaimed(sol float64) {
	DefaultMetrics.ClaimedSOL.Add(sol)
}

// RecordReinvested adds SOL spent on a buy or transfer.
func RecordReinvested(kind string, sol float64) {
	DefaultMetrics.ReinvestedSOL.WithLabelValues(kind).Add(sol)
}

// RecordVenueRequest records a venue call.
func RecordVenueRequest(action, result string, seconds float64) {
	DefaultMetrics.VenueRequests.WithLabelValues(action, result).Inc()
	DefaultMetrics.VenueLatency.WithLabelValues(action).Observe(seconds)
}

// SetBreakerState publishes the venue breaker state.
func SetBreakerState(state int) {
	DefaultMetrics.BreakerState.Set(float64(state))
}

// RecordClaimAnomaly counts an unconfirmed accepted claim.
func RecordClaimAnomaly() {
	DefaultMetrics.ClaimAnomalies.Inc()
}

// RecordWatcherWait records the outcome of a confirmation wait.
func RecordWatcherWait(kind string, reads int, timedOut bool) {
	DefaultMetrics.WatcherReads.Observe(float64(reads))
	if timedOut {
		DefaultMetrics.WatcherTimeouts.WithLabelValues(kind).Inc()
	}
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordActivityDropped counts an activity record that failed to persist.
func RecordActivityDropped() {
	DefaultMetrics.ActivityDropped.Inc()
}
