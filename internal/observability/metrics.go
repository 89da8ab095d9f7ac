// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. One instance
// is created at startup and handed to every component that reports.
type Metrics struct {
	// Discovery metrics
	CandidatesSeen   *prometheus.CounterVec
	TokensAdmitted   *prometheus.CounterVec
	StreamMessages   prometheus.Counter
	StreamReconnects prometheus.Counter

	// Intake metrics
	IntakeCycleDuration prometheus.Histogram
	IntakeBatchSize     prometheus.Gauge
	IntakeOutcomes      *prometheus.CounterVec

	// Re-analysis metrics
	ReanalysisOutcomes *prometheus.CounterVec

	// Provider metrics
	ProviderCalls       *prometheus.CounterVec
	ProviderCallLatency *prometheus.HistogramVec
	CircuitOpen         *prometheus.GaugeVec
	LiteMode            prometheus.Gauge

	// Dispatch metrics
	DispatchOutcomes *prometheus.CounterVec

	// Queue metrics
	TokensByStatus *prometheus.GaugeVec
	TokensByBucket *prometheus.GaugeVec

	// Health metrics
	LastSuccessfulIntake prometheus.Gauge
	UptimeSeconds        prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_token_scout"
	}

	return &Metrics{
		// Discovery metrics
		CandidatesSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_seen_total",
			Help:      "Total number of candidates seen by source",
		}, []string{"source"}),
		TokensAdmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "tokens_admitted_total",
			Help:      "Total number of tokens admitted to storage by source",
		}, []string{"source"}),
		StreamMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "stream_messages_total",
			Help:      "Total number of log-stream notifications received",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "stream_reconnects_total",
			Help:      "Total number of log-stream reconnects",
		}),

		// Intake metrics
		IntakeCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "cycle_duration_seconds",
			Help:      "Intake cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 25, 40, 60, 120},
		}),
		IntakeBatchSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "batch_size",
			Help:      "Current adaptive intake batch size",
		}),
		IntakeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "outcomes_total",
			Help:      "Total intake outcomes by result",
		}, []string{"outcome"}),

		// Re-analysis metrics
		ReanalysisOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reanalysis",
			Name:      "outcomes_total",
			Help:      "Total re-analysis outcomes by result",
		}, []string{"outcome"}),

		// Provider metrics
		ProviderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total provider calls by provider and result",
		}, []string{"provider", "result"}),
		ProviderCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		CircuitOpen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "circuit_open",
			Help:      "Whether the provider's circuit is open (1) or closed (0)",
		}, []string{"provider"}),
		LiteMode: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "lite_mode",
			Help:      "Whether degraded output mode is active (1) or not (0)",
		}),

		// Dispatch metrics
		DispatchOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Total dispatch outcomes by segment and result",
		}, []string{"segment", "outcome"}),

		// Queue metrics
		TokensByStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tokens_by_status",
			Help:      "Number of tokens per status",
		}, []string{"status"}),
		TokensByBucket: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tokens_by_bucket",
			Help:      "Number of analyzed tokens per bucket",
		}, []string{"bucket"}),

		// Health metrics
		LastSuccessfulIntake: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_intake_timestamp",
			Help:      "Unix timestamp of last successful intake cycle",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCandidate increments the candidates-seen counter for a source.
func (m *Metrics) RecordCandidate(source string) {
	m.CandidatesSeen.WithLabelValues(source).Inc()
}

// RecordAdmitted increments the admitted counter for a source.
func (m *Metrics) RecordAdmitted(source string) {
	m.TokensAdmitted.WithLabelValues(source).Inc()
}

// RecordIntakeCycle records one intake cycle.
func (m *Metrics) RecordIntakeCycle(batch int, d time.Duration) {
	m.IntakeCycleDuration.Observe(d.Seconds())
	m.IntakeBatchSize.Set(float64(batch))
	m.LastSuccessfulIntake.Set(float64(time.Now().Unix()))
}

// RecordIntakeOutcome records one intake outcome.
func (m *Metrics) RecordIntakeOutcome(outcome string) {
	m.IntakeOutcomes.WithLabelValues(outcome).Inc()
}

// RecordReanalysis records one re-analysis outcome.
func (m *Metrics) RecordReanalysis(outcome string) {
	m.ReanalysisOutcomes.WithLabelValues(outcome).Inc()
}

// RecordDispatch records one dispatch outcome.
func (m *Metrics) RecordDispatch(segment, outcome string) {
	m.DispatchOutcomes.WithLabelValues(segment, outcome).Inc()
}

// RecordProviderCall records a provider call outcome and latency.
func (m *Metrics) RecordProviderCall(provider, result string, seconds float64) {
	m.ProviderCalls.WithLabelValues(provider, result).Inc()
	m.ProviderCallLatency.WithLabelValues(provider).Observe(seconds)
}

// SetCircuitOpen updates the circuit state gauge for a provider.
func (m *Metrics) SetCircuitOpen(provider string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitOpen.WithLabelValues(provider).Set(v)
}

// SetLiteMode updates the lite-mode gauge.
func (m *Metrics) SetLiteMode(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	m.LiteMode.Set(v)
}

// SetQueueDepths updates the per-status and per-bucket gauges.
func (m *Metrics) SetQueueDepths(byStatus map[string]int64, byBucket map[string]int64) {
	for status, n := range byStatus {
		m.TokensByStatus.WithLabelValues(status).Set(float64(n))
	}
	for bucket, n := range byBucket {
		m.TokensByBucket.WithLabelValues(bucket).Set(float64(n))
	}
}
