package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the contract observer
type PrometheusMetrics struct {
	// Event ingestion metrics
	EventsIngestedTotal    *prometheus.CounterVec
	EventsDroppedTotal     *prometheus.CounterVec
	EventHandlingDuration  *prometheus.HistogramVec
	LastConfirmedBlock     *prometheus.GaugeVec

	// Alert metrics
	AlertsFiredTotal        *prometheus.CounterVec
	AlertPersistFailures    prometheus.Counter
	NotificationFailures    prometheus.Counter

	// Sampler metrics
	SamplesTotal         *prometheus.CounterVec
	SampleDuration       *prometheus.HistogramVec
	HeavySamplesTotal    *prometheus.CounterVec

	// Connection metrics
	RPCErrorsTotal *prometheus.CounterVec

	// Monitoring metrics
	ContractsMonitored prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		EventsIngestedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observer_events_ingested_total",
				Help: "Total number of contract events ingested",
			},
			[]string{"chain_id", "event_type"},
		),

		EventsDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observer_events_dropped_total",
				Help: "Total number of events dropped before persistence",
			},
			[]string{"chain_id", "reason"},
		),

		EventHandlingDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "observer_event_handling_duration_seconds",
				Help:    "Time spent handling one delivered log",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"chain_id"},
		),

		LastConfirmedBlock: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "observer_last_confirmed_block",
				Help: "Highest block number whose events were fully processed per contract",
			},
			[]string{"contract", "chain_id"},
		),

		AlertsFiredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observer_alerts_fired_total",
				Help: "Total number of alert rule firings",
			},
			[]string{"rule", "severity"},
		),

		AlertPersistFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "observer_alert_persist_failures_total",
				Help: "Total number of alerts that could not be persisted",
			},
		),

		NotificationFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "observer_notification_failures_total",
				Help: "Total number of alert notifications that failed to dispatch",
			},
		),

		SamplesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observer_state_samples_total",
				Help: "Total number of state sampling ticks",
			},
			[]string{"chain_id", "status"},
		),

		SampleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "observer_state_sample_duration_seconds",
				Help:    "Time spent in one state sampling tick",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"chain_id"},
		),

		HeavySamplesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observer_heavy_samples_total",
				Help: "Total number of NFT owner-sampling passes",
			},
			[]string{"chain_id"},
		),

		RPCErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observer_rpc_errors_total",
				Help: "Total number of RPC errors by chain and operation",
			},
			[]string{"chain_id", "operation"},
		),

		ContractsMonitored: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "observer_contracts_monitored",
				Help: "Number of actively monitored contracts",
			},
		),
	}
}

// RecordEventIngested increments the ingested counter
func (pm *PrometheusMetrics) RecordEventIngested(chainID, eventType string) {
	pm.EventsIngestedTotal.WithLabelValues(chainID, eventType).Inc()
}

// RecordEventDropped increments the dropped counter
func (pm *PrometheusMetrics) RecordEventDropped(chainID, reason string) {
	pm.EventsDroppedTotal.WithLabelValues(chainID, reason).Inc()
}

// RecordEventHandling observes the duration of one log handling pass
func (pm *PrometheusMetrics) RecordEventHandling(chainID string, d time.Duration) {
	pm.EventHandlingDuration.WithLabelValues(chainID).Observe(d.Seconds())
}

// RecordAlertFired increments the alert counter
func (pm *PrometheusMetrics) RecordAlertFired(rule, severity string) {
	pm.AlertsFiredTotal.WithLabelValues(rule, severity).Inc()
}

// RecordSample increments the sampler tick counter
func (pm *PrometheusMetrics) RecordSample(chainID, status string, d time.Duration) {
	pm.SamplesTotal.WithLabelValues(chainID, status).Inc()
	pm.SampleDuration.WithLabelValues(chainID).Observe(d.Seconds())
}

// RecordRPCError increments the RPC error counter
func (pm *PrometheusMetrics) RecordRPCError(chainID, operation string) {
	pm.RPCErrorsTotal.WithLabelValues(chainID, operation).Inc()
}
