package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsTotal   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	activeSignals prometheus.Gauge
	confidence    *prometheus.HistogramVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		eventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionpulse_signal_events_total",
				Help: "Total number of signal lifecycle events by type",
			},
			[]string{"type", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		activeSignals: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "optionpulse_active_signals",
				Help: "Number of currently active tracked signals",
			},
		),
		confidence: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optionpulse_decision_confidence",
				Help:    "Confidence of non-neutral aggregated decisions",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optionpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEvent records one lifecycle event.
func (r *Recorder) RecordEvent(kind, symbol string) {
	r.eventsTotal.WithLabelValues(kind, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordActiveSignals records the size of the active set.
func (r *Recorder) RecordActiveSignals(n int) {
	r.activeSignals.Set(float64(n))
}

// RecordConfidence records the confidence of a directional decision.
func (r *Recorder) RecordConfidence(symbol string, confidence float64) {
	r.confidence.WithLabelValues(symbol).Observe(confidence)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
