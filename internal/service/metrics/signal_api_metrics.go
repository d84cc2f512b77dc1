package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	SignalAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "optionpulse",
			Subsystem: "signal_api",
			Name:      "latency_seconds",
			Help:      "Latency of signal query endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	SignalAPIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionpulse",
			Subsystem: "signal_api",
			Name:      "errors_total",
			Help:      "Errors by signal query endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(SignalAPILatency, SignalAPIErrors)
	})
}
