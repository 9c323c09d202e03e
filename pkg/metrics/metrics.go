// Package metrics holds the Prometheus collectors for exchanges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shmx"

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the exchange collectors.
type Metrics struct {
	Exchanges     *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	PayloadBytes  *prometheus.HistogramVec
	CleanupErrors *prometheus.CounterVec
	SegmentSize   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exchanges_total",
				Help:      "Completed runs by role and result.",
			},
			[]string{"role", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "exchange_duration_seconds",
				Help:      "Wall time of one run, connect to cleanup.",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"role"},
		),
		PayloadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "payload_bytes",
				Help:      "Payload sizes moved through the segment.",
				Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
			},
			[]string{"role", "direction"},
		),
		CleanupErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_errors_total",
				Help:      "Runs whose cleanup reported an error.",
			},
			[]string{"role"},
		),
		SegmentSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "segment_mapped_bytes",
				Help:      "Mapped segment size after the last segment operation.",
			},
			[]string{"role"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Exchanges, m.Duration, m.PayloadBytes, m.CleanupErrors, m.SegmentSize)
	}
	return m
}
