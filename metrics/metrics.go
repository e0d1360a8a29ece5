// Package metrics exposes Prometheus collectors for export activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mmexport"

// Metrics groups the export collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	exports        *prometheus.CounterVec
	delivered      *prometheus.CounterVec
	failures       *prometheus.CounterVec
	deliveredBytes *prometheus.CounterVec
	archives       prometheus.Counter
	encodeDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		exports: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Export runs by output format and export mode",
			},
			[]string{"format", "mode"},
		),
		delivered: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_delivered_total",
				Help:      "Files written to a delivery target",
			},
			[]string{"target"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_failures_total",
				Help:      "Files that could not be delivered after retries",
			},
			[]string{"target"},
		),
		deliveredBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delivered_bytes_total",
				Help:      "Bytes written to a delivery target",
			},
			[]string{"target"},
		),
		archives: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archives_released_total",
				Help:      "Zip archives finalized and delivered",
			},
		),
		encodeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "encode_duration_seconds",
				Help:      "Time spent flattening and rendering one output file",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"format"},
		),
	}
}

func (m *Metrics) ExportStarted(format, mode string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, mode).Inc()
}

func (m *Metrics) ItemDelivered(target string, size int) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(target).Inc()
	m.deliveredBytes.WithLabelValues(target).Add(float64(size))
}

func (m *Metrics) ItemFailed(target string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(target).Inc()
}

func (m *Metrics) ArchiveReleased() {
	if m == nil {
		return
	}
	m.archives.Inc()
}

func (m *Metrics) ObserveEncode(format string, d time.Duration) {
	if m == nil {
		return
	}
	m.encodeDuration.WithLabelValues(format).Observe(d.Seconds())
}

// WriteTextfile dumps everything g gathers in the text exposition format,
// for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
