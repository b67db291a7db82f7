// Package middleware provides cross-cutting concerns for the checker:
// Prometheus metrics, check instrumentation and tracing.
package middleware

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/pbcheck/internal/ports"
)

const namespace = "pbcheck"

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. Metrics live on a private registry so a batch can be written
// out for the node-exporter textfile collector and tests can create as many
// instances as they like.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	filesChecked  *prometheus.CounterVec
	findings      *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	fileDuration  prometheus.Histogram
	batchDefects  prometheus.Gauge
	events        *prometheus.CounterVec
	gauges        *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics with all metrics
// registered on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		filesChecked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_checked_total",
				Help:      "Files checked, by outcome (clean, defects, fatal).",
			},
			[]string{"status"},
		),
		findings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "findings_total",
				Help:      "Findings reported, by kind.",
			},
			[]string{"kind"},
		),
		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "check_duration_seconds",
				Help:      "Execution time of a single check on one file.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"check"},
		),
		fileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "file_duration_seconds",
				Help:      "Time to read and check one file.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		batchDefects: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batch_defects",
				Help:      "Defect findings of the most recent batch.",
			},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Counters without a dedicated metric, by name.",
			},
			[]string{"metric", "check"},
		),
		gauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "Gauges without a dedicated metric, by name.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface. Check latencies
// are labeled with the "check" label; anything else is a file latency.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	switch operation {
	case ports.OpCheck:
		pm.checkDuration.WithLabelValues(labelOr(labels, "check")).Observe(duration.Seconds())
	default:
		pm.fileDuration.Observe(duration.Seconds())
	}
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricFilesChecked:
		pm.filesChecked.WithLabelValues(labelOr(labels, "status")).Add(value)
	case ports.MetricFindings:
		pm.findings.WithLabelValues(labelOr(labels, "kind")).Add(value)
	default:
		pm.events.WithLabelValues(metric, labels["check"]).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	switch metric {
	case ports.MetricBatchDefects:
		pm.batchDefects.Set(value)
	default:
		pm.gauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface. Values are
// taken as seconds and routed like latencies.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	pm.RecordLatency(metric, time.Duration(value*float64(time.Second)), labels)
}

// Registry returns the registry the metrics are registered on.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// WriteToTextfile writes the current metric values to path in the text
// exposition format, atomically.
func (pm *PrometheusMetrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, pm.registry); err != nil {
		return ports.NewMetricsError(namespace, "WriteToTextfile", fmt.Errorf("write %s: %w", path, err))
	}
	return nil
}

func labelOr(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return "unknown"
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
