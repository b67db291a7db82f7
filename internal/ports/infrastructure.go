package ports

import (
	"context"
	"io"
	"time"

	"github.com/ahrav/pbcheck/internal/domain"
)

// MetricsCollector records operational metrics of a batch.
// Implementations route metric names to their backend's instruments.
type MetricsCollector interface {
	// RecordLatency records how long an operation took.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter adds value to a counter.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets a gauge to value.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram observes value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Source lists and opens .pb files, locally or in object storage.
type Source interface {
	// List returns the names matching the glob pattern in natural order
	// (file_9 before file_10).
	List(ctx context.Context, pattern string) ([]string, error)

	// Open returns the contents of a listed name. The caller closes it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// String describes the source for logs and history, e.g. a directory
	// or gs://bucket/prefix.
	String() string
}

// HistoryStore persists batch runs.
type HistoryStore interface {
	// SaveRun stores a finished run with its per-file results.
	SaveRun(ctx context.Context, run domain.Run) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// Close releases the store.
	Close() error
}

// Metric names recorded through MetricsCollector.
const (
	// MetricFilesChecked counts checked files, labeled with "status".
	MetricFilesChecked = "files_checked_total"
	// MetricFindings counts findings, labeled with "kind".
	MetricFindings = "findings_total"
	// MetricBatchDefects is the number of defects of the last batch.
	MetricBatchDefects = "batch_defects"
	// OpCheck is the latency operation of one check, labeled with "check".
	OpCheck = "check"
	// OpFile is the latency operation of reading and checking one file.
	OpFile = "file"
)
