package ports

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrObjectNotFound: the file was listed but is gone, or never existed.
	ErrObjectNotFound = errors.New("object not found")

	// ErrConfigNotFound is returned only for a config file named
	// explicitly; the default location may be absent.
	ErrConfigNotFound = errors.New("configuration not found")

	ErrStoreClosed = errors.New("store closed")
)

// SourceError is a failed List or Open against a Source.
type SourceError struct {
	Source    string // e.g. gs://bucket/prefix or a directory
	Name      string // empty for List
	Operation string
	Err       error
}

func (e *SourceError) Error() string {
	target := e.Source
	if e.Name != "" {
		target = strings.TrimSuffix(e.Source, "/") + "/" + e.Name
	}
	return fmt.Sprintf("%s %s: %v", e.Operation, target, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func NewSourceError(source, name, operation string, err error) *SourceError {
	return &SourceError{Source: source, Name: name, Operation: operation, Err: err}
}

// StoreError is a failed HistoryStore call.
type StoreError struct {
	Operation string
	Err       error
}

func (e *StoreError) Error() string { return fmt.Sprintf("history %s: %v", e.Operation, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func NewStoreError(operation string, err error) *StoreError {
	return &StoreError{Operation: operation, Err: err}
}

// MetricsError is a failed export of collected metrics.
type MetricsError struct {
	Metric    string
	Operation string
	Err       error
}

func (e *MetricsError) Error() string {
	return fmt.Sprintf("metrics %s %s: %v", e.Operation, e.Metric, e.Err)
}

func (e *MetricsError) Unwrap() error { return e.Err }

func NewMetricsError(metric, operation string, err error) *MetricsError {
	return &MetricsError{Metric: metric, Operation: operation, Err: err}
}

// ConfigError ties a configuration failure to the file it came from.
type ConfigError struct {
	File string
	Err  error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config %s: %v", e.File, e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

func NewConfigError(file string, err error) *ConfigError {
	return &ConfigError{File: file, Err: err}
}
