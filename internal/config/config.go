// Package config loads pbcheck.yaml: where the .pb files are, how they are
// checked and where reports, metrics and history go.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/pbcheck/internal/ports"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "pbcheck.yaml"

// Config holds all pbcheck configuration.
type Config struct {
	// Dir is the local directory holding .pb files. Ignored when Bucket is
	// set.
	Dir string `yaml:"dir" validate:"required_without=Bucket"`

	// Pattern selects files by glob.
	Pattern string `yaml:"pattern" validate:"required"`

	// Bucket and Prefix select a Cloud Storage source instead of Dir.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// Parallelism is how many files are checked at once.
	Parallelism int `yaml:"parallelism" validate:"min=1,max=64"`

	// PlanFile and SchemaFile replace the embedded check plan and field
	// schema.
	PlanFile   string `yaml:"plan_file" validate:"omitempty,file"`
	SchemaFile string `yaml:"schema_file" validate:"omitempty,file"`

	Checks  ChecksConfig  `yaml:"checks"`
	Report  ReportConfig  `yaml:"report"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`

	// MetricsFile receives Prometheus metrics in text format after a
	// batch, for the node-exporter textfile collector.
	MetricsFile string `yaml:"metrics_file"`

	// HistoryDB is the SQLite database runs are recorded in. Empty
	// disables history.
	HistoryDB string `yaml:"history_db"`
}

// ChecksConfig tunes the built-in checks.
type ChecksConfig struct {
	// ExhaustiveSchema validates every PROJECTS and VOTES row instead of
	// the first one.
	ExhaustiveSchema bool `yaml:"exhaustive_schema"`

	// PartialThresholdUnits lists the units that select with the partial
	// threshold rule.
	PartialThresholdUnits []string `yaml:"partial_threshold_units" validate:"dive,required"`

	// ThresholdFraction is the share of a project's cost the remaining
	// budget must cover under the partial threshold rule.
	ThresholdFraction float64 `yaml:"threshold_fraction" validate:"gt=0,lte=1"`

	// UnusedBudget enables the unused_budget finding.
	UnusedBudget bool `yaml:"unused_budget"`
}

// ReportConfig configures what is written besides the running log.
type ReportConfig struct {
	// Files appends each file's findings to <name>_report.txt.
	Files bool `yaml:"files"`

	// Dir is where report files go. Defaults to the working directory.
	Dir string `yaml:"dir"`

	// Breakdown prints per-file counts after the summary.
	Breakdown bool `yaml:"breakdown"`
}

// StorageConfig tunes the Cloud Storage source.
type StorageConfig struct {
	// Endpoint overrides the storage API endpoint, for emulators.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// RequestsPerSecond limits API calls. Zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	// Burst is the token bucket size of the limiter.
	Burst int `yaml:"burst" validate:"min=1"`

	// Anonymous skips credentials, for public buckets.
	Anonymous bool `yaml:"anonymous"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Dir:         ".",
		Pattern:     "*.pb",
		Parallelism: 1,
		Checks: ChecksConfig{
			PartialThresholdUnits: []string{"Poznań"},
			ThresholdFraction:     0.8,
			UnusedBudget:          true,
		},
		Storage: StorageConfig{
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var validate = validator.New()

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. With an empty path DefaultFile is
// used when it exists; a named file that does not exist is an error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !explicit:
		cfg := Default()
		cfg.applyEnvOverrides()
		return cfg, cfg.Validate()
	case errors.Is(err, os.ErrNotExist):
		return Config{}, ports.NewConfigError(path, ports.ErrConfigNotFound)
	default:
		return Config{}, ports.NewConfigError(path, fmt.Errorf("failed to read config: %w", err))
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, ports.NewConfigError(path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults. Unknown keys are errors.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment override the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PBCHECK_DIR"); v != "" {
		c.Dir = v
	}
	if v := os.Getenv("PBCHECK_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("PBCHECK_PREFIX"); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv("PBCHECK_STORAGE_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("PBCHECK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Encode writes the configuration as YAML.
func (c Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
