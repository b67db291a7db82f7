package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahrav/pbcheck/infrastructure/middleware"
	"github.com/ahrav/pbcheck/internal/application"
	"github.com/ahrav/pbcheck/internal/config"
	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/report"
	"github.com/ahrav/pbcheck/internal/store"
)

type checkFlags struct {
	dir              string
	bucket           string
	prefix           string
	parallel         int
	exhaustiveSchema bool
	report           bool
	reportDir        string
	breakdown        bool
	metricsFile      string
	historyDB        string
}

func newCheckCmd(a *app) *cobra.Command {
	var f checkFlags

	cmd := &cobra.Command{
		Use:   "check [pattern]",
		Short: "Check .pb files and print a summary of the findings",
		Long: `Checks every file matching the glob pattern (default from the
configuration, "*.pb") in the configured directory or bucket. Each finding
is logged as it is made; the summary counting findings per kind is printed
to stdout once all files are checked.

Exit status is 2 when a file could not be checked at all (unreadable file,
duplicated voter id) and 1 on other errors.

Example:
  pbcheck check --dir output --breakdown 'poland_*.pb'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := f.apply(cmd, a.cfg)
			if len(args) == 1 {
				cfg.Pattern = args[0]
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return a.runCheck(cmd.Context(), cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.dir, "dir", "", "directory holding the .pb files")
	fl.StringVar(&f.bucket, "bucket", "", "Cloud Storage bucket to read files from instead of --dir")
	fl.StringVar(&f.prefix, "prefix", "", "object name prefix within --bucket")
	fl.IntVar(&f.parallel, "parallel", 1, "number of files checked at once")
	fl.BoolVar(&f.exhaustiveSchema, "exhaustive-schema", false, "validate every PROJECTS and VOTES row against the schema")
	fl.BoolVar(&f.report, "report", false, "append each file's findings to <file>_report.txt")
	fl.StringVar(&f.reportDir, "report-dir", "", "directory for report files")
	fl.BoolVar(&f.breakdown, "breakdown", false, "print per-file counts after the summary")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the batch")
	fl.StringVar(&f.historyDB, "history-db", "", "SQLite database to record the run in")
	return cmd
}

// apply overlays the flags the user set on cfg.
func (f checkFlags) apply(cmd *cobra.Command, cfg config.Config) config.Config {
	changed := cmd.Flags().Changed
	if changed("dir") {
		cfg.Dir = f.dir
	}
	if changed("bucket") {
		cfg.Bucket = f.bucket
	}
	if changed("prefix") {
		cfg.Prefix = f.prefix
	}
	if changed("parallel") {
		cfg.Parallelism = f.parallel
	}
	if changed("exhaustive-schema") {
		cfg.Checks.ExhaustiveSchema = f.exhaustiveSchema
	}
	if changed("report") {
		cfg.Report.Files = f.report
	}
	if changed("report-dir") {
		cfg.Report.Dir = f.reportDir
	}
	if changed("breakdown") {
		cfg.Report.Breakdown = f.breakdown
	}
	if changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if changed("history-db") {
		cfg.HistoryDB = f.historyDB
	}
	return cfg
}

func (a *app) runCheck(ctx context.Context, cfg config.Config) (err error) {
	metrics := middleware.NewPrometheusMetrics()
	plan, err := loadPlan(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []application.RunnerOption{
		application.WithLogger(a.logger),
		application.WithMetrics(metrics),
		application.WithParallelism(cfg.Parallelism),
	}
	if cfg.HistoryDB != "" {
		history, err := store.Open(ctx, cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := history.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		opts = append(opts, application.WithHistory(history))
	}

	runner, err := application.NewRunner(src, plan, opts...)
	if err != nil {
		return err
	}

	run, runErr := runner.Run(ctx, cfg.Pattern)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if len(run.Files) == 0 && runErr == nil {
		a.logger.Warn("no files matched", zap.String("source", run.Source), zap.String("pattern", cfg.Pattern))
	}

	if err := a.writeResults(cfg, run, metrics); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if fatal := run.Summary().Fatal; fatal > 0 {
		return fmt.Errorf("%w: %d of %d", errFatalFiles, fatal, len(run.Files))
	}
	return nil
}

// writeResults prints the summary and writes the optional outputs.
func (a *app) writeResults(cfg config.Config, run domain.Run, metrics *middleware.PrometheusMetrics) error {
	if _, err := report.FromRun(run).WriteTo(a.stdout); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if cfg.Report.Breakdown {
		if err := report.WriteBreakdown(a.stdout, run); err != nil {
			return fmt.Errorf("failed to write breakdown: %w", err)
		}
	}

	if cfg.Report.Files {
		dir := cfg.Report.Dir
		if dir == "" {
			dir = "."
		}
		for _, res := range run.Files {
			path, err := report.AppendFileReport(dir, res)
			if err != nil {
				return err
			}
			if len(res.Findings) > 0 {
				a.logger.Debug("report written", zap.String("file", res.File), zap.String("path", path))
			}
		}
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteToTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}
	return nil
}
