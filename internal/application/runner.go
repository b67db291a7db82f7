package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/pbformat"
	"github.com/ahrav/pbcheck/internal/ports"
)

// Runner checks every file a Source lists against a compiled check plan.
type Runner struct {
	source      ports.Source
	plan        ports.Executable
	logger      *zap.Logger
	metrics     ports.MetricsCollector
	history     ports.HistoryStore
	parallelism int
	now         func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger findings are reported to.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics records file, finding and batch metrics to m.
func WithMetrics(m ports.MetricsCollector) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithHistory saves every finished run to store.
func WithHistory(store ports.HistoryStore) RunnerOption {
	return func(r *Runner) { r.history = store }
}

// WithParallelism checks up to n files at once. Values below 1 mean 1.
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) { r.parallelism = max(n, 1) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner over source executing plan for each file.
func NewRunner(source ports.Source, plan ports.Executable, opts ...RunnerOption) (*Runner, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: source is required", domain.ErrInvalidConfiguration)
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: check plan is required", domain.ErrInvalidConfiguration)
	}
	r := &Runner{
		source:      source,
		plan:        plan,
		logger:      zap.NewNop(),
		parallelism: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run checks every file matching pattern. Files are checked in the order
// the source lists them and results keep that order regardless of
// parallelism. On cancellation Run returns the files finished so far
// together with the context error; the partial run is not saved.
func (r *Runner) Run(ctx context.Context, pattern string) (domain.Run, error) {
	run := domain.Run{
		ID:        uuid.NewString(),
		Source:    r.source.String(),
		Pattern:   pattern,
		StartedAt: r.now(),
	}

	names, err := r.source.List(ctx, pattern)
	if err != nil {
		return run, fmt.Errorf("failed to list files: %w", err)
	}
	r.logger.Info("batch started",
		zap.String("run_id", run.ID),
		zap.String("source", run.Source),
		zap.String("pattern", pattern),
		zap.Int("files", len(names)),
	)

	results := make([]domain.FileResult, len(names))
	done := make([]bool, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, name := range names {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.CheckFile(gctx, name)
			if err != nil {
				return err
			}
			results[i] = res
			done[i] = true
			return nil
		})
	}
	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	for i, ok := range done {
		if ok {
			run.Files = append(run.Files, results[i])
		}
	}
	run.FinishedAt = r.now()

	summary := run.Summary()
	if r.metrics != nil {
		r.metrics.RecordGauge(ports.MetricBatchDefects, float64(summary.Defects), nil)
	}
	if waitErr != nil {
		r.logger.Warn("batch interrupted", zap.String("run_id", run.ID), zap.Int("checked", len(run.Files)), zap.Error(waitErr))
		return run, waitErr
	}

	r.logger.Info("batch finished",
		zap.String("run_id", run.ID),
		zap.Int("files", summary.Files),
		zap.Int("defects", summary.Defects),
		zap.Int("fatal", summary.Fatal),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)

	if r.history != nil {
		if err := r.history.SaveRun(ctx, run); err != nil {
			return run, fmt.Errorf("failed to save run: %w", err)
		}
	}
	return run, nil
}

// CheckFile reads and checks one file. Problems with the file are
// findings of the result; the error is non-nil only when ctx ends.
func (r *Runner) CheckFile(ctx context.Context, name string) (domain.FileResult, error) {
	start := r.now()
	res := domain.FileResult{File: name}

	election, err := r.read(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return res, err
	case errors.Is(err, domain.ErrDuplicatedVoterID):
		res.Findings = []domain.Finding{{Kind: domain.KindDuplicatedVoterID, Detail: err.Error(), File: name}}
	default:
		res.Findings = []domain.Finding{{Kind: domain.KindUnreadableFile, Detail: err.Error(), File: name}}
	}

	if election != nil {
		res.Webpage = election.Meta.WebpageName()
		r.logger.Info("checking file", zap.String("file", name), zap.String("webpage", res.Webpage))

		out, err := r.plan.Execute(ctx, domain.NewFileState(name, election))
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			out = out.AddFindings(domain.Finding{
				Kind:   domain.KindCheckError,
				Detail: fmt.Sprintf("Check plan failed: %v", err),
				File:   name,
			})
		}
		res.Findings = out.Findings()
	}

	res.Duration = r.now().Sub(start)
	r.report(res)
	return res, nil
}

func (r *Runner) read(ctx context.Context, name string) (*domain.Election, error) {
	rc, err := r.source.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return pbformat.Read(rc)
}

// report logs every finding of res and records its metrics.
func (r *Runner) report(res domain.FileResult) {
	for _, f := range res.Findings {
		fields := []zap.Field{zap.String("file", res.File), zap.String("kind", string(f.Kind)), zap.String("detail", f.Detail)}
		switch f.Severity() {
		case domain.SeverityFatal:
			r.logger.Error("file rejected", fields...)
		case domain.SeverityInfo:
			r.logger.Info("note", fields...)
		default:
			r.logger.Warn("inconsistency", fields...)
		}
		if r.metrics != nil {
			r.metrics.RecordCounter(ports.MetricFindings, 1, map[string]string{"kind": string(f.Kind)})
		}
	}

	if r.metrics != nil {
		r.metrics.RecordCounter(ports.MetricFilesChecked, 1, map[string]string{"status": res.Status()})
		r.metrics.RecordLatency(ports.OpFile, res.Duration, nil)
	}
}
