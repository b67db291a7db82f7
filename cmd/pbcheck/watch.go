package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahrav/pbcheck/infrastructure/middleware"
	"github.com/ahrav/pbcheck/internal/application"
	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/report"
	"github.com/ahrav/pbcheck/internal/source"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		dir      string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [pattern]",
		Short: "Check .pb files of a directory whenever they change",
		Long: `Watches the configured directory and checks each matching file once it
has been written and left unchanged for --debounce. Each check prints the
file's breakdown to stdout. Stops on interrupt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("dir") {
				cfg.Dir = dir
			}
			if len(args) == 1 {
				cfg.Pattern = args[0]
			}
			cfg.Bucket = ""
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			metrics := middleware.NewPrometheusMetrics()
			plan, err := loadPlan(ctx, cfg, metrics)
			if err != nil {
				return err
			}
			src, err := source.NewLocal(cfg.Dir)
			if err != nil {
				return err
			}
			runner, err := application.NewRunner(src, plan,
				application.WithLogger(a.logger), application.WithMetrics(metrics))
			if err != nil {
				return err
			}

			w, err := source.NewWatcher(cfg.Dir, cfg.Pattern, debounce, a.logger)
			if err != nil {
				return err
			}
			defer w.Close()

			a.logger.Info("watching", zap.String("dir", cfg.Dir), zap.String("pattern", cfg.Pattern))
			return w.Run(ctx, func(ctx context.Context, name string) {
				res, err := runner.CheckFile(ctx, name)
				if err != nil {
					return
				}
				a.printResult(res)
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&dir, "dir", "", "directory to watch")
	fl.DurationVar(&debounce, "debounce", source.DefaultDebounce, "how long a file must be unchanged before it is checked")
	return cmd
}

func (a *app) printResult(res domain.FileResult) {
	if len(res.Findings) == 0 {
		fmt.Fprintf(a.stdout, "%s: clean\n", res.File)
		return
	}
	if err := report.WriteBreakdown(a.stdout, domain.Run{Files: []domain.FileResult{res}}); err != nil {
		a.logger.Warn("failed to print result", zap.String("file", res.File), zap.Error(err))
	}
}
