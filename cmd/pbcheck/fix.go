package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahrav/pbcheck/internal/application"
	"github.com/ahrav/pbcheck/internal/config"
	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/pbformat"
	"github.com/ahrav/pbcheck/internal/ports"
)

func newFixCmd(a *app) *cobra.Command {
	var (
		dir    string
		out    string
		dryRun bool
		skip   []string
	)

	cmd := &cobra.Command{
		Use:   "fix [pattern]",
		Short: "Write repaired copies of .pb files",
		Long: `Rewrites derived values of each matching file and writes the files that
changed to --out:

  tally   project votes and score recomputed from VOTES
  counts  num_projects and num_votes set from the rows
  commas  decimal commas in budget, max_sum_cost and cost replaced by dots
  sort    projects ordered by descending score, or votes

Source files are never modified. Use --skip to leave a repair out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("dir") {
				cfg.Dir = dir
			}
			if len(args) == 1 {
				cfg.Pattern = args[0]
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts, err := fixOptions(skip)
			if err != nil {
				return err
			}
			if out == "" && !dryRun {
				return fmt.Errorf("--out is required unless --dry-run is set")
			}
			return a.runFix(cmd.Context(), cfg, opts, out, dryRun)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&dir, "dir", "", "directory holding the .pb files")
	fl.StringVar(&out, "out", "", "directory the fixed files are written to")
	fl.BoolVar(&dryRun, "dry-run", false, "log the changes without writing files")
	fl.StringSliceVar(&skip, "skip", nil, "repairs to leave out: tally, counts, commas, sort")
	return cmd
}

func fixOptions(skip []string) (application.FixOptions, error) {
	opts := application.AllFixes()
	for _, s := range skip {
		switch s {
		case "tally":
			opts.Tally = false
		case "counts":
			opts.Counts = false
		case "commas":
			opts.Commas = false
		case "sort":
			opts.Sort = false
		default:
			return opts, fmt.Errorf("unknown repair %q", s)
		}
	}
	return opts, nil
}

func (a *app) runFix(ctx context.Context, cfg config.Config, opts application.FixOptions, out string, dryRun bool) error {
	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	names, err := src.List(ctx, cfg.Pattern)
	if err != nil {
		return err
	}

	fixed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := readElection(ctx, src, name)
		if err != nil {
			a.logger.Error("file skipped", zap.String("file", name), zap.Error(err))
			continue
		}

		repaired, changes := application.Fix(e, opts)
		if len(changes) == 0 {
			continue
		}
		fixed++
		for _, c := range changes {
			a.logger.Info("fix", zap.String("file", name), zap.String("change", c))
		}
		if dryRun {
			continue
		}
		if err := pbformat.WriteFile(filepath.Join(out, filepath.FromSlash(name)), repaired); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	fmt.Fprintf(a.stdout, "%d of %d files changed\n", fixed, len(names))
	return nil
}

func readElection(ctx context.Context, src ports.Source, name string) (*domain.Election, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return pbformat.Read(rc)
}
