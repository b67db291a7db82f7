package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ahrav/pbcheck/internal/report"
	"github.com/ahrav/pbcheck/internal/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		db    string
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded check runs",
		Long: `Lists the most recent runs recorded with --history-db, newest first.
With --run, prints the summary and per-file breakdown of one run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if !cmd.Flags().Changed("history-db") {
				db = a.cfg.HistoryDB
			}
			if db == "" {
				return fmt.Errorf("no history database: set --history-db or history_db")
			}
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}

			ctx := cmd.Context()
			h, err := store.Open(ctx, db)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := h.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			if runID != "" {
				run, err := h.LoadRun(ctx, runID)
				if err != nil {
					return err
				}
				if _, err := report.FromRun(run).WriteTo(a.stdout); err != nil {
					return err
				}
				return report.WriteBreakdown(a.stdout, run)
			}

			runs, err := h.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tTOOK\tSOURCE\tPATTERN\tFILES\tDEFECTS\tFATAL")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
					r.ID,
					humanize.Time(r.StartedAt),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
					r.Source,
					r.Pattern,
					r.Files,
					humanize.Comma(int64(r.Defects)),
					r.Fatal,
				)
			}
			return tw.Flush()
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&db, "history-db", "", "SQLite database runs are recorded in")
	fl.IntVar(&limit, "limit", 10, "number of runs to list")
	fl.StringVar(&runID, "run", "", "show the findings of this run")
	return cmd
}
