package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/recpurge/internal/config"
	"github.com/roach88/recpurge/internal/deleter"
	"github.com/roach88/recpurge/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Limit   int
	Record  string // optional - one record's outcomes across runs
}

// RunDetail is one run with its per-record outcomes.
type RunDetail struct {
	Run      store.RunSummary  `json:"run"`
	Outcomes []deleter.Outcome `json:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show journaled runs",
		Long: `List the runs recorded in the journal, newest first. With a run id,
print that run's outcome for every enumerated record. With --record,
print one record's outcomes across all runs.

Examples:
  recpurge history
  recpurge history --limit 5 --format json
  recpurge history 0190f3a4-...
  recpurge history --record 4121`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(opts, cmd, runID)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (defaults to config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.Record, "record", "", "show one record id across runs")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command, runID string) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "invalid configuration", err)
	}
	path := cfg.Journal
	if cmd.Flags().Changed("journal") {
		path = opts.Journal
	}
	if path == "" {
		return commandError(formatter, ErrCodeJournal, "no journal configured", nil)
	}

	formatter.VerboseLog("Reading journal %s", path)
	st, err := store.Open(path)
	if err != nil {
		return commandError(formatter, ErrCodeJournal, "failed to open journal", err)
	}
	defer st.Close()

	switch {
	case opts.Record != "":
		events, err := st.RecordHistory(ctx, opts.Record)
		if err != nil {
			return commandError(formatter, ErrCodeJournal, "failed to read record history", err)
		}
		if opts.Format == "json" {
			return formatter.Success(events)
		}
		if len(events) == 0 {
			fmt.Fprintf(formatter.Writer, "No outcomes recorded for ID %s.\n", opts.Record)
			return nil
		}
		for _, ev := range events {
			fmt.Fprintf(formatter.Writer, "%s  %s  %-8s %s\n",
				ev.StartedAt.Format(time.RFC3339), ev.RunID, ev.Outcome.Status, ev.Outcome.Error)
		}
		return nil

	case runID != "":
		run, err := st.ReadRun(ctx, runID)
		if errors.Is(err, store.ErrRunNotFound) {
			return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("run %s not found", runID), nil)
		}
		if err != nil {
			return commandError(formatter, ErrCodeJournal, "failed to read run", err)
		}
		outcomes, err := st.ReadOutcomes(ctx, runID)
		if err != nil {
			return commandError(formatter, ErrCodeJournal, "failed to read outcomes", err)
		}
		if opts.Format == "json" {
			return formatter.Success(RunDetail{Run: run, Outcomes: outcomes})
		}
		writeRunDetail(formatter, run, outcomes)
		return nil

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return commandError(formatter, ErrCodeJournal, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(formatter.Writer, "No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(formatter.Writer, "%s  %s  %-9s enumerated=%d deleted=%d missing=%d failed=%d skipped=%d\n",
				r.StartedAt.Format(time.RFC3339), r.ID, r.Status,
				r.Counts.Enumerated, r.Counts.Deleted, r.Counts.Missing, r.Counts.Failed, r.Counts.Skipped)
		}
		return nil
	}
}

func writeRunDetail(f *OutputFormatter, run store.RunSummary, outcomes []deleter.Outcome) {
	w := f.Writer
	fmt.Fprintf(w, "run %s\n", run.ID)
	fmt.Fprintf(w, "status: %s\n", run.Status)
	fmt.Fprintf(w, "record type: %s\n", run.RecordType)
	fmt.Fprintf(w, "query: %s\n", run.Query)
	fmt.Fprintf(w, "started: %s\n", run.StartedAt.Format(time.RFC3339))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "finished: %s\n", run.FinishedAt.Format(time.RFC3339))
	}
	if run.Error != "" {
		fmt.Fprintf(w, "error: %s\n", run.Error)
	}
	fmt.Fprintln(w)
	for _, o := range outcomes {
		if o.Error != "" {
			fmt.Fprintf(w, "%-8s %s: %s\n", o.Status, o.ID, o.Error)
			continue
		}
		fmt.Fprintf(w, "%-8s %s\n", o.Status, o.ID)
	}
}
