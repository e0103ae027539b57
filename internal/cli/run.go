package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/recpurge/internal/deleter"
)

// RunOptions holds flags for the run and plan commands.
type RunOptions struct {
	*RootOptions
	TargetOptions

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to deleter.UUIDv7Generator.
	RunIDs deleter.RunIDGenerator

	// Now allows overriding the clock (for testing).
	Now func() time.Time
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return newPlanCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Delete every record the query enumerates",
		Long: `Run the enumeration query once, then delete every returned id with
bounded concurrency. Each confirmed deletion prints "Deleted ID <id>";
a summary follows once every request has finished.

Exit codes:
  0 - Every record was deleted (or already absent under missing_policy: benign)
  1 - At least one record could not be deleted
  2 - Command error (bad config, query failure, journal unavailable)

Examples:
  recpurge run --config recpurge.yaml
  recpurge run --backend sandbox --sandbox ./rehearsal.db --concurrency 4
  RECPURGE_TOKEN=... recpurge run --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(opts, cmd, false)
		},
	}
	opts.bindFlags(cmd)

	return cmd
}

func newPlanCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the records a run would delete",
		Long: `Run the enumeration query and print every id a run would delete,
without deleting anything. The plan is journaled like a run.

Examples:
  recpurge plan --config recpurge.yaml
  recpurge plan --backend sandbox --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(opts, cmd, true)
		},
	}
	opts.bindFlags(cmd)

	return cmd
}

func runPurge(opts *RunOptions, cmd *cobra.Command, dryRun bool) error {
	log := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := resolveConfig(cmd, opts.RootOptions, &opts.TargetOptions)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "invalid configuration", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sess, err := openSession(ctx, cfg, formatter, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn("received signal, stopping dispatch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// In JSON mode stdout carries a single document, so progress lines move to stderr.
	var progress io.Writer = cmd.OutOrStdout()
	if opts.Format == "json" {
		progress = cmd.ErrOrStderr()
	}

	dopts := deleter.Options{
		Query:         cfg.Query,
		RecordType:    cfg.RecordType,
		Concurrency:   cfg.Concurrency,
		MissingPolicy: deleter.MissingPolicy(cfg.MissingPolicy),
		Out:           progress,
		Logger:        log,
		RunIDs:        opts.RunIDs,
		Now:           opts.Now,
	}
	if sess.journal != nil {
		dopts.Journal = sess.journal
	}
	d := deleter.New(sess.backend, sess.backend, dopts)

	var report *deleter.Report
	if dryRun {
		report, err = d.Plan(ctx)
	} else {
		report, err = d.Run(ctx)
	}
	if err != nil {
		if errors.Is(err, deleter.ErrJournal) {
			return commandError(formatter, ErrCodeJournal, "failed to journal run", err)
		}
		return commandError(formatter, ErrCodeQuery, "enumeration query failed", err)
	}

	if opts.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		if dryRun {
			for _, id := range report.IDs() {
				fmt.Fprintf(progress, "Would delete ID %s\n", id)
			}
		}
		writeSummary(formatter.Writer, report)
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d of %d records not deleted",
			ErrCodeFailures, report.FailureCount()+report.Counts.Skipped, report.Counts.Enumerated))
	}
	return nil
}
