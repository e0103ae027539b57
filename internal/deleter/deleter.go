package deleter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/recpurge/internal/platform"
)

// DefaultConcurrency bounds in-flight delete requests when Options leaves it unset.
const DefaultConcurrency = 8

var (
	// ErrMissingID is returned by Enumerate when a result row has no id column.
	ErrMissingID = errors.New("result row has no id")

	// ErrJournal is returned by Run and Plan when the run cannot be journaled.
	ErrJournal = errors.New("journal unavailable")
)

// Journal persists run progress. Implementations must be safe for
// concurrent RecordOutcome calls.
type Journal interface {
	BeginRun(ctx context.Context, r *Report) error
	RecordOutcome(ctx context.Context, runID string, seq int, o Outcome) error
	FinishRun(ctx context.Context, r *Report, runErr error) error
}

// Options configures a Deleter. Zero values select the defaults.
type Options struct {
	// Query enumerates the ids to delete. Must select an id column.
	Query string

	// RecordType is the type passed with every delete request.
	RecordType string

	// Concurrency caps in-flight delete requests.
	Concurrency int

	MissingPolicy MissingPolicy

	// Out receives one "Deleted ID <id>" line per successful deletion.
	Out io.Writer

	Logger  *slog.Logger
	Journal Journal
	RunIDs  RunIDGenerator
	Now     func() time.Time
}

// Deleter purges every record a query enumerates.
type Deleter struct {
	query   platform.QueryService
	records platform.RecordService
	opts    Options

	outMu sync.Mutex
}

// New creates a Deleter over the given host services.
func New(query platform.QueryService, records platform.RecordService, opts Options) *Deleter {
	if opts.Query == "" {
		opts.Query = platform.DefaultQuery
	}
	if opts.RecordType == "" {
		opts.RecordType = platform.DefaultRecordType
	}
	opts.RecordType = platform.NormalizeType(opts.RecordType)
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MissingPolicy == "" {
		opts.MissingPolicy = MissingBenign
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunIDs == nil {
		opts.RunIDs = UUIDv7Generator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Deleter{
		query:   query,
		records: records,
		opts:    opts,
	}
}

// RecordType returns the type every delete request carries.
func (d *Deleter) RecordType() string {
	return d.opts.RecordType
}

// Enumerate runs the query once and returns the distinct ids in query order.
// The bool is true if the host holds more rows than this single call returned.
func (d *Deleter) Enumerate(ctx context.Context) ([]string, bool, error) {
	res, err := d.query.RunSuiteQL(ctx, d.opts.Query)
	if err != nil {
		return nil, false, fmt.Errorf("enumerate %s: %w", d.opts.RecordType, err)
	}

	ids := make([]string, 0, len(res.Rows))
	seen := make(map[string]struct{}, len(res.Rows))
	for i, row := range res.Rows {
		id, ok := platform.IDOf(row)
		if !ok {
			return nil, false, fmt.Errorf("enumerate %s: row %d: %w", d.opts.RecordType, i, ErrMissingID)
		}
		if _, dup := seen[id]; dup {
			d.opts.Logger.Debug("duplicate id in query result", "id", id)
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids, res.HasMore, nil
}

// DeleteOne deletes a single record and returns its outcome.
// Only a confirmed deletion writes a "Deleted ID" line.
func (d *Deleter) DeleteOne(ctx context.Context, id string) Outcome {
	ref := platform.Ref{ID: id, Type: d.opts.RecordType}
	start := d.opts.Now()

	deleted, err := d.records.Delete(ctx, ref)
	elapsed := d.opts.Now().Sub(start)

	switch {
	case err == nil:
		if deleted != "" && deleted != id {
			d.opts.Logger.Debug("host returned different id", "id", id, "returned", deleted)
		}
		d.printf("Deleted ID %s\n", id)
		return Outcome{ID: id, Status: StatusDeleted, Duration: elapsed}

	case platform.IsNotFound(err):
		d.opts.Logger.Warn("record missing", "id", id, "type", ref.Type, "policy", string(d.opts.MissingPolicy))
		return Outcome{ID: id, Status: StatusMissing, Error: err.Error(), Err: err, Duration: elapsed}

	default:
		d.opts.Logger.Warn("delete failed", "id", id, "type", ref.Type, "error", err)
		return Outcome{ID: id, Status: StatusFailed, Error: err.Error(), Err: err, Duration: elapsed}
	}
}

// Run enumerates once, then deletes every id with bounded concurrency and
// waits for all deletions to finish.
//
// A query failure returns a nil report; no delete has been issued.
// Cancelling ctx stops dispatch; ids not yet dispatched are reported as skipped.
func (d *Deleter) Run(ctx context.Context) (*Report, error) {
	return d.run(ctx, false)
}

// Plan enumerates without deleting. Every id is reported as skipped.
func (d *Deleter) Plan(ctx context.Context) (*Report, error) {
	return d.run(ctx, true)
}

func (d *Deleter) run(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{
		RunID:         d.opts.RunIDs.Generate(),
		Query:         d.opts.Query,
		RecordType:    d.opts.RecordType,
		DryRun:        dryRun,
		MissingPolicy: d.opts.MissingPolicy,
		StartedAt:     d.opts.Now(),
		Outcomes:      []Outcome{},
	}
	log := d.opts.Logger.With("run_id", report.RunID)

	if err := d.journalBegin(ctx, report); err != nil {
		return nil, err
	}

	log.Info("enumerating records", "type", report.RecordType, "dry_run", dryRun)
	ids, truncated, err := d.Enumerate(ctx)
	if err != nil {
		report.FinishedAt = d.opts.Now()
		d.journalFinish(ctx, report, err)
		return nil, err
	}
	report.Truncated = truncated
	if truncated {
		log.Warn("query returned a partial result; re-run to purge the remainder", "returned", len(ids))
	}
	log.Info("records enumerated", "count", len(ids))

	report.Outcomes = make([]Outcome, len(ids))
	if dryRun {
		for i, id := range ids {
			report.Outcomes[i] = Outcome{ID: id, Status: StatusSkipped}
		}
	} else {
		d.fanOut(ctx, report, ids)
	}

	report.FinishedAt = d.opts.Now()
	report.tally()
	d.journalFinish(ctx, report, nil)

	log.Info("run finished",
		"deleted", report.Counts.Deleted,
		"missing", report.Counts.Missing,
		"failed", report.Counts.Failed,
		"skipped", report.Counts.Skipped,
	)
	return report, nil
}

// fanOut issues one delete per id, at most Concurrency at a time.
// Each goroutine writes only its own slot of report.Outcomes.
func (d *Deleter) fanOut(ctx context.Context, report *Report, ids []string) {
	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			report.Outcomes[i] = Outcome{ID: id, Status: StatusSkipped, Error: err.Error(), Err: err}
			d.journalOutcome(ctx, report.RunID, i+1, report.Outcomes[i])
			continue
		}

		g.Go(func() error {
			// Go may have blocked on the limit while ctx was cancelled.
			if err := ctx.Err(); err != nil {
				report.Outcomes[i] = Outcome{ID: id, Status: StatusSkipped, Error: err.Error(), Err: err}
				d.journalOutcome(ctx, report.RunID, i+1, report.Outcomes[i])
				return nil
			}
			o := d.DeleteOne(ctx, id)
			report.Outcomes[i] = o
			d.journalOutcome(ctx, report.RunID, i+1, o)
			return nil
		})
	}

	// Goroutines never return errors; failures live in the outcomes.
	_ = g.Wait()
}

func (d *Deleter) printf(format string, args ...any) {
	d.outMu.Lock()
	defer d.outMu.Unlock()
	fmt.Fprintf(d.opts.Out, format, args...)
}

func (d *Deleter) journalBegin(ctx context.Context, r *Report) error {
	if d.opts.Journal == nil {
		return nil
	}
	if err := d.opts.Journal.BeginRun(ctx, r); err != nil {
		return fmt.Errorf("%w: begin run: %w", ErrJournal, err)
	}
	return nil
}

// journalOutcome never fails the run; the host-side deletion already happened.
func (d *Deleter) journalOutcome(ctx context.Context, runID string, seq int, o Outcome) {
	if d.opts.Journal == nil {
		return
	}
	if err := d.opts.Journal.RecordOutcome(context.WithoutCancel(ctx), runID, seq, o); err != nil {
		d.opts.Logger.Error("journal write failed", "run_id", runID, "id", o.ID, "error", err)
	}
}

func (d *Deleter) journalFinish(ctx context.Context, r *Report, runErr error) {
	if d.opts.Journal == nil {
		return
	}
	if err := d.opts.Journal.FinishRun(context.WithoutCancel(ctx), r, runErr); err != nil {
		d.opts.Logger.Error("journal finish failed", "run_id", r.RunID, "error", err)
	}
}
