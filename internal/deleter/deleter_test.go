package deleter

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/recpurge/internal/platform"
	"github.com/roach88/recpurge/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// lines splits deleter output into non-empty lines.
func lines(buf *bytes.Buffer) []string {
	var out []string
	for _, l := range strings.Split(buf.String(), "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func newTestDeleter(fake *testutil.FakePlatform, out *bytes.Buffer, opts Options) *Deleter {
	opts.Out = out
	if opts.RunIDs == nil {
		opts.RunIDs = NewFixedGenerator("run-1", "run-2", "run-3")
	}
	return New(fake, fake, opts)
}

func TestRun_OneDeletePerRowWithFixedType(t *testing.T) {
	fake := testutil.NewFakePlatform("10", "11", "12", "13", "14")
	var out bytes.Buffer

	report, err := newTestDeleter(fake, &out, Options{}).Run(context.Background())
	require.NoError(t, err)

	deletes := fake.Deletes()
	require.Len(t, deletes, 5)
	var ids []string
	for _, ref := range deletes {
		assert.Equal(t, platform.DefaultRecordType, ref.Type)
		ids = append(ids, ref.ID)
	}
	assert.ElementsMatch(t, []string{"10", "11", "12", "13", "14"}, ids)
	assert.Equal(t, []string{platform.DefaultQuery}, fake.Queries())
	assert.Equal(t, 5, report.Counts.Deleted)
	assert.True(t, report.OK())
}

func TestRun_EmptyResultIssuesNothing(t *testing.T) {
	fake := testutil.NewFakePlatform()
	var out bytes.Buffer

	report, err := newTestDeleter(fake, &out, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fake.Deletes())
	assert.Empty(t, out.String())
	assert.Equal(t, Counts{}, report.Counts)
	assert.True(t, report.OK())
}

func TestRun_LogsEachDeletedID(t *testing.T) {
	fake := testutil.NewFakePlatform("1", "2", "3")
	var out bytes.Buffer

	_, err := newTestDeleter(fake, &out, Options{Concurrency: 3}).Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Deleted ID 1", "Deleted ID 2", "Deleted ID 3"}, lines(&out))
}

func TestRun_DispatchesBeforeAnyCompletion(t *testing.T) {
	fake := testutil.NewFakePlatform("1", "2")
	fake.Started = make(chan platform.Ref)
	fake.Release = make(chan struct{})
	var out bytes.Buffer
	d := newTestDeleter(fake, &out, Options{Concurrency: 2})

	type result struct {
		report *Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := d.Run(context.Background())
		done <- result{r, err}
	}()

	first := <-fake.Started
	second := <-fake.Started
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, fake.MaxInFlight())

	close(fake.Release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 2, res.report.Counts.Deleted)
	assert.ElementsMatch(t, []string{"Deleted ID 1", "Deleted ID 2"}, lines(&out))
}

func TestRun_FailureDoesNotHaltOthers(t *testing.T) {
	fake := testutil.NewFakePlatform("1", "2", "3", "4")
	fake.DeleteErrs["2"] = &platform.Error{Kind: platform.KindForbidden, Status: 403, Message: "permission denied"}
	var out bytes.Buffer

	report, err := newTestDeleter(fake, &out, Options{Concurrency: 1}).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, fake.Deletes(), 4)
	assert.ElementsMatch(t, []string{"Deleted ID 1", "Deleted ID 3", "Deleted ID 4"}, lines(&out))
	assert.Equal(t, 3, report.Counts.Deleted)
	assert.Equal(t, 1, report.Counts.Failed)
	assert.False(t, report.OK())

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "2", failures[0].ID)
	assert.Contains(t, failures[0].Error, "permission denied")
}

func TestRun_QueryFailureIssuesNoDeletes(t *testing.T) {
	fake := testutil.NewFakePlatform("1")
	fake.QueryErr = &platform.Error{Kind: platform.KindInvalidQuery, Message: "Invalid search query"}
	var out bytes.Buffer

	report, err := newTestDeleter(fake, &out, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, platform.KindInvalidQuery, platform.KindOf(err))
	assert.Empty(t, fake.Deletes())
	assert.Empty(t, out.String())
}

func TestRun_MissingRecordPolicy(t *testing.T) {
	for _, tt := range []struct {
		policy MissingPolicy
		wantOK bool
	}{
		{MissingBenign, true},
		{MissingFail, false},
	} {
		t.Run(string(tt.policy), func(t *testing.T) {
			fake := testutil.NewFakePlatform("1", "2")
			fake.DeleteErrs["2"] = platform.NotFound(platform.Ref{ID: "2", Type: platform.DefaultRecordType})
			var out bytes.Buffer

			report, err := newTestDeleter(fake, &out, Options{MissingPolicy: tt.policy}).Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 1, report.Counts.Deleted)
			assert.Equal(t, 1, report.Counts.Missing)
			assert.Equal(t, tt.wantOK, report.OK())
			assert.Equal(t, []string{"Deleted ID 1"}, lines(&out))
		})
	}
}

func TestRun_CapsInFlightRequests(t *testing.T) {
	ids := make([]string, 40)
	for i := range ids {
		ids[i] = strconv.Itoa(1000 + i)
	}
	fake := testutil.NewFakePlatform(ids...)
	var out bytes.Buffer

	report, err := newTestDeleter(fake, &out, Options{Concurrency: 3}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 40, report.Counts.Deleted)
	assert.LessOrEqual(t, fake.MaxInFlight(), 3)
}

func TestRun_CancelSkipsUndispatched(t *testing.T) {
	fake := testutil.NewFakePlatform("1", "2", "3")
	fake.Started = make(chan platform.Ref)
	fake.Release = make(chan struct{})
	var out bytes.Buffer
	d := newTestDeleter(fake, &out, Options{Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan *Report, 1)
	go func() {
		r, err := d.Run(ctx)
		assert.NoError(t, err)
		done <- r
	}()

	<-fake.Started
	cancel()
	report := <-done

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, 0, report.Counts.Deleted)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status, "in-flight delete was aborted")
	assert.ErrorIs(t, report.Outcomes[0].Err, context.Canceled)
	assert.Equal(t, StatusSkipped, report.Outcomes[1].Status, "queued behind the limit")
	assert.Equal(t, StatusSkipped, report.Outcomes[2].Status)
	assert.Equal(t, 1, report.Counts.Failed)
	assert.Equal(t, 2, report.Counts.Skipped)
	assert.Len(t, fake.Deletes(), 1)
	assert.False(t, report.OK())
	assert.Empty(t, out.String())
}

// renamingHost acknowledges deletes with an id of its own.
type renamingHost struct {
	*testutil.FakePlatform
}

func (h renamingHost) Delete(ctx context.Context, ref platform.Ref) (string, error) {
	if _, err := h.FakePlatform.Delete(ctx, ref); err != nil {
		return "", err
	}
	return "internal-" + ref.ID, nil
}

func TestDeleteOne_PrintsEnumeratedID(t *testing.T) {
	fake := testutil.NewFakePlatform("7")
	host := renamingHost{fake}
	var out bytes.Buffer
	d := New(host, host, Options{Out: &out, RunIDs: NewFixedGenerator("run-1")})

	o := d.DeleteOne(context.Background(), "7")
	assert.Equal(t, StatusDeleted, o.Status)
	assert.Equal(t, "7", o.ID)
	assert.Equal(t, "Deleted ID 7\n", out.String())
}

func TestRun_PreservesQueryOrderInReport(t *testing.T) {
	fake := testutil.NewFakePlatform("30", "10", "20")
	var out bytes.Buffer

	report, err := newTestDeleter(fake, &out, Options{}).Run(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"30", "10", "20"}, report.IDs()); diff != "" {
		t.Errorf("report order mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_DeletesNothing(t *testing.T) {
	fake := testutil.NewFakePlatform("1", "2")
	var out bytes.Buffer

	report, err := newTestDeleter(fake, &out, Options{}).Plan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fake.Deletes())
	assert.Empty(t, out.String())
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Counts.Skipped)
	assert.True(t, report.OK())
}

func TestEnumerate_CollapsesDuplicates(t *testing.T) {
	fake := testutil.NewFakePlatform("5", "6", "5")
	d := newTestDeleter(fake, &bytes.Buffer{}, Options{})

	ids, more, err := d.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "6"}, ids)
	assert.False(t, more)
}

func TestEnumerate_RowWithoutID(t *testing.T) {
	fake := testutil.NewFakePlatform("5")
	fake.Rows = append(fake.Rows, platform.Row{"name": "orphan"})
	d := newTestDeleter(fake, &bytes.Buffer{}, Options{})

	_, _, err := d.Enumerate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingID))
	assert.Contains(t, err.Error(), "row 1")
}

func TestRun_TruncatedResultIsFlagged(t *testing.T) {
	fake := testutil.NewFakePlatform("1")
	fake.HasMore = true

	report, err := newTestDeleter(fake, &bytes.Buffer{}, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Truncated)
}

func TestNew_CustomQueryAndType(t *testing.T) {
	fake := testutil.NewFakePlatform("9")
	d := newTestDeleter(fake, &bytes.Buffer{}, Options{
		Query:      "SELECT id FROM customrecord_other WHERE isinactive = 'T'",
		RecordType: "CustomRecord_Other",
	})

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "customrecord_other", d.RecordType())
	assert.Equal(t, []string{"SELECT id FROM customrecord_other WHERE isinactive = 'T'"}, fake.Queries())
	assert.Equal(t, []platform.Ref{{ID: "9", Type: "customrecord_other"}}, fake.Deletes())
}

// recordingJournal captures journal calls.
type recordingJournal struct {
	mu       sync.Mutex
	begun    []string
	outcomes map[int]Outcome
	finished *Report
	runErr   error
}

func (j *recordingJournal) BeginRun(ctx context.Context, r *Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.begun = append(j.begun, r.RunID)
	return nil
}

func (j *recordingJournal) RecordOutcome(ctx context.Context, runID string, seq int, o Outcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.outcomes == nil {
		j.outcomes = map[int]Outcome{}
	}
	j.outcomes[seq] = o
	return nil
}

func (j *recordingJournal) FinishRun(ctx context.Context, r *Report, runErr error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = r
	j.runErr = runErr
	return nil
}

func TestRun_JournalsEveryOutcome(t *testing.T) {
	fake := testutil.NewFakePlatform("a", "b", "c")
	fake.DeleteErrs["b"] = errors.New("connection reset")
	journal := &recordingJournal{}
	clock := testutil.NewDeterministicClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Second)

	report, err := newTestDeleter(fake, &bytes.Buffer{}, Options{Journal: journal, Now: clock.Now}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"run-1"}, journal.begun)
	require.Len(t, journal.outcomes, 3)
	assert.Equal(t, "a", journal.outcomes[1].ID)
	assert.Equal(t, StatusFailed, journal.outcomes[2].Status)
	assert.Equal(t, "c", journal.outcomes[3].ID)
	assert.Same(t, report, journal.finished)
	assert.NoError(t, journal.runErr)
	assert.True(t, report.FinishedAt.After(report.StartedAt))
}

func TestRun_JournalRecordsQueryFailure(t *testing.T) {
	fake := testutil.NewFakePlatform()
	fake.QueryErr = errors.New("host unreachable")
	journal := &recordingJournal{}

	_, err := newTestDeleter(fake, &bytes.Buffer{}, Options{Journal: journal}).Run(context.Background())
	require.Error(t, err)

	require.NotNil(t, journal.finished)
	assert.ErrorContains(t, journal.runErr, "host unreachable")
}

type failingJournal struct{ recordingJournal }

func (j *failingJournal) BeginRun(ctx context.Context, r *Report) error {
	return errors.New("disk I/O error")
}

func TestRun_JournalBeginFailureIssuesNoDeletes(t *testing.T) {
	fake := testutil.NewFakePlatform("a", "b")

	report, err := newTestDeleter(fake, &bytes.Buffer{}, Options{Journal: &failingJournal{}}).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrJournal)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Empty(t, fake.Queries())
	assert.Empty(t, fake.Deletes())
}
