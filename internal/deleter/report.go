package deleter

import (
	"sort"
	"time"
)

// Status is the final state of one id in a run.
type Status string

const (
	// StatusDeleted means the host confirmed the deletion.
	StatusDeleted Status = "deleted"

	// StatusMissing means the host reported the record as nonexistent.
	StatusMissing Status = "missing"

	// StatusFailed means the host rejected the deletion.
	StatusFailed Status = "failed"

	// StatusSkipped means no delete was issued (dry run or cancellation).
	StatusSkipped Status = "skipped"
)

// MissingPolicy decides whether deleting an already-absent record is a failure.
type MissingPolicy string

const (
	// MissingBenign treats an absent record as already purged.
	MissingBenign MissingPolicy = "benign"

	// MissingFail counts an absent record toward the run's failures.
	MissingFail MissingPolicy = "fail"
)

// Outcome is the result of processing one id.
type Outcome struct {
	ID       string        `json:"id"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`

	// Err is the underlying error for failed, missing and skipped outcomes.
	Err error `json:"-"`
}

// Counts tallies outcomes by status.
type Counts struct {
	Enumerated int `json:"enumerated"`
	Deleted    int `json:"deleted"`
	Missing    int `json:"missing"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Report aggregates a whole run.
type Report struct {
	RunID         string        `json:"run_id"`
	Query         string        `json:"query"`
	RecordType    string        `json:"record_type"`
	DryRun        bool          `json:"dry_run,omitempty"`
	MissingPolicy MissingPolicy `json:"missing_policy"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`

	// Truncated is set when the host reported more rows than one query returned.
	Truncated bool `json:"truncated,omitempty"`

	Counts   Counts    `json:"counts"`
	Outcomes []Outcome `json:"outcomes"`
}

// tally recomputes Counts from Outcomes.
func (r *Report) tally() {
	c := Counts{Enumerated: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusDeleted:
			c.Deleted++
		case StatusMissing:
			c.Missing++
		case StatusFailed:
			c.Failed++
		case StatusSkipped:
			c.Skipped++
		}
	}
	r.Counts = c
}

// FailureCount is the number of outcomes that make the run unsuccessful
// under its missing policy.
func (r *Report) FailureCount() int {
	n := r.Counts.Failed
	if r.MissingPolicy == MissingFail {
		n += r.Counts.Missing
	}
	return n
}

// OK reports whether every enumerated id ended in an acceptable state.
// Skipped ids only count as acceptable in a dry run.
func (r *Report) OK() bool {
	if r.FailureCount() > 0 {
		return false
	}
	return r.DryRun || r.Counts.Skipped == 0
}

// Failures returns the unsuccessful outcomes sorted by id.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed || (o.Status == StatusMissing && r.MissingPolicy == MissingFail) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the enumerated ids in query order.
func (r *Report) IDs() []string {
	ids := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		ids[i] = o.ID
	}
	return ids
}
