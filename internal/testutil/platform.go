package testutil

import (
	"context"
	"sync"

	"github.com/roach88/recpurge/internal/platform"
)

// FakePlatform is a scriptable in-memory host implementing platform.Backend.
//
// Set Started and Release to gate deletions: each Delete sends its ref on
// Started, then blocks until a value arrives on Release (or ctx ends).
type FakePlatform struct {
	Rows     []platform.Row
	HasMore  bool
	QueryErr error

	// DeleteErrs maps a record id to the error its deletion returns.
	DeleteErrs map[string]error

	Started chan platform.Ref
	Release chan struct{}

	mu          sync.Mutex
	queries     []string
	deletes     []platform.Ref
	inFlight    int
	maxInFlight int
}

// NewFakePlatform returns a host whose query yields one row per id.
func NewFakePlatform(ids ...string) *FakePlatform {
	rows := make([]platform.Row, len(ids))
	for i, id := range ids {
		rows[i] = platform.Row{platform.IDColumn: id}
	}
	return &FakePlatform{Rows: rows, DeleteErrs: map[string]error{}}
}

func (f *FakePlatform) RunSuiteQL(ctx context.Context, query string) (*platform.QueryResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	rows := make([]platform.Row, len(f.Rows))
	copy(rows, f.Rows)
	return &platform.QueryResult{Rows: rows, HasMore: f.HasMore, TotalResults: len(rows)}, nil
}

func (f *FakePlatform) Delete(ctx context.Context, ref platform.Ref) (string, error) {
	f.mu.Lock()
	f.deletes = append(f.deletes, ref)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	err := f.DeleteErrs[ref.ID]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Started != nil {
		select {
		case f.Started <- ref:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Release != nil {
		select {
		case <-f.Release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// Queries returns every query text received.
func (f *FakePlatform) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// Deletes returns every delete request received, in arrival order.
func (f *FakePlatform) Deletes() []platform.Ref {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Ref(nil), f.deletes...)
}

// MaxInFlight is the highest number of concurrent Delete calls observed.
func (f *FakePlatform) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}
