package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recpurge/internal/deleter"
	"github.com/roach88/recpurge/internal/platform"
)

var testEpoch = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// setupTestStore opens a fresh store in a temp dir, closed on cleanup.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "recpurge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(runID string, started time.Time) *deleter.Report {
	return &deleter.Report{
		RunID:         runID,
		Query:         platform.DefaultQuery,
		RecordType:    platform.DefaultRecordType,
		MissingPolicy: deleter.MissingBenign,
		StartedAt:     started,
	}
}
