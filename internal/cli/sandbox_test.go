package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandbox.db")

	res := execute(NewRootCommand(), "sandbox", "seed", "--sandbox", path, "--count", "5")
	require.NoError(t, res.err)
	assert.Equal(t,
		fmt.Sprintf("Seeded 5 customrecord_sw2022_contract_tranlines record(s) in %s (5 total)\n", path),
		res.stdout)

	res = execute(NewRootCommand(), "sandbox", "seed", "--sandbox", path, "-n", "2")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "(7 total)")
}

func TestSandboxSeed_JSONAndRecordType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandbox.db")

	res := execute(NewRootCommand(), "--format", "json",
		"sandbox", "seed", "--sandbox", path, "--record-type", "CustomRecord_Widget", "--count", "3")
	require.NoError(t, res.err)

	var resp struct {
		Status string     `json:"status"`
		Data   SeedResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "customrecord_widget", resp.Data.RecordType)
	assert.Equal(t, []string{"1", "2", "3"}, resp.Data.IDs)
	assert.Equal(t, 3, resp.Data.Total)
}

func TestSandboxSeed_InvalidRecordType(t *testing.T) {
	res := execute(NewRootCommand(), "sandbox", "seed",
		"--sandbox", filepath.Join(t.TempDir(), "sandbox.db"), "--record-type", "runs")

	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Error [E_BACKEND]")
	assert.Contains(t, res.stdout, "reserved")
}

func TestSandboxSeedThenRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sandbox.db")

	res := execute(NewRootCommand(), "sandbox", "seed", "--sandbox", path, "--count", "25")
	require.NoError(t, res.err)

	res = execute(NewRootCommand(), "run",
		"--backend", "sandbox", "--sandbox", path, "--journal", filepath.Join(dir, "journal.db"), "-c", "4")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "enumerated: 25\ndeleted: 25\n")
	assert.Equal(t, 0, sandboxCount(t, path, "customrecord_sw2022_contract_tranlines"))
}
