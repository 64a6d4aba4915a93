package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runFixture drives a full run and returns the database path and the
// run token reported on stdout.
func runFixture(t *testing.T) (dbPath, runToken string) {
	t.Helper()
	dir := writePackageDir(t, validDoc)
	dbPath = filepath.Join(t.TempDir(), "sid.db")

	out, err := execCommand(t, NewRunCommand(&RootOptions{Format: "json"}), dir,
		"--db", dbPath, "--state", "s1", "--diagram", "d1")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	runToken, ok = data["run_token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, runToken)
	return dbPath, runToken
}

func TestRun_ReachesFixedPoint(t *testing.T) {
	dir := writePackageDir(t, validDoc)
	dbPath := filepath.Join(t.TempDir(), "sid.db")

	out, err := execCommand(t, NewRunCommand(&RootOptions{Format: "json"}), dir,
		"--db", dbPath, "--state", "s1", "--diagram", "d1")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["stable"])
	assert.Equal(t, float64(2), data["applied"])
}

func TestRun_QuotaLeavesUnstable(t *testing.T) {
	dir := writePackageDir(t, validDoc)
	dbPath := filepath.Join(t.TempDir(), "sid.db")

	_, err := execCommand(t, NewRunCommand(&RootOptions{Format: "text"}), dir,
		"--db", dbPath, "--state", "s1", "--diagram", "d1", "--max-steps", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestReplay_VerifiesRecordedRun(t *testing.T) {
	dbPath, runToken := runFixture(t)

	out, err := execCommand(t, NewReplayCommand(&RootOptions{Format: "text"}), runToken,
		"--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "verified")
	assert.Contains(t, out, "2 step(s)")
}

func TestReplay_UnknownRunVerifiesEmptyLog(t *testing.T) {
	dbPath, _ := runFixture(t)

	out, err := execCommand(t, NewReplayCommand(&RootOptions{Format: "text"}), "no-such-run",
		"--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "0 step(s)")
}

func TestTrace_ListsRunRecords(t *testing.T) {
	dbPath, runToken := runFixture(t)

	out, err := execCommand(t, NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", runToken)
	require.NoError(t, err)
	assert.Contains(t, out, runToken)
	assert.Contains(t, out, "swap")
	assert.Contains(t, out, "applied")
}

func TestTrace_RejectedFilterMatchesNothing(t *testing.T) {
	dbPath, _ := runFixture(t)

	out, err := execCommand(t, NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--rejected")
	require.NoError(t, err)
	assert.Contains(t, out, "no records")
}

func TestTrace_JSONEntries(t *testing.T) {
	dbPath, runToken := runFixture(t)

	out, err := execCommand(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--run", runToken, "--rule", "swap")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	entries, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 2)
}
