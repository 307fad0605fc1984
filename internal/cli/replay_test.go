package cli

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/store"
)

func corruptDigest(t *testing.T, dbPath, runID string) {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`UPDATE runs SET trace_digest = ? WHERE id = ?`, "not-a-digest", runID)
	require.NoError(t, err)
}

func TestReplayAllDeterministic(t *testing.T) {
	dbPath := seedDatabase(t)
	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Replay Summary: 3 run(s)")
	assert.Contains(t, out, "✓ Run: run-a (agent 0)")
	assert.Contains(t, out, "✓ Run: run-c (agent 2)")
	assert.Contains(t, out, "Fault: stored DUPLICATE_PROPOSAL, replay DUPLICATE_PROPOSAL")
	assert.Contains(t, out, "✓ All runs verified deterministic")
}

func TestReplayJSON(t *testing.T) {
	dbPath := seedDatabase(t)
	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "run-b")
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.AllDeterministic)
	require.Len(t, result.Runs, 1)
	r := result.Runs[0]
	assert.Equal(t, "run-b", r.RunID)
	assert.Equal(t, int64(1), r.AgentID)
	assert.Equal(t, r.StoredDigest, r.ReplayDigest)
	assert.Empty(t, r.ReplayFault)
}

func TestReplayDetectsDivergence(t *testing.T) {
	dbPath := seedDatabase(t)
	corruptDigest(t, dbPath, "run-b")

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Run: run-b (agent 1)")
	assert.Contains(t, out, "Stored digest: not-a-digest")
	assert.Contains(t, out, "Non-deterministic replay detected!")
	assert.Contains(t, out, "✗ Determinism verification failed")

	out, err = execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.Error(t, err)
	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_DETERMINISM", resp.Error.Code)
	assert.False(t, result.AllDeterministic)
	assert.True(t, result.Runs[0].Deterministic)
	assert.False(t, result.Runs[1].Deterministic)
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath := seedDatabase(t)
	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "run-z")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayRequiresDatabase(t *testing.T) {
	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
