package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/store"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "scrawl.db")
	seedRun(t, dbPath, "run-a", heartbeatSrc, 0)
	seedRun(t, dbPath, "run-b", voteSrc, 1)
	seedRun(t, dbPath, "run-c", duplicateSrc, 2)
	return dbPath
}

func TestRunsText(t *testing.T) {
	dbPath := seedDatabase(t)
	out, err := execute(t, NewRunsCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "OUTCOME")
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "DUPLICATE_PROPOSAL")
	assert.Contains(t, out, "3 run(s)")
	assert.Less(t, strings.Index(out, "run-a"), strings.Index(out, "run-c"))
}

func TestRunsJSON(t *testing.T) {
	dbPath := seedDatabase(t)
	out, err := execute(t, NewRunsCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--limit", "2")
	require.NoError(t, err)

	var result RunsResult
	decodeResponse(t, out, &result)
	require.Equal(t, 2, result.Total)
	assert.Equal(t, "run-b", result.Runs[0].RunID, "the latest runs, oldest first")
	assert.Equal(t, "run-c", result.Runs[1].RunID)
	assert.Equal(t, int64(1), result.Runs[0].AgentID)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", result.Runs[0].CreatedAt)
	require.NotNil(t, result.Runs[1].Fault)
	assert.Equal(t, "DUPLICATE_PROPOSAL", result.Runs[1].Fault.Code)
	assert.Empty(t, result.Runs[0].Trace, "listings leave traces out")
}

func TestRunsEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewRunsCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")
}

func TestRunsMissingDatabase(t *testing.T) {
	out, err := execute(t, NewRunsCommand(&RootOptions{Format: "json"}), "--db", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestRunsRequiresDatabaseFlag(t *testing.T) {
	_, err := execute(t, NewRunsCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

