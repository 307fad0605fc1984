package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayRun_Matches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.WriteRun(ctx, execute(t, "run-1", supermajority()))
	require.NoError(t, err)

	report, err := s.ReplayRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, report.Match())
	assert.Nil(t, report.Replay.Fault)
	assert.Equal(t, report.Run.TraceDigest, report.Replay.Digest)
}

func TestReplayRun_Diverges(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := execute(t, "run-1", supermajority())
	rec.Run.TraceDigest = "0000"
	_, err := s.WriteRun(ctx, rec)
	require.NoError(t, err)

	report, err := s.ReplayRun(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, report.Match())
}

func TestReplayRun_Fault(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := execute(t, "run-f", faulting())
	_, err := s.WriteRun(ctx, rec)
	require.NoError(t, err)

	report, err := s.ReplayRun(ctx, "run-f")
	require.NoError(t, err)
	assert.True(t, report.Match(), "the fault is part of the trace")
	require.NotNil(t, report.Replay.Fault)
}

func TestReplayRun_Missing(t *testing.T) {
	_, err := createTestStore(t).ReplayRun(context.Background(), "nope")
	assert.Error(t, err)
}
