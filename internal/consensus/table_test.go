package consensus

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/trace"
)

func newTable() (*Table, *trace.Log) {
	log := trace.NewLog()
	return NewTable(log), log
}

func countType(events []trace.Event, eventType string) int {
	n := 0
	for _, e := range events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func TestScenarioMajorityCommits(t *testing.T) {
	tbl, log := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{0, 1}))
	require.NoError(t, tbl.SetQuorum(1, 0.5))
	tbl.Vote(1, 0, Approve)
	tbl.Vote(1, 1, Approve)

	assert.Equal(t, int64(1), tbl.Commit(1))

	p, ok := tbl.Get(1)
	require.True(t, ok)
	assert.Equal(t, Committed, p.Status)
	assert.Equal(t, 2, p.Approvals)
	assert.Empty(t, log.Events(trace.Warn), "unanimous commit has no warnings")

	assertGoldenTrace(t, "scenario_majority", log)
}

func TestScenarioSupermajorityRejects(t *testing.T) {
	tbl, log := newTable()
	require.NoError(t, tbl.Propose(2, 0, ScalarPayload(0), []int64{0, 1, 2}))
	require.NoError(t, tbl.SetQuorum(2, 0.67))
	tbl.Vote(2, 0, Approve)
	tbl.Vote(2, 1, Reject)

	assert.Equal(t, int64(0), tbl.Commit(2))

	p, _ := tbl.Get(2)
	assert.Equal(t, Rejected, p.Status)
	assert.Equal(t, 1, p.Approvals)
	assert.Equal(t, 1, p.Rejections)

	warns := log.Events(trace.Warn)
	require.Len(t, warns, 1)
	assert.Equal(t, "quorum_not_met", warns[0].EventType)

	assertGoldenTrace(t, "scenario_supermajority", log)
}

func assertGoldenTrace(t *testing.T, name string, log *trace.Log) {
	t.Helper()
	var b strings.Builder
	for _, e := range log.Events(trace.Debug) {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(b.String()))
}

func TestQuorumArithmetic(t *testing.T) {
	tests := []struct {
		name      string
		eligible  int
		approvals int
		threshold float64
		committed bool
	}{
		{"all approve", 3, 3, 1.0, true},
		{"exact half inclusive", 2, 1, 0.5, true},
		{"exact two thirds inclusive", 3, 2, 2.0 / 3.0, true},
		{"two thirds against a rounded-up decimal", 3, 2, 0.6666666667, false},
		{"three fifths inclusive", 5, 3, 0.6, true},
		{"just above three fifths", 5, 3, 0.6000000001, false},
		{"just below", 3, 2, 0.67, false},
		{"none approve zero threshold", 4, 0, 0, true},
		{"none approve", 4, 0, 0.25, false},
		{"quarter", 4, 1, 0.25, true},
		{"abstentions count against", 10, 5, 0.51, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, _ := newTable()
			agents := make([]int64, tt.eligible)
			for i := range agents {
				agents[i] = int64(i)
			}
			require.NoError(t, tbl.Propose(7, 0, BytesPayload(nil), agents))
			require.NoError(t, tbl.SetQuorum(7, tt.threshold))
			for i := 0; i < tt.approvals; i++ {
				tbl.Vote(7, int64(i), Approve)
			}

			want := int64(0)
			if tt.committed {
				want = 1
			}
			assert.Equal(t, want, tbl.Commit(7))
		})
	}
}

func TestDefaultThresholdIsMajority(t *testing.T) {
	tbl, _ := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(5), []int64{0, 1, 2, 3}))
	tbl.Vote(1, 0, Approve)
	tbl.Vote(1, 1, Approve)

	p, _ := tbl.Get(1)
	assert.Equal(t, DefaultThreshold, p.Threshold)
	assert.Equal(t, int64(1), tbl.Commit(1), "2/4 meets the default 0.5")
}

func TestDuplicateProposal(t *testing.T) {
	tbl, _ := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{0}))
	err := tbl.Propose(1, 1, ScalarPayload(9), []int64{1})
	assert.ErrorIs(t, err, ErrDuplicateProposal)

	p, _ := tbl.Get(1)
	assert.Equal(t, int64(0), p.Proposer, "original proposal untouched")
}

func TestProposeRejectsNegativeAgent(t *testing.T) {
	tbl, _ := newTable()
	err := tbl.Propose(1, 0, ScalarPayload(0), []int64{2, -1})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Equal(t, 0, tbl.Len())
}

func TestProposeCollapsesDuplicateAgents(t *testing.T) {
	tbl, _ := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{1, 0, 1}))
	p, _ := tbl.Get(1)
	assert.Equal(t, []int64{0, 1}, p.Eligible)
}

func TestSetQuorumValidatesRange(t *testing.T) {
	tbl, _ := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{0}))
	assert.ErrorIs(t, tbl.SetQuorum(1, 1.5), ErrInvalidParameter)
	assert.ErrorIs(t, tbl.SetQuorum(1, -0.1), ErrInvalidParameter)
	assert.NoError(t, tbl.SetQuorum(1, 0))
	assert.NoError(t, tbl.SetQuorum(1, 1))
}

func TestSetQuorumAfterCommitWarns(t *testing.T) {
	tbl, log := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{0, 1}))
	tbl.Vote(1, 0, Approve)
	require.Equal(t, int64(1), tbl.Commit(1))

	require.NoError(t, tbl.SetQuorum(1, 1.0))

	p, _ := tbl.Get(1)
	assert.Equal(t, DefaultThreshold, p.Threshold)
	assert.Equal(t, Committed, p.Status)
	assert.Equal(t, 1, countType(log.Events(trace.Warn), "quorum_ignored"))
}

func TestIneligibleVoteIsDropped(t *testing.T) {
	tbl, log := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{0, 1}))
	require.NoError(t, tbl.SetQuorum(1, 1.0))
	tbl.Vote(1, 0, Approve)
	tbl.Vote(1, 9, Approve)

	p, _ := tbl.Get(1)
	assert.NotContains(t, p.Votes, int64(9))
	assert.Equal(t, int64(0), tbl.Commit(1), "outsider approval must not reach quorum")

	warns := log.Events(trace.Warn)
	assert.Equal(t, 1, countType(warns, "vote_dropped"))
}

func TestLateVoteIsDropped(t *testing.T) {
	tbl, log := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{0, 1}))
	tbl.Vote(1, 0, Reject)
	require.Equal(t, int64(0), tbl.Commit(1))

	tbl.Vote(1, 1, Approve)
	p, _ := tbl.Get(1)
	assert.Len(t, p.Votes, 1)
	assert.Equal(t, 1, countType(log.Events(trace.Warn), "vote_dropped"))
}

func TestRevoteOverwrites(t *testing.T) {
	tbl, log := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{0}))
	tbl.Vote(1, 0, Reject)
	tbl.Vote(1, 0, Approve)

	p, _ := tbl.Get(1)
	assert.Len(t, p.Votes, 1)
	assert.Equal(t, Approve, p.Votes[0])
	assert.Equal(t, int64(1), tbl.Commit(1))

	events := log.Events(trace.Debug)
	assert.Contains(t, events[2].Message, "(was reject)")
}

func TestCommitIsIdempotent(t *testing.T) {
	tbl, log := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{0, 1}))
	tbl.Vote(1, 0, Approve)
	require.Equal(t, int64(1), tbl.Commit(1))
	before := log.Len()

	assert.Equal(t, int64(1), tbl.Commit(1))

	p, _ := tbl.Get(1)
	assert.Equal(t, Committed, p.Status)
	added := log.Since(before)
	require.Len(t, added, 1)
	assert.Equal(t, "already_final", added[0].EventType)
	assert.Zero(t, countType(added, "tally"), "no re-tally")
}

func TestCommitNotUnanimousWarns(t *testing.T) {
	tbl, log := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), []int64{0, 1, 2}))
	tbl.Vote(1, 0, Approve)
	tbl.Vote(1, 1, Approve)
	tbl.Vote(1, 2, Reject)

	assert.Equal(t, int64(1), tbl.Commit(1))
	warns := log.Events(trace.Warn)
	require.Len(t, warns, 1)
	assert.Equal(t, "not_unanimous", warns[0].EventType)
	assert.Equal(t, 1, countType(log.Events(trace.Info), "tally"))
}

func TestUnknownProposalIsDomainNormal(t *testing.T) {
	tbl, log := newTable()
	assert.NoError(t, tbl.SetQuorum(42, 0.5))
	tbl.Vote(42, 0, Approve)
	assert.Equal(t, int64(0), tbl.Commit(42))

	assert.Equal(t, 3, countType(log.Events(trace.Warn), "unknown_proposal"))
	_, ok := tbl.Get(42)
	assert.False(t, ok)
}

func TestEmptyEligibleSet(t *testing.T) {
	tbl, _ := newTable()
	require.NoError(t, tbl.Propose(1, 0, ScalarPayload(0), nil))
	tbl.Vote(1, 0, Approve)
	assert.Equal(t, int64(0), tbl.Commit(1))
}

func TestGetReturnsCopy(t *testing.T) {
	tbl, _ := newTable()
	require.NoError(t, tbl.Propose(1, 0, BytesPayload([]byte{1}), []int64{0}))
	p, _ := tbl.Get(1)
	p.Votes[0] = Approve
	p.Eligible[0] = 99
	p.Payload.Bytes[0] = 9

	again, _ := tbl.Get(1)
	assert.Empty(t, again.Votes)
	assert.Equal(t, []int64{0}, again.Eligible)
	assert.Equal(t, []byte{1}, again.Payload.Bytes)
}

func TestAllInCreationOrder(t *testing.T) {
	tbl, _ := newTable()
	for _, id := range []int64{5, 2, 9} {
		require.NoError(t, tbl.Propose(id, 0, ScalarPayload(id), []int64{0}))
	}
	all := tbl.All()
	require.Len(t, all, 3)
	assert.Equal(t, int64(5), all[0].ID)
	assert.Equal(t, int64(2), all[1].ID)
	assert.Equal(t, int64(9), all[2].ID)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{Pending, Committed, Rejected} {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("vetoed")
	assert.Error(t, err)
}

func TestPayloadString(t *testing.T) {
	assert.Equal(t, "-3", ScalarPayload(-3).String())
	assert.Equal(t, `x"cafe"`, BytesPayload([]byte{0xca, 0xfe}).String())
}
