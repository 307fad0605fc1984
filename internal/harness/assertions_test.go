package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/consensus"
	"github.com/roach88/scrawl/internal/store"
	"github.com/roach88/scrawl/internal/trace"
)

func sampleTrace() []trace.Event {
	return []trace.Event{
		{Seq: 1, Severity: trace.Info, Domain: "consensus", EventType: "propose", Message: "proposal 1 opened by agent 0"},
		{Seq: 2, Severity: trace.Info, Domain: "consensus", EventType: "vote", Message: "agent 0 votes approve on proposal 1"},
		{Seq: 3, Severity: trace.Warn, Domain: "consensus", EventType: "vote_dropped", Message: "agent 9 is not eligible for proposal 1; approve dropped"},
		{Seq: 4, Severity: trace.Info, Domain: "consensus", EventType: "vote", Message: "agent 1 votes reject on proposal 1"},
		{Seq: 5, Severity: trace.Debug, Domain: "exec", EventType: "halt", Message: "halt at instruction 4"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"by name", Assertion{Event: "consensus.vote"}, true},
		{"message substring", Assertion{Event: "consensus.vote", Message: "votes reject"}, true},
		{"severity", Assertion{Event: "consensus.vote_dropped", Severity: "WARN"}, true},
		{"severity alias", Assertion{Event: "consensus.vote_dropped", Severity: "warning"}, true},
		{"wrong severity", Assertion{Event: "consensus.vote", Severity: "WARN"}, false},
		{"message elsewhere", Assertion{Event: "consensus.propose", Message: "votes"}, false},
		{"absent", Assertion{Event: "consensus.tally"}, false},
		{"domain matters", Assertion{Event: "identity.vote"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Type = AssertTraceContains
			err := assertTraceContains(sampleTrace(), tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertTraceContains, ae.Type)
			assert.Equal(t, "not found in trace", ae.Actual)
			assert.Len(t, ae.Trace, 5)
		})
	}
}

func TestAssertTraceContains_ExpectedText(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Event: "consensus.tally", Severity: "INFO", Message: "committed"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, `INFO consensus.tally with message containing "committed"`, ae.Expected)
}

func TestAssertTraceOrder(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		actual string
	}{
		{"in order", []string{"consensus.propose", "consensus.vote", "exec.halt"}, ""},
		{"intervening events allowed", []string{"consensus.propose", "exec.halt"}, ""},
		{"first occurrence counts", []string{"consensus.vote", "consensus.vote_dropped"}, ""},
		{"wrong order", []string{"exec.halt", "consensus.propose"}, "exec.halt (pos 5) should be before consensus.propose (pos 1)"},
		{"missing", []string{"consensus.propose", "consensus.tally"}, "missing event: consensus.tally"},
		{"repeated name", []string{"consensus.vote", "consensus.vote"}, "consensus.vote (pos 2) should be before consensus.vote (pos 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(sampleTrace(), Assertion{Type: AssertTraceOrder, Events: tt.events})
			if tt.actual == "" {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.actual, ae.Actual)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		name  string
		event string
		count int
		ok    bool
	}{
		{"exact", "consensus.vote", 2, true},
		{"too few", "consensus.vote", 3, false},
		{"too many", "consensus.vote", 1, false},
		{"zero", "consensus.tally", 0, true},
		{"zero but present", "exec.halt", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceCount(sampleTrace(), Assertion{Type: AssertTraceCount, Event: tt.event, Count: tt.count})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertProposalStatus(t *testing.T) {
	result := NewResult("p")
	result.Proposals = []store.Proposal{
		{ID: 1, Status: consensus.Committed, Approvals: 2, Rejections: 1, Eligible: []int64{0, 1, 2}},
		{ID: 2, Status: consensus.Pending, Eligible: []int64{0}},
	}

	assert.NoError(t, assertProposalStatus(result, Assertion{Proposal: 1, Status: "committed"}))
	assert.NoError(t, assertProposalStatus(result, Assertion{Proposal: 2, Status: "pending"}))

	var ae *AssertionError
	require.ErrorAs(t, assertProposalStatus(result, Assertion{Proposal: 1, Status: "rejected"}), &ae)
	assert.Equal(t, "proposal 1 rejected", ae.Expected)
	assert.Equal(t, "proposal 1 committed (2 approve, 1 reject of 3)", ae.Actual)

	require.ErrorAs(t, assertProposalStatus(result, Assertion{Proposal: 9, Status: "pending"}), &ae)
	assert.Equal(t, "no such proposal", ae.Actual)
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult("e")
	result.Trace = sampleTrace()

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: "consensus.propose"},
		{Type: AssertTraceCount, Event: "consensus.vote", Count: 5},
		{Type: AssertTraceOrder, Events: []string{"consensus.propose", "exec.halt"}},
		{Type: "final_state"},
	})
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertions[1]:")
	assert.Contains(t, failures[0], "5 occurrences of consensus.vote")
	assert.Equal(t, `assertions[3]: unknown assertion type "final_state"`, failures[1])

	assert.Empty(t, EvaluateAssertions(result, nil))
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 occurrences of exec.halt",
		Actual:   "0 occurrences",
		Trace:    sampleTrace()[:2],
	}
	want := "Assertion failed: trace_count\n" +
		"  Expected: 1 occurrences of exec.halt\n" +
		"  Actual: 0 occurrences\n" +
		"\nFull trace:\n" +
		"  #1 INFO  consensus.propose: proposal 1 opened by agent 0\n" +
		"  #2 INFO  consensus.vote: agent 0 votes approve on proposal 1\n"
	assert.Equal(t, want, err.Error())

	bare := &AssertionError{Type: AssertProposalStatus, Expected: "x", Actual: "y"}
	assert.NotContains(t, bare.Error(), "Full trace")
}
