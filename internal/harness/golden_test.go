package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/engine"
	"github.com/roach88/scrawl/internal/trace"
)

func TestRunWithGolden_Supermajority(t *testing.T) {
	result, err := RunWithGolden(t, loadScenario(t, "01_supermajority.yaml"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_Fault(t *testing.T) {
	result, err := RunWithGolden(t, loadScenario(t, "04_duplicate_proposal.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "DUPLICATE_PROPOSAL", result.Fault)
}

func TestAssertGolden_FromResult(t *testing.T) {
	result, err := Run(loadScenario(t, "01_supermajority.yaml"))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "supermajority", result))
}

func TestSnapshot_Canonical(t *testing.T) {
	result := NewResult("snap")
	result.RunID = "run-1"
	result.Trace = []trace.Event{
		{Seq: 1, Severity: trace.Debug, Domain: "exec", EventType: "yield", Message: "yield R0 = 2.5"},
	}
	result.Yielded = []engine.Scalar{engine.FloatScalar(2.5), engine.IntScalar(-1)}

	data, err := Snapshot(result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"run_id":"run-1","scenario":"snap","trace":[{"domain":"exec","event_type":"yield","message":"yield R0 = 2.5","seq":1,"severity":"DEBUG"}],"yielded":[2.5,-1]}`,
		string(data))

	again, err := Snapshot(result)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestSnapshot_FaultSortsFirst(t *testing.T) {
	result := NewResult("f")
	result.RunID = "r"
	result.Fault = "MALFORMED"

	data, err := Snapshot(result)
	require.NoError(t, err)
	assert.Equal(t, `{"fault":"MALFORMED","run_id":"r","scenario":"f","trace":[],"yielded":[]}`, string(data))
}
