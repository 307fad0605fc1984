package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/trace"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	RunID        string
	Fault        string
	Trace        []trace.Event
	Yielded      []any
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	m := map[string]any{
		"scenario": s.ScenarioName,
		"run_id":   s.RunID,
		"trace":    trace.Values(s.Trace),
		"yielded":  s.Yielded,
	}
	if s.Fault != "" {
		m["fault"] = s.Fault
	}
	return m
}

// Snapshot returns the canonical JSON form of a result, the bytes golden
// files hold.
func Snapshot(result *Result) ([]byte, error) {
	yielded := make([]any, len(result.Yielded))
	for i, v := range result.Yielded {
		yielded[i] = v.Value()
	}
	snap := TraceSnapshot{
		ScenarioName: result.Scenario,
		RunID:        result.RunID,
		Fault:        result.Fault,
		Trace:        result.Trace,
		Yielded:      yielded,
	}
	return isa.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
