package engine

import (
	"encoding/hex"
	"fmt"

	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/trace"
)

// DomainTrace prefixes trace digests.
const DomainTrace = "scrawl/trace/v1"

// Result describes one completed run. It is not modified after Execute
// returns.
type Result struct {
	RunID                string
	AgentID              int64 // acting agent when the run started
	InstructionsExecuted int
	ExecutionTimeMS      float64
	Yielded              []Scalar
	TraceEvents          []trace.Event
	Halted               bool // stopped on X_HALT rather than running off the end
}

// YieldedValues returns the yielded scalars as int64/float64 values.
func (r *Result) YieldedValues() []any {
	out := make([]any, len(r.Yielded))
	for i, s := range r.Yielded {
		out[i] = s.Value()
	}
	return out
}

// TraceDigest hashes the run's trace events. Two runs of the same program
// from the same state produce the same digest.
func (r *Result) TraceDigest() (string, error) {
	return TraceDigest(r.TraceEvents)
}

// TraceDigest hashes events in order via canonical JSON.
func TraceDigest(events []trace.Event) (string, error) {
	canonical, err := isa.MarshalCanonical(trace.Values(events))
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	sum := isa.HashWithDomain(DomainTrace, canonical)
	return hex.EncodeToString(sum[:]), nil
}
