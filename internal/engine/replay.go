package engine

import (
	"errors"
	"log/slog"

	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/trace"
)

// ReplayResult reports whether re-running a program reproduced a recorded
// trace.
//
// Replay is structural: the same program, started from empty registers as
// the same agent, emits the same events with the same sequence numbers,
// because handlers read nothing but registers, the proposal table and their
// operands. Wall time is the only thing that differs and it is not part of
// the trace.
type ReplayResult struct {
	Result *Result       // nil when the replay faulted
	Fault  *RuntimeError // the fault, if any
	Digest string        // TraceDigest over every event, fault included
	Match  bool
}

// Replay runs program on a fresh VM acting as agent and compares the digest
// of everything it emits with want. A fault during replay is part of the
// outcome, not an error; the error return is reserved for digest failures.
func Replay(program []isa.Instruction, agent int64, want string, opts ...Option) (*ReplayResult, error) {
	opts = append(opts, WithAgentID(agent))
	vm := New(opts...)

	out := &ReplayResult{}
	res, err := vm.Execute(program)
	if err != nil {
		if !errors.As(err, &out.Fault) {
			return nil, err
		}
	}
	out.Result = res

	digest, err := TraceDigest(vm.TraceEvents(trace.Debug))
	if err != nil {
		return nil, err
	}
	out.Digest = digest
	out.Match = digest == want

	slog.Info("replay complete",
		"instructions", len(program),
		"agent", agent,
		"match", out.Match,
	)
	return out, nil
}
