package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/scrawl/internal/consensus"
	"github.com/roach88/scrawl/internal/engine"
	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/trace"
)

// Run is the summary row of one executed program.
type Run struct {
	ID                   string
	AgentID              int64
	ProgramHash          string
	Program              []isa.Instruction
	TraceDigest          string
	InstructionsExecuted int
	ExecutionTimeMS      float64
	Halted               bool
	ErrorCode            string // empty for a run that did not fault
	ErrorMessage         string
	Yielded              []engine.Scalar
	CreatedAt            time.Time // set by WriteRun
}

// Faulted reports whether the run ended in an engine fault.
func (r Run) Faulted() bool { return r.ErrorCode != "" }

// Record is a run together with its trace and proposal table, the unit
// WriteRun stores.
type Record struct {
	Run       Run
	Events    []trace.Event
	Proposals []consensus.Proposal
}

// Proposal is a stored proposal outcome. Individual votes are not kept;
// the trace has them.
type Proposal struct {
	RunID      string
	ID         int64
	Proposer   int64
	Payload    string
	Status     consensus.Status
	Threshold  float64
	Approvals  int
	Rejections int
	Eligible   []int64
}

// Capture builds the record of one Execute call on vm. res and runErr are
// what Execute returned. On a fault res is nil and the events are read from
// vm's log, so vm must not have run anything before.
func Capture(vm *engine.VM, program []isa.Instruction, res *engine.Result, runErr error) (Record, error) {
	hash, err := isa.ProgramHash(program)
	if err != nil {
		return Record{}, fmt.Errorf("capture: %w", err)
	}
	run := Run{
		ProgramHash: hash,
		Program:     program,
		Yielded:     []engine.Scalar{},
	}

	var events []trace.Event
	switch {
	case runErr == nil && res != nil:
		run.ID = res.RunID
		run.AgentID = res.AgentID
		run.InstructionsExecuted = res.InstructionsExecuted
		run.ExecutionTimeMS = res.ExecutionTimeMS
		run.Halted = res.Halted
		run.Yielded = res.Yielded
		events = res.TraceEvents
	case runErr != nil:
		var re *engine.RuntimeError
		if !errors.As(runErr, &re) || re.RunID == "" {
			return Record{}, fmt.Errorf("capture: not a run fault: %w", runErr)
		}
		run.ID = re.RunID
		run.AgentID = vm.AgentID()
		run.InstructionsExecuted = re.Index
		run.ErrorCode = string(re.Code)
		run.ErrorMessage = re.Error()
		events = vm.TraceEvents(trace.Debug)
	default:
		return Record{}, errors.New("capture: no result and no error")
	}

	run.TraceDigest, err = engine.TraceDigest(events)
	if err != nil {
		return Record{}, fmt.Errorf("capture: %w", err)
	}
	return Record{Run: run, Events: events, Proposals: vm.Proposals()}, nil
}
