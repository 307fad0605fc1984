package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/roach88/scrawl/internal/consensus"
	"github.com/roach88/scrawl/internal/identity"
	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/tensor"
	"github.com/roach88/scrawl/internal/trace"
)

const domainEngine = "engine"

// VM is one SCRAWL machine: a register file, a proposal table and a trace
// log, plus the agent it currently acts as.
//
// INVARIANTS:
//   - Only the dispatch loop mutates registers, proposals and the log while
//     Execute runs
//   - Trace sequence numbers follow instruction order
//   - Proposals and trace events persist across Execute calls on one VM
//   - run is held for a whole Execute; mu guards state and is released
//     while a hook added with AddTraceHook runs
type VM struct {
	run sync.Mutex
	mu  sync.Mutex

	agentID   int64
	limits    Limits
	regs      *Registers
	proposals *consensus.Table
	log       *trace.Log
	cache     *identity.Cache
	clock     clock.Clock
	metrics   *Metrics
	runIDs    RunIDGenerator
}

// Option configures a VM.
type Option func(*VM)

// WithAgentID sets the initial acting agent. Default: 0.
func WithAgentID(id int64) Option {
	return func(v *VM) {
		v.agentID = id
	}
}

// WithLimits sets the register bank sizes. Default: DefaultLimits.
// Ignored when WithRegisters is also given.
func WithLimits(l Limits) Option {
	return func(v *VM) {
		v.limits = l
	}
}

// WithRegisters starts the VM from a copy of regs, limits included.
func WithRegisters(regs *Registers) Option {
	return func(v *VM) {
		v.regs = regs.Clone()
	}
}

// WithBaselineCache memoizes I_DERIVE through c. Caches may be shared
// between VMs.
func WithBaselineCache(c *identity.Cache) Option {
	return func(v *VM) {
		v.cache = c
	}
}

// WithClock sets the clock that times runs. Use clock.NewMock() for
// reproducible ExecutionTimeMS.
func WithClock(c clock.Clock) Option {
	return func(v *VM) {
		v.clock = c
	}
}

// WithMetrics records runs into m.
func WithMetrics(m *Metrics) Option {
	return func(v *VM) {
		v.metrics = m
	}
}

// WithTraceLog makes the VM append to log instead of a fresh one.
func WithTraceLog(log *trace.Log) Option {
	return func(v *VM) {
		v.log = log
	}
}

// WithRunIDGenerator sets how runs are named. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(v *VM) {
		v.runIDs = g
	}
}

// New creates a VM with empty registers, no proposals and an empty log.
func New(opts ...Option) *VM {
	v := &VM{
		limits: DefaultLimits,
		runIDs: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.regs == nil {
		v.regs = NewRegisters(v.limits)
	}
	v.limits = v.regs.Limits()
	if v.log == nil {
		v.log = trace.NewLog()
	}
	if v.clock == nil {
		v.clock = clock.New()
	}
	v.proposals = consensus.NewTable(v.log)
	return v
}

// Execute runs program to the first X_HALT or to its end.
//
// A fault aborts the run: Execute emits one ERROR trace event and returns a
// *RuntimeError and no result. Registers keep what earlier instructions
// wrote.
func (v *VM) Execute(program []isa.Instruction) (*Result, error) {
	v.run.Lock()
	defer v.run.Unlock()
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.execute(program)
}

// ExecuteFrom replaces the register file with a copy of regs, then runs
// program.
func (v *VM) ExecuteFrom(program []isa.Instruction, regs *Registers) (*Result, error) {
	v.run.Lock()
	defer v.run.Unlock()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.regs = regs.Clone()
	v.limits = v.regs.Limits()
	return v.execute(program)
}

func (v *VM) execute(program []isa.Instruction) (*Result, error) {
	res := &Result{
		RunID:   v.runIDs.Generate(),
		AgentID: v.agentID,
		Yielded: []Scalar{},
	}
	mark := v.log.Len()
	start := v.clock.Now()
	v.metrics.run()

	slog.Debug("run starting",
		"run_id", res.RunID,
		"instructions", len(program),
		"agent", v.agentID,
	)

	for i, in := range program {
		if err := v.decode(in); err != nil {
			return nil, v.fault(res, i, in, err)
		}
		v.metrics.instruction(in.Mnemonic())
		res.InstructionsExecuted++

		if in.Opcode() == isa.OpHalt {
			v.log.Emit(trace.Debug, domainExec, "halt", fmt.Sprintf("halt at instruction %d", i))
			res.Halted = true
			break
		}
		if err := handlers[in.Opcode()](v, in, res); err != nil {
			return nil, v.fault(res, i, in, err)
		}
	}

	elapsed := v.clock.Since(start)
	res.ExecutionTimeMS = float64(elapsed.Nanoseconds()) / 1e6
	res.TraceEvents = v.log.Since(mark)
	v.metrics.observe(elapsed.Seconds())

	slog.Debug("run complete",
		"run_id", res.RunID,
		"executed", res.InstructionsExecuted,
		"yielded", len(res.Yielded),
		"halted", res.Halted,
	)
	return res, nil
}

// decode checks operand shape and register ranges before anything runs.
func (v *VM) decode(in isa.Instruction) error {
	if err := in.Validate(); err != nil {
		var shape *isa.ShapeError
		if errors.As(err, &shape) {
			return NewMalformedError(shape.Operand, shape.Message)
		}
		return NewMalformedError(-1, err.Error())
	}
	for j, op := range in.Operands() {
		reg, ok := op.(isa.Reg)
		if !ok {
			continue
		}
		if err := v.regs.Check(reg); err != nil {
			var re *RuntimeError
			errors.As(err, &re)
			re.Operand = j
			return re
		}
	}
	return nil
}

func (v *VM) fault(res *Result, index int, in isa.Instruction, err error) error {
	var re *RuntimeError
	if !errors.As(err, &re) {
		re = NewMalformedError(-1, err.Error())
	}
	re.at(index, in.Mnemonic())
	re.RunID = res.RunID
	v.metrics.fault(re.Code)
	v.log.Emit(trace.Error, domainEngine, "fault", re.Error())

	slog.Error("run faulted",
		"run_id", res.RunID,
		"code", re.Code,
		"instruction", index,
		"opcode", re.Mnemonic,
		"operand", re.Operand,
		"error", re.Message,
	)
	return re
}

// AgentID returns the acting agent.
func (v *VM) AgentID() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.agentID
}

// SetAgentID changes the acting agent for the next run.
func (v *VM) SetAgentID(id int64) error {
	if id < 0 {
		return NewInvalidParameterError(-1, fmt.Errorf("negative agent id %d", id))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.agentID = id
	return nil
}

// GetReg reads scalar register i. Unset registers read as integer 0.
func (v *VM) GetReg(i uint16) Scalar {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs.Scalar(i)
}

// SetReg writes scalar register i.
func (v *VM) SetReg(i uint16, s Scalar) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs.SetScalar(i, s)
}

// Baseline reads baseline register i. Unset registers hold the zero
// baseline.
func (v *VM) Baseline(i uint16) identity.Baseline {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs.Baseline(i)
}

// SetBaseline writes baseline register i.
func (v *VM) SetBaseline(i uint16, b identity.Baseline) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs.SetBaseline(i, b)
}

// TReg returns a copy of tensor register i.
func (v *VM) TReg(i uint16) tensor.Tensor {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs.Tensor(i)
}

// SetTReg stores a copy of t in tensor register i.
func (v *VM) SetTReg(i uint16, t tensor.Tensor) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs.SetTensor(i, t)
}

// Registers returns a copy of the register file.
func (v *VM) Registers() *Registers {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs.Clone()
}

// AddTraceHook registers h on the VM's log. Hooks run synchronously inside
// Execute, on the calling goroutine, in registration order; a panicking
// hook aborts the run and propagates to the caller.
//
// A hook may call any accessor, including the setters and AddTraceHook:
// the state lock is released for the duration of the hook, so the call
// sees every write made before the event was emitted. A hook
// must not call Execute or ExecuteFrom on the same VM; that blocks forever.
// Hooks added to a shared log directly (WithTraceLog) get no such release.
func (v *VM) AddTraceHook(h trace.Hook) {
	if h == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.log.AddHook(func(e trace.Event) {
		// Emit only happens under mu, inside execute.
		v.mu.Unlock()
		defer v.mu.Lock()
		h(e)
	})
}

// TraceEvents returns every event at or above min, across all runs.
func (v *VM) TraceEvents(min trace.Severity) []trace.Event {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.log.Events(min)
}

// Proposals returns every proposal in creation order.
func (v *VM) Proposals() []consensus.Proposal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.proposals.All()
}

// Proposal returns a copy of proposal id.
func (v *VM) Proposal(id int64) (consensus.Proposal, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.proposals.Get(id)
}
