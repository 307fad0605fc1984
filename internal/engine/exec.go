package engine

import (
	"fmt"

	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/trace"
)

const domainExec = "exec"

func execYield(v *VM, in isa.Instruction, res *Result) error {
	r := regAt(in, 0)
	s := v.regs.Scalar(r.Index)
	res.Yielded = append(res.Yielded, s)
	v.metrics.yield()
	v.log.Emit(trace.Debug, domainExec, "yield", fmt.Sprintf("yield %s = %s", r, s))
	return nil
}

func execNop(*VM, isa.Instruction, *Result) error { return nil }

func execLoad(v *VM, in isa.Instruction, _ *Result) error {
	r := regAt(in, 0)
	var s Scalar
	switch op := in.Operand(1).(type) {
	case isa.Int:
		s = IntScalar(int64(op))
	case isa.Float:
		s = FloatScalar(float64(op))
	}
	v.log.Emit(trace.Debug, domainExec, "load", fmt.Sprintf("%s = %s", r, s))
	return v.regs.SetScalar(r.Index, s)
}

func execAgent(v *VM, in isa.Instruction, _ *Result) error {
	id := intAt(in, 0)
	if id < 0 {
		return NewInvalidParameterError(0, fmt.Errorf("negative agent id %d", id))
	}
	prev := v.agentID
	v.agentID = id
	v.log.Emit(trace.Info, domainExec, "agent", fmt.Sprintf("acting agent %d -> %d", prev, id))
	return nil
}
