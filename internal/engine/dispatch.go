package engine

import (
	"github.com/roach88/scrawl/internal/isa"
)

// handler executes one decoded instruction. Operand kinds and register
// ranges are already checked, so handlers may type-assert freely.
type handler func(v *VM, in isa.Instruction, res *Result) error

// handlers maps every opcode except X_HALT, which the loop handles itself.
var handlers = map[isa.Opcode]handler{
	isa.OpYield: execYield,
	isa.OpNop:   execNop,
	isa.OpLoad:  execLoad,
	isa.OpAgent: execAgent,

	isa.OpDerive:      identityDerive,
	isa.OpVerify:      identityVerify,
	isa.OpFingerprint: identityFingerprint,
	isa.OpHandshake:   identityHandshake,

	isa.OpPropose: consensusPropose,
	isa.OpQuorum:  consensusQuorum,
	isa.OpVote:    consensusVote,
	isa.OpCommit:  consensusCommit,

	isa.OpNorm:    tensorNorm,
	isa.OpCompose: tensorCompose,
	isa.OpScale:   tensorScale,

	isa.OpRoute:      attentionRoute,
	isa.OpSelfAttend: attentionSelf,
}

func regAt(in isa.Instruction, i int) isa.Reg {
	return in.Operand(i).(isa.Reg)
}

func intAt(in isa.Instruction, i int) int64 {
	return int64(in.Operand(i).(isa.Int))
}

func floatAt(in isa.Instruction, i int) float64 {
	f, _ := isa.AsFloat(in.Operand(i))
	return f
}
