package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/scrawl/internal/consensus"
	"github.com/roach88/scrawl/internal/isa"
)

func consensusPropose(v *VM, in isa.Instruction, _ *Result) error {
	id := intAt(in, 0)

	var payload consensus.Payload
	switch op := in.Operand(1).(type) {
	case isa.Reg:
		payload = consensus.ScalarPayload(v.regs.Scalar(op.Index).Word())
	case isa.Bytes:
		payload = consensus.BytesPayload(op)
	}

	agents := in.Operand(2).(isa.Agents)
	eligible := make([]int64, len(agents))
	for i, a := range agents {
		eligible[i] = int64(a)
	}

	err := v.proposals.Propose(id, v.agentID, payload, eligible)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, consensus.ErrDuplicateProposal):
		return NewDuplicateProposalError(id, err)
	default:
		return NewInvalidParameterError(2, err)
	}
}

func consensusQuorum(v *VM, in isa.Instruction, _ *Result) error {
	if err := v.proposals.SetQuorum(intAt(in, 0), floatAt(in, 1)); err != nil {
		return NewInvalidParameterError(1, err)
	}
	return nil
}

func consensusVote(v *VM, in isa.Instruction, _ *Result) error {
	agent := intAt(in, 1)
	if agent < 0 {
		return NewInvalidParameterError(1, fmt.Errorf("%w: negative agent id %d", consensus.ErrInvalidParameter, agent))
	}
	vote := consensus.Approve
	if in.Operand(2).(isa.Int) == isa.VoteReject {
		vote = consensus.Reject
	}
	v.proposals.Vote(intAt(in, 0), agent, vote)
	return nil
}

func consensusCommit(v *VM, in isa.Instruction, _ *Result) error {
	result := v.proposals.Commit(intAt(in, 0))
	return v.regs.SetScalar(regAt(in, 1).Index, IntScalar(result))
}
