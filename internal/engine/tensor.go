package engine

import (
	"fmt"

	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/tensor"
	"github.com/roach88/scrawl/internal/trace"
)

const (
	domainTensor    = "tensor"
	domainAttention = "attention"
)

func tensorNorm(v *VM, in isa.Instruction, _ *Result) error {
	dst, src := regAt(in, 0), regAt(in, 1)
	mode := tensor.NormMode(intAt(in, 2))
	out, err := tensor.Normalize(v.regs.Tensor(src.Index), mode)
	if err != nil {
		return NewInvalidParameterError(1, err)
	}
	v.log.Emit(trace.Debug, domainTensor, "norm", fmt.Sprintf("%s = %s(%s), shape %v", dst, mode, src, out.Shape))
	return v.regs.SetTensor(dst.Index, out)
}

func tensorCompose(v *VM, in isa.Instruction, _ *Result) error {
	dst, a, b := regAt(in, 0), regAt(in, 1), regAt(in, 2)
	mode := tensor.ComposeMode(intAt(in, 3))
	out, err := tensor.Compose(v.regs.Tensor(a.Index), v.regs.Tensor(b.Index), mode)
	if err != nil {
		return NewInvalidParameterError(2, err)
	}
	v.log.Emit(trace.Debug, domainTensor, "compose", fmt.Sprintf("%s = %s(%s, %s), shape %v", dst, mode, a, b, out.Shape))
	return v.regs.SetTensor(dst.Index, out)
}

func tensorScale(v *VM, in isa.Instruction, _ *Result) error {
	dst, src := regAt(in, 0), regAt(in, 1)
	factor := floatAt(in, 2)
	t := v.regs.Tensor(src.Index)
	t.ScaleInPlace(factor)
	v.log.Emit(trace.Debug, domainTensor, "scale", fmt.Sprintf("%s = %s * %g", dst, src, factor))
	return v.regs.SetTensor(dst.Index, t)
}

func attentionRoute(v *VM, in isa.Instruction, _ *Result) error {
	q, k, val, dst := regAt(in, 0), regAt(in, 1), regAt(in, 2), regAt(in, 3)
	out, err := tensor.Attention(v.regs.Tensor(q.Index), v.regs.Tensor(k.Index), v.regs.Tensor(val.Index))
	if err != nil {
		return NewInvalidParameterError(-1, err)
	}
	v.log.Emit(trace.Debug, domainAttention, "route", fmt.Sprintf("%s = route(%s, %s, %s), shape %v", dst, q, k, val, out.Shape))
	return v.regs.SetTensor(dst.Index, out)
}

func attentionSelf(v *VM, in isa.Instruction, _ *Result) error {
	dst, src := regAt(in, 0), regAt(in, 1)
	out, err := tensor.SelfAttention(v.regs.Tensor(src.Index))
	if err != nil {
		return NewInvalidParameterError(1, err)
	}
	v.log.Emit(trace.Debug, domainAttention, "self", fmt.Sprintf("%s = self(%s), shape %v", dst, src, out.Shape))
	return v.regs.SetTensor(dst.Index, out)
}
