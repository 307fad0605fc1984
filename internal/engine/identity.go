package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/scrawl/internal/identity"
	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/trace"
)

const domainIdentity = "identity"

func (v *VM) derive(seed int64, depth int) (identity.Baseline, error) {
	if v.cache != nil {
		return v.cache.Derive(seed, depth)
	}
	return identity.Derive(seed, depth)
}

func identityDerive(v *VM, in isa.Instruction, _ *Result) error {
	dst := regAt(in, 0)
	seed := intAt(in, 1)
	depth := intAt(in, 2)
	if depth < 1 || depth > identity.MaxDepth {
		return NewInvalidParameterError(2, fmt.Errorf("%w: depth %d outside [1, %d]",
			identity.ErrInvalidParameter, depth, identity.MaxDepth))
	}
	b, err := v.derive(seed, int(depth))
	if err != nil {
		operand := -1
		if errors.Is(err, identity.ErrInvalidParameter) {
			operand = 2
		}
		return NewInvalidParameterError(operand, err)
	}
	v.log.Emit(trace.Info, domainIdentity, "derive", fmt.Sprintf("%s derived: seed %#x, depth %d", dst, seed, depth))
	return v.regs.SetBaseline(dst.Index, b)
}

func identityVerify(v *VM, in isa.Instruction, _ *Result) error {
	dst, src := regAt(in, 0), regAt(in, 1)
	b := v.regs.Baseline(src.Index)
	ok := identity.Verify(b)
	switch {
	case ok:
		v.log.Emit(trace.Info, domainIdentity, "verify", fmt.Sprintf("%s verified: %d links", src, b.Len()))
	case b.IsZero():
		v.log.Emit(trace.Warn, domainIdentity, "verify_failed", fmt.Sprintf("%s holds no baseline", src))
	default:
		v.log.Emit(trace.Warn, domainIdentity, "verify_failed", fmt.Sprintf(
			"%s chain does not verify (seed %#x, depth %d)", src, b.Seed(), b.Depth()))
	}
	return v.regs.SetScalar(dst.Index, boolScalar(ok))
}

func identityFingerprint(v *VM, in isa.Instruction, _ *Result) error {
	dst, src := regAt(in, 0), regAt(in, 1)
	fp := v.regs.Baseline(src.Index).Fingerprint()
	v.log.Emit(trace.Debug, domainIdentity, "fingerprint", fmt.Sprintf("%s fingerprint %s", src, fp))
	return v.regs.SetScalar(dst.Index, IntScalar(fp.Word()))
}

func identityHandshake(v *VM, in isa.Instruction, _ *Result) error {
	dst, src, expected := regAt(in, 0), regAt(in, 1), regAt(in, 2)
	mine := v.regs.Baseline(src.Index).Fingerprint().Word()
	theirs := v.regs.Scalar(expected.Index).Word()
	ok := mine == theirs
	if ok {
		v.log.Emit(trace.Info, domainIdentity, "handshake", fmt.Sprintf("%s fingerprint matches %s", src, expected))
	} else {
		v.log.Emit(trace.Warn, domainIdentity, "handshake_mismatch", fmt.Sprintf(
			"%s fingerprint %016x does not match %s = %016x", src, uint64(mine), expected, uint64(theirs)))
	}
	return v.regs.SetScalar(dst.Index, boolScalar(ok))
}

func boolScalar(ok bool) Scalar {
	if ok {
		return IntScalar(1)
	}
	return IntScalar(0)
}
