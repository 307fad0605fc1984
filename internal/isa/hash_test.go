package isa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heartbeat() []Instruction {
	return []Instruction{
		MustNew(OpDerive, CR(0), Int(0xCAFE), Int(16)),
		MustNew(OpVerify, R(1), CR(0)),
		MustNew(OpFingerprint, R(2), CR(0)),
		MustNew(OpYield, R(1)),
		MustNew(OpHalt),
	}
}

func TestProgramHashDeterminism(t *testing.T) {
	h1, err := ProgramHash(heartbeat())
	require.NoError(t, err)
	h2, err := ProgramHash(heartbeat())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "ProgramHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestProgramHashChangesWithProgram(t *testing.T) {
	base := heartbeat()
	changedSeed := heartbeat()
	changedSeed[0] = MustNew(OpDerive, CR(0), Int(0xBEEF), Int(16))
	reordered := heartbeat()
	reordered[1], reordered[2] = reordered[2], reordered[1]

	h := MustProgramHash(base)
	assert.NotEqual(t, h, MustProgramHash(changedSeed), "different operand")
	assert.NotEqual(t, h, MustProgramHash(reordered), "different order")
	assert.NotEqual(t, h, MustProgramHash(base[:4]), "different length")
}

func TestProgramHashIntVersusFloat(t *testing.T) {
	a := []Instruction{MustNew(OpLoad, R(0), Int(1))}
	b := []Instruction{MustNew(OpLoad, R(0), Float(1))}
	assert.NotEqual(t, MustProgramHash(a), MustProgramHash(b))
}

func TestProgramHashRejectsNaN(t *testing.T) {
	_, err := ProgramHash([]Instruction{MustNew(OpLoad, R(0), Float(math.NaN()))})
	assert.Error(t, err)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, HashWithDomain(DomainProgram, data), HashWithDomain(DomainInstruction, data))

	// "ab"+0x00+"c" differs from "a"+0x00+"bc"
	assert.NotEqual(t, HashWithDomain("ab", []byte("c")), HashWithDomain("a", []byte("bc")))
}

func TestInstructionHash(t *testing.T) {
	in := MustNew(OpYield, R(1))
	h1, err := InstructionHash(in)
	require.NoError(t, err)
	h2, err := InstructionHash(MustNew(OpYield, R(2)))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
