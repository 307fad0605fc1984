package isa

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the hashed
// form to change without colliding with old values.
const (
	DomainProgram     = "scrawl/program/v1"
	DomainInstruction = "scrawl/instruction/v1"
)

// HashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ProgramHash returns the hex content hash of a program. Structurally equal
// programs hash equal. Non-finite float operands cannot be hashed.
func ProgramHash(prog []Instruction) (string, error) {
	canonical, err := MarshalCanonical(prog)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	sum := HashWithDomain(DomainProgram, canonical)
	return hex.EncodeToString(sum[:]), nil
}

// InstructionHash returns the hex content hash of one instruction.
func InstructionHash(in Instruction) (string, error) {
	canonical, err := MarshalCanonical(in)
	if err != nil {
		return "", fmt.Errorf("InstructionHash: failed to marshal: %w", err)
	}
	sum := HashWithDomain(DomainInstruction, canonical)
	return hex.EncodeToString(sum[:]), nil
}

// MustProgramHash is like ProgramHash but panics on error.
// Use only in tests or when the program is known to be finite.
func MustProgramHash(prog []Instruction) string {
	h, err := ProgramHash(prog)
	if err != nil {
		panic(err)
	}
	return h
}
