package isa

import (
	"fmt"
	"math"
	"strings"
)

// Instruction is an opcode with its operands. The zero value is X_HALT with
// no operands. Instructions are immutable: Operands returns a copy.
type Instruction struct {
	opcode   Opcode
	operands []Operand
}

// ShapeError reports an instruction whose operands do not fit its opcode.
// Operand is -1 when the problem is the operand count or the opcode itself.
type ShapeError struct {
	Mnemonic string
	Operand  int
	Message  string
}

func (e *ShapeError) Error() string {
	if e.Operand < 0 {
		return fmt.Sprintf("%s: %s", e.Mnemonic, e.Message)
	}
	return fmt.Sprintf("%s operand %d: %s", e.Mnemonic, e.Operand, e.Message)
}

// New validates operands against the opcode table and builds an Instruction.
func New(op Opcode, operands ...Operand) (Instruction, error) {
	info, ok := Lookup(op)
	if !ok {
		return Instruction{}, &ShapeError{Mnemonic: op.String(), Operand: -1, Message: "unknown opcode"}
	}
	if err := checkShape(info, operands); err != nil {
		return Instruction{}, err
	}
	ops := make([]Operand, len(operands))
	for i, o := range operands {
		ops[i] = cloneOperand(o)
	}
	return Instruction{opcode: op, operands: ops}, nil
}

// MustNew is like New but panics on a shape error.
// Use only in tests or for literal programs.
func MustNew(op Opcode, operands ...Operand) Instruction {
	inst, err := New(op, operands...)
	if err != nil {
		panic(err)
	}
	return inst
}

// Unchecked builds an Instruction without consulting the opcode table.
// Decoders use it so that malformed input reaches the engine, which reports
// it as a fault at the offending instruction.
func Unchecked(op Opcode, operands ...Operand) Instruction {
	ops := make([]Operand, len(operands))
	for i, o := range operands {
		ops[i] = cloneOperand(o)
	}
	return Instruction{opcode: op, operands: ops}
}

func checkShape(info OpInfo, operands []Operand) error {
	if len(operands) != len(info.Slots) {
		return &ShapeError{
			Mnemonic: info.Mnemonic,
			Operand:  -1,
			Message:  fmt.Sprintf("expected %d operands, got %d", len(info.Slots), len(operands)),
		}
	}
	for i, slot := range info.Slots {
		op := operands[i]
		if op == nil {
			return &ShapeError{Mnemonic: info.Mnemonic, Operand: i, Message: "missing " + slot.Name}
		}
		if !slot.Accepts(op) {
			return &ShapeError{
				Mnemonic: info.Mnemonic,
				Operand:  i,
				Message:  fmt.Sprintf("%s: expected %s, got %s %s", slot.Name, slot.Kind, op.Kind(), FormatOperand(op)),
			}
		}
	}
	return nil
}

// Validate re-checks an instruction against the opcode table. Instructions
// built with New always pass; Unchecked ones may not.
func (in Instruction) Validate() error {
	info, ok := Lookup(in.opcode)
	if !ok {
		return &ShapeError{Mnemonic: in.opcode.String(), Operand: -1, Message: "unknown opcode"}
	}
	return checkShape(info, in.operands)
}

func (in Instruction) Opcode() Opcode { return in.opcode }

// Mnemonic is shorthand for in.Opcode().String().
func (in Instruction) Mnemonic() string { return in.opcode.String() }

// NumOperands returns the operand count without copying.
func (in Instruction) NumOperands() int { return len(in.operands) }

// Operand returns operand i, or nil when i is out of range.
func (in Instruction) Operand(i int) Operand {
	if i < 0 || i >= len(in.operands) {
		return nil
	}
	return cloneOperand(in.operands[i])
}

// Operands returns a copy of the operand list.
func (in Instruction) Operands() []Operand {
	out := make([]Operand, len(in.operands))
	for i, o := range in.operands {
		out[i] = cloneOperand(o)
	}
	return out
}

// Equal reports structural equality. Floats compare by bit pattern so a
// decoded NaN equals the NaN that was encoded.
func (in Instruction) Equal(other Instruction) bool {
	if in.opcode != other.opcode || len(in.operands) != len(other.operands) {
		return false
	}
	for i := range in.operands {
		if !operandEqual(in.operands[i], other.operands[i]) {
			return false
		}
	}
	return true
}

func operandEqual(a, b Operand) bool {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && math.Float64bits(float64(x)) == math.Float64bits(float64(y))
	case Bytes:
		y, ok := b.(Bytes)
		return ok && string(x) == string(y)
	case Agents:
		y, ok := b.(Agents)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case Reg:
		y, ok := b.(Reg)
		return ok && x == y
	case nil:
		return b == nil
	}
	return false
}

// String renders the instruction in assembly form: "C_VOTE 1, 0, 0".
func (in Instruction) String() string {
	if len(in.operands) == 0 {
		return in.Mnemonic()
	}
	parts := make([]string, len(in.operands))
	for i, o := range in.operands {
		if o == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = FormatOperand(o)
	}
	return in.Mnemonic() + " " + strings.Join(parts, ", ")
}

// ProgramEqual compares two programs instruction by instruction.
func ProgramEqual(a, b []Instruction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
