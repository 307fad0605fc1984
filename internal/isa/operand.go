package isa

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Operand is a sealed interface over the operand kinds an instruction may
// carry. Only Int, Float, Bytes, Agents and Reg implement it.
type Operand interface {
	operand() // Sealed - only these types implement it
	Kind() Kind
}

// Kind identifies the concrete type of an Operand.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindBytes
	KindAgents
	KindReg
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindAgents:
		return "agents"
	case KindReg:
		return "register"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Int is an integer immediate.
type Int int64

func (Int) operand() {}
func (Int) Kind() Kind { return KindInt }

// Float is a floating-point immediate.
type Float float64

func (Float) operand() {}
func (Float) Kind() Kind { return KindFloat }

// Bytes is an opaque byte-string immediate.
type Bytes []byte

func (Bytes) operand() {}
func (Bytes) Kind() Kind { return KindBytes }

// AgentID identifies one participant in a consensus round.
type AgentID int64

// Agents is an ordered list of agent identifiers.
type Agents []AgentID

func (Agents) operand() {}
func (Agents) Kind() Kind { return KindAgents }

// Bank selects one of the three register banks.
type Bank uint8

const (
	BankScalar Bank = iota + 1
	BankBaseline
	BankTensor
)

// Prefix returns the pseudocode prefix for the bank ("R", "CR", "TR").
func (b Bank) Prefix() string {
	switch b {
	case BankScalar:
		return "R"
	case BankBaseline:
		return "CR"
	case BankTensor:
		return "TR"
	default:
		return "?R"
	}
}

func (b Bank) String() string {
	switch b {
	case BankScalar:
		return "scalar"
	case BankBaseline:
		return "baseline"
	case BankTensor:
		return "tensor"
	default:
		return fmt.Sprintf("bank(%d)", uint8(b))
	}
}

// Reg addresses one register in one bank.
type Reg struct {
	Bank  Bank
	Index uint16
}

func (Reg) operand() {}
func (Reg) Kind() Kind { return KindReg }

// R, CR and TR build register operands for the scalar, baseline and tensor
// banks respectively.
func R(i uint16) Reg  { return Reg{Bank: BankScalar, Index: i} }
func CR(i uint16) Reg { return Reg{Bank: BankBaseline, Index: i} }
func TR(i uint16) Reg { return Reg{Bank: BankTensor, Index: i} }

func (r Reg) String() string {
	return r.Bank.Prefix() + strconv.Itoa(int(r.Index))
}

// ParseReg parses "R3", "CR0" or "TR12". The second result is false when s is
// not a register reference.
func ParseReg(s string) (Reg, bool) {
	var bank Bank
	var rest string
	switch {
	case strings.HasPrefix(s, "CR"):
		bank, rest = BankBaseline, s[2:]
	case strings.HasPrefix(s, "TR"):
		bank, rest = BankTensor, s[2:]
	case strings.HasPrefix(s, "R"):
		bank, rest = BankScalar, s[1:]
	default:
		return Reg{}, false
	}
	if rest == "" {
		return Reg{}, false
	}
	n, err := strconv.ParseUint(rest, 10, 16)
	if err != nil {
		return Reg{}, false
	}
	return Reg{Bank: bank, Index: uint16(n)}, true
}

// FormatOperand renders an operand the way the pseudocode compiler reads it.
func FormatOperand(op Operand) string {
	switch v := op.(type) {
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case Float:
		return formatFloat(float64(v))
	case Bytes:
		return `x"` + hex.EncodeToString(v) + `"`
	case Agents:
		parts := make([]string, len(v))
		for i, a := range v {
			parts[i] = strconv.FormatInt(int64(a), 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Reg:
		return v.String()
	default:
		return fmt.Sprintf("<%T>", op)
	}
}

// formatFloat always renders a decimal point or exponent so the value reads
// back as a Float rather than an Int.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// AsFloat widens a numeric operand to float64.
func AsFloat(op Operand) (float64, bool) {
	switch v := op.(type) {
	case Float:
		return float64(v), true
	case Int:
		return float64(v), true
	default:
		return 0, false
	}
}

func cloneOperand(op Operand) Operand {
	switch v := op.(type) {
	case Bytes:
		return append(Bytes(nil), v...)
	case Agents:
		return append(Agents(nil), v...)
	default:
		return op
	}
}
