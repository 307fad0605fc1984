package isa

import (
	"fmt"
	"strings"
)

// Domain is the high byte of an opcode and names the module that owns it.
type Domain uint8

const (
	DomainExecution Domain = 0x00
	DomainIdentity  Domain = 0x01
	DomainConsensus Domain = 0x02
	DomainTensor    Domain = 0x03
	DomainAttention Domain = 0x04
)

func (d Domain) String() string {
	switch d {
	case DomainExecution:
		return "exec"
	case DomainIdentity:
		return "identity"
	case DomainConsensus:
		return "consensus"
	case DomainTensor:
		return "tensor"
	case DomainAttention:
		return "attention"
	default:
		return fmt.Sprintf("domain(%#02x)", uint8(d))
	}
}

// Opcode is a (domain, operation) pair packed as domain<<8 | operation.
type Opcode uint16

// NewOpcode packs a domain and operation byte.
func NewOpcode(d Domain, op uint8) Opcode {
	return Opcode(uint16(d)<<8 | uint16(op))
}

// Domain returns the owning module.
func (o Opcode) Domain() Domain { return Domain(o >> 8) }

// Operation returns the operation byte within the domain.
func (o Opcode) Operation() uint8 { return uint8(o) }

// String returns the mnemonic, or a hex form for unknown opcodes.
func (o Opcode) String() string {
	if info, ok := table[o]; ok {
		return info.Mnemonic
	}
	return fmt.Sprintf("OP_%02X_%02X", uint8(o.Domain()), o.Operation())
}

const (
	OpHalt  = Opcode(uint16(DomainExecution)<<8 | 0x00)
	OpYield = Opcode(uint16(DomainExecution)<<8 | 0x01)
	OpNop   = Opcode(uint16(DomainExecution)<<8 | 0x02)
	OpLoad  = Opcode(uint16(DomainExecution)<<8 | 0x03)
	OpAgent = Opcode(uint16(DomainExecution)<<8 | 0x04)

	OpDerive      = Opcode(uint16(DomainIdentity)<<8 | 0x01)
	OpVerify      = Opcode(uint16(DomainIdentity)<<8 | 0x02)
	OpFingerprint = Opcode(uint16(DomainIdentity)<<8 | 0x03)
	OpHandshake   = Opcode(uint16(DomainIdentity)<<8 | 0x04)

	OpPropose = Opcode(uint16(DomainConsensus)<<8 | 0x01)
	OpQuorum  = Opcode(uint16(DomainConsensus)<<8 | 0x02)
	OpVote    = Opcode(uint16(DomainConsensus)<<8 | 0x03)
	OpCommit  = Opcode(uint16(DomainConsensus)<<8 | 0x04)

	OpNorm    = Opcode(uint16(DomainTensor)<<8 | 0x01)
	OpCompose = Opcode(uint16(DomainTensor)<<8 | 0x02)
	OpScale   = Opcode(uint16(DomainTensor)<<8 | 0x03)

	OpRoute      = Opcode(uint16(DomainAttention)<<8 | 0x01)
	OpSelfAttend = Opcode(uint16(DomainAttention)<<8 | 0x02)
)

// SlotKind describes what an operand position accepts.
type SlotKind uint8

const (
	SlotInt         SlotKind = iota + 1 // Int
	SlotFloat                           // Float or Int (widened)
	SlotEnum                            // Int restricted to len(Enum) values
	SlotAgents                          // Agents
	SlotPayload                         // scalar Reg or Bytes
	SlotScalarReg                       // Reg in BankScalar
	SlotBaselineReg                     // Reg in BankBaseline
	SlotTensorReg                       // Reg in BankTensor
)

func (k SlotKind) String() string {
	switch k {
	case SlotInt:
		return "int"
	case SlotFloat:
		return "float"
	case SlotEnum:
		return "enum"
	case SlotAgents:
		return "agent list"
	case SlotPayload:
		return "scalar register or bytes"
	case SlotScalarReg:
		return "scalar register"
	case SlotBaselineReg:
		return "baseline register"
	case SlotTensorReg:
		return "tensor register"
	default:
		return fmt.Sprintf("slot(%d)", uint8(k))
	}
}

// Slot is one operand position of an opcode.
type Slot struct {
	Name string
	Kind SlotKind
	Enum []string // value names for SlotEnum, indexed by value
}

// Accepts reports whether op fits the slot.
func (s Slot) Accepts(op Operand) bool {
	switch s.Kind {
	case SlotInt:
		_, ok := op.(Int)
		return ok
	case SlotFloat:
		_, ok := AsFloat(op)
		return ok
	case SlotEnum:
		v, ok := op.(Int)
		return ok && v >= 0 && int(v) < len(s.Enum)
	case SlotAgents:
		_, ok := op.(Agents)
		return ok
	case SlotPayload:
		switch v := op.(type) {
		case Bytes:
			return true
		case Reg:
			return v.Bank == BankScalar
		}
		return false
	case SlotScalarReg:
		r, ok := op.(Reg)
		return ok && r.Bank == BankScalar
	case SlotBaselineReg:
		r, ok := op.(Reg)
		return ok && r.Bank == BankBaseline
	case SlotTensorReg:
		r, ok := op.(Reg)
		return ok && r.Bank == BankTensor
	}
	return false
}

// EnumValue resolves an enum name to its integer value.
func (s Slot) EnumValue(name string) (int, bool) {
	for i, n := range s.Enum {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return 0, false
}

// OpInfo describes one opcode: its mnemonic, its pseudocode name, which slot
// an assignment writes (Dest, -1 for none) and the operand slots in order.
type OpInfo struct {
	Opcode   Opcode
	Mnemonic string
	Name     string
	Dest     int
	Slots    []Slot
}

// Enum value tables shared by the compiler and the engine.
var (
	VoteValues   = []string{"approve", "reject"}
	NormModes    = []string{"l1", "l2", "max"}
	ComposeModes = []string{"add", "mul", "dot"}
	VoteApprove  = Int(0)
	VoteReject   = Int(1)
	NormL1       = Int(0)
	NormL2       = Int(1)
	NormMax      = Int(2)
	ComposeAdd   = Int(0)
	ComposeMul   = Int(1)
	ComposeDot   = Int(2)
)

var catalog = []OpInfo{
	{OpHalt, "X_HALT", "exec.halt", -1, nil},
	{OpYield, "X_YIELD", "exec.yield", -1, []Slot{{"reg", SlotScalarReg, nil}}},
	{OpNop, "X_NOP", "exec.nop", -1, nil},
	{OpLoad, "X_LOAD", "exec.load", 0, []Slot{{"dst", SlotScalarReg, nil}, {"value", SlotFloat, nil}}},
	{OpAgent, "X_AGENT", "exec.agent", -1, []Slot{{"id", SlotInt, nil}}},

	{OpDerive, "I_DERIVE", "identity.derive", 0, []Slot{{"dst", SlotBaselineReg, nil}, {"seed", SlotInt, nil}, {"depth", SlotInt, nil}}},
	{OpVerify, "I_VERIFY", "identity.verify", 0, []Slot{{"dst", SlotScalarReg, nil}, {"baseline", SlotBaselineReg, nil}}},
	{OpFingerprint, "I_FINGERPRINT", "identity.fingerprint", 0, []Slot{{"dst", SlotScalarReg, nil}, {"baseline", SlotBaselineReg, nil}}},
	{OpHandshake, "I_HANDSHAKE", "identity.handshake", 0, []Slot{{"dst", SlotScalarReg, nil}, {"baseline", SlotBaselineReg, nil}, {"expected", SlotScalarReg, nil}}},

	{OpPropose, "C_PROPOSE", "consensus.propose", -1, []Slot{{"id", SlotInt, nil}, {"payload", SlotPayload, nil}, {"agents", SlotAgents, nil}}},
	{OpQuorum, "C_QUORUM", "consensus.quorum", -1, []Slot{{"id", SlotInt, nil}, {"threshold", SlotFloat, nil}}},
	{OpVote, "C_VOTE", "consensus.vote", -1, []Slot{{"id", SlotInt, nil}, {"agent", SlotInt, nil}, {"vote", SlotEnum, VoteValues}}},
	{OpCommit, "C_COMMIT", "consensus.commit", 1, []Slot{{"id", SlotInt, nil}, {"dst", SlotScalarReg, nil}}},

	{OpNorm, "T_NORM", "tensor.norm", 0, []Slot{{"dst", SlotTensorReg, nil}, {"src", SlotTensorReg, nil}, {"mode", SlotEnum, NormModes}}},
	{OpCompose, "T_COMPOSE", "tensor.compose", 0, []Slot{{"dst", SlotTensorReg, nil}, {"a", SlotTensorReg, nil}, {"b", SlotTensorReg, nil}, {"mode", SlotEnum, ComposeModes}}},
	{OpScale, "T_SCALE", "tensor.scale", 0, []Slot{{"dst", SlotTensorReg, nil}, {"src", SlotTensorReg, nil}, {"factor", SlotFloat, nil}}},

	{OpRoute, "A_ROUTE", "attention.route", 3, []Slot{{"q", SlotTensorReg, nil}, {"k", SlotTensorReg, nil}, {"v", SlotTensorReg, nil}, {"dst", SlotTensorReg, nil}}},
	{OpSelfAttend, "A_SELF", "attention.self", 0, []Slot{{"dst", SlotTensorReg, nil}, {"src", SlotTensorReg, nil}}},
}

var (
	table      = make(map[Opcode]OpInfo, len(catalog))
	byMnemonic = make(map[string]OpInfo, len(catalog))
	byName     = make(map[string]OpInfo, len(catalog))
)

func init() {
	for _, info := range catalog {
		table[info.Opcode] = info
		byMnemonic[info.Mnemonic] = info
		byName[info.Name] = info
	}
}

// Lookup returns the table entry for an opcode.
func Lookup(o Opcode) (OpInfo, bool) {
	info, ok := table[o]
	return info, ok
}

// LookupMnemonic finds an opcode by mnemonic ("C_VOTE").
func LookupMnemonic(m string) (OpInfo, bool) {
	info, ok := byMnemonic[strings.ToUpper(m)]
	return info, ok
}

// LookupName finds an opcode by pseudocode name ("consensus.vote").
func LookupName(name string) (OpInfo, bool) {
	info, ok := byName[strings.ToLower(name)]
	return info, ok
}

// Catalog returns every opcode in declaration order.
func Catalog() []OpInfo {
	out := make([]OpInfo, len(catalog))
	copy(out, catalog)
	return out
}
