package rosetta

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/scrawl/internal/isa"
)

// DecompileOptions configures Decompile.
type DecompileOptions struct {
	// IncludeHex annotates each line with its opcode and mnemonic.
	IncludeHex bool
}

// bare lists the operations written without their domain prefix.
var bare = map[isa.Opcode]bool{isa.OpHalt: true, isa.OpNop: true, isa.OpYield: true}

// Decompile renders prog as pseudocode that compiles back to prog. It
// fails on instructions with no pseudocode form: malformed shapes and
// non-finite floats.
func Decompile(prog []isa.Instruction, opts DecompileOptions) (string, error) {
	lines := make([]string, len(prog))
	width := 0
	for i, in := range prog {
		line, err := decompileInstruction(in)
		if err != nil {
			return "", &CompileError{
				Code:    ErrCodeNotRepresentable,
				Message: fmt.Sprintf("instruction %d: %v", i, err),
			}
		}
		lines[i] = line
		width = max(width, len(line))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# rosetta\n# instructions: %d\n", len(prog))
	for i, line := range lines {
		b.WriteString(line)
		if opts.IncludeHex {
			op := prog[i].Opcode()
			fmt.Fprintf(&b, "%s  # %02X:%02X %s", strings.Repeat(" ", width-len(line)),
				uint8(op.Domain()), op.Operation(), op)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func decompileInstruction(in isa.Instruction) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	info, _ := isa.Lookup(in.Opcode())
	ops := in.Operands()

	name := info.Name
	if bare[info.Opcode] {
		name = strings.TrimPrefix(name, isa.DomainExecution.String()+".")
	}

	var b strings.Builder
	if info.Dest >= 0 {
		b.WriteString(isa.FormatOperand(ops[info.Dest]))
		b.WriteString(" = ")
	}
	b.WriteString(name)
	if len(info.Slots) == 0 {
		return b.String(), nil
	}

	var args []string
	positional := true
	for i, slot := range info.Slots {
		if i == info.Dest {
			continue
		}
		text, err := formatArg(slot, ops[i])
		if err != nil {
			return "", fmt.Errorf("%s %s: %w", info.Mnemonic, slot.Name, err)
		}
		positional = positional && writesPositional(slot, len(args))
		if !positional {
			text = slot.Name + "=" + text
		}
		args = append(args, text)
	}
	b.WriteString("(" + strings.Join(args, ", ") + ")")
	return b.String(), nil
}

// writesPositional reports whether the argument after n others in a slot
// of this kind reads well without its name.
func writesPositional(slot isa.Slot, n int) bool {
	switch slot.Kind {
	case isa.SlotBaselineReg, isa.SlotTensorReg:
		return true
	case isa.SlotScalarReg:
		return n == 0
	}
	return false
}

func formatArg(slot isa.Slot, op isa.Operand) (string, error) {
	switch v := op.(type) {
	case isa.Int:
		if slot.Kind == isa.SlotEnum {
			return slot.Enum[v], nil
		}
		if slot.Name == "seed" && v >= 0 {
			return fmt.Sprintf("0x%X", int64(v)), nil
		}
	case isa.Float:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return "", fmt.Errorf("%v has no literal form", float64(v))
		}
	case isa.Bytes:
		if printable(v) {
			return strconv.Quote(string(v)), nil
		}
	}
	return isa.FormatOperand(op), nil
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
