package rosetta

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/scrawl/internal/isa"
)

// Macro is a named compound operation. Either Expand is set (a Go macro)
// or the macro was built by TemplateMacro and expands pseudocode lines.
type Macro struct {
	Name        string
	Params      []string
	Description string

	// Expand returns the instructions for one call. args are in Params
	// order. Every returned instruction must pass Validate.
	Expand func(args []isa.Operand) ([]isa.Instruction, error)

	body []string
}

// TemplateMacro builds a macro whose body is pseudocode. Each body line is
// compiled with every parameter name replaced by the call's argument.
func TemplateMacro(name string, params []string, description string, body []string) Macro {
	return Macro{
		Name:        name,
		Params:      slices.Clone(params),
		Description: description,
		body:        slices.Clone(body),
	}
}

// Body returns a template macro's pseudocode lines, or nil for Go macros.
func (m Macro) Body() []string { return slices.Clone(m.body) }

// Signature renders "name(p1, p2)".
func (m Macro) Signature() string {
	return m.Name + "(" + strings.Join(m.Params, ", ") + ")"
}

// Registry holds the macros one compiler can call. Register is not safe to
// call concurrently with compilation.
type Registry struct {
	macros map[string]Macro
}

// NewRegistry returns a registry holding the builtin macros.
func NewRegistry() *Registry {
	r := &Registry{macros: make(map[string]Macro)}
	for _, m := range builtins() {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds m. Names must be plain identifiers that shadow no opcode
// and no macro already registered.
func (r *Registry) Register(m Macro) error {
	if !isPlainIdent(m.Name) {
		return &CompileError{Code: ErrCodeMacro, Message: fmt.Sprintf("macro name %q is not an identifier", m.Name)}
	}
	if _, ok := lookupOp(m.Name); ok {
		return &CompileError{Code: ErrCodeMacro, Message: fmt.Sprintf("macro %s shadows an opcode", m.Name)}
	}
	if _, ok := r.macros[m.Name]; ok {
		return &CompileError{Code: ErrCodeMacro, Message: fmt.Sprintf("macro %s already registered", m.Name)}
	}
	if (m.Expand == nil) == (m.body == nil) {
		return &CompileError{Code: ErrCodeMacro, Message: fmt.Sprintf("macro %s needs exactly one of Expand or a body", m.Name)}
	}
	seen := make(map[string]bool, len(m.Params))
	for _, p := range m.Params {
		if !isPlainIdent(p) {
			return &CompileError{Code: ErrCodeMacro, Message: fmt.Sprintf("macro %s: parameter %q is not an identifier", m.Name, p)}
		}
		if _, isReg := isa.ParseReg(p); isReg {
			return &CompileError{Code: ErrCodeMacro, Message: fmt.Sprintf("macro %s: parameter %s looks like a register", m.Name, p)}
		}
		if seen[p] {
			return &CompileError{Code: ErrCodeMacro, Message: fmt.Sprintf("macro %s: parameter %s repeated", m.Name, p)}
		}
		seen[p] = true
	}
	for i, line := range m.body {
		if _, err := lex(stripComment(line)); err != nil {
			return &CompileError{Code: ErrCodeMacro, Message: fmt.Sprintf("macro %s body line %d: %v", m.Name, i+1, err)}
		}
	}
	r.macros[m.Name] = m
	return nil
}

// Lookup finds a macro by name.
func (r *Registry) Lookup(name string) (Macro, bool) {
	m, ok := r.macros[name]
	return m, ok
}

// List returns every macro sorted by name.
func (r *Registry) List() []Macro {
	out := make([]Macro, 0, len(r.macros))
	for _, m := range r.macros {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Macro) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Expand compiles one call, "fused_attention(TR0, TR1, TR2, TR3)", and
// returns its expansion.
func (r *Registry) Expand(call string) ([]isa.Instruction, error) {
	out, err := Compile(call, Options{Strict: true, Registry: r})
	if err != nil {
		return nil, err
	}
	return out.Program, nil
}

func isPlainIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) || s[i] == '.' {
			return false
		}
	}
	return true
}

func builtins() []Macro {
	return []Macro{
		{
			Name:        "fused_attention",
			Params:      []string{"q", "k", "v", "dst"},
			Description: "L2-normalize queries and keys in place, then route values through attention",
			Expand: func(args []isa.Operand) ([]isa.Instruction, error) {
				q, k, v, dst := args[0], args[1], args[2], args[3]
				var prog []isa.Instruction
				for _, step := range []struct {
					op       isa.Opcode
					operands []isa.Operand
				}{
					{isa.OpNorm, []isa.Operand{q, q, isa.NormL2}},
					{isa.OpNorm, []isa.Operand{k, k, isa.NormL2}},
					{isa.OpRoute, []isa.Operand{q, k, v, dst}},
				} {
					in, err := isa.New(step.op, step.operands...)
					if err != nil {
						return nil, err
					}
					prog = append(prog, in)
				}
				return prog, nil
			},
		},
	}
}
