package rosetta

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/scrawl/internal/isa"
)

// maxMacroDepth bounds macro-calls-macro nesting.
const maxMacroDepth = 8

// Options configures Compile.
type Options struct {
	// Strict rejects statements that name no opcode or macro. Otherwise
	// they are skipped and reported in Output.Warnings, as are surplus
	// positional arguments.
	Strict bool

	// Registry supplies macros. Nil means a fresh NewRegistry().
	Registry *Registry
}

// Output is a compiled program.
type Output struct {
	Program  []isa.Instruction
	Warnings []Warning
}

// Compile translates pseudocode into instructions.
func Compile(src string, opts Options) (*Output, error) {
	c := &compiler{strict: opts.Strict, registry: opts.Registry}
	if c.registry == nil {
		c.registry = NewRegistry()
	}

	out := &Output{}
	for n, line := range strings.Split(src, "\n") {
		prog, err := c.compileLine(n+1, line, 0)
		if err != nil {
			return nil, err
		}
		out.Program = append(out.Program, prog...)
	}
	out.Warnings = c.warnings

	slog.Debug("compiled program",
		"instructions", len(out.Program),
		"warnings", len(out.Warnings),
		"strict", opts.Strict,
	)
	return out, nil
}

// MustCompile compiles src strictly and panics on error.
// Use only in tests or for literal programs.
func MustCompile(src string) []isa.Instruction {
	out, err := Compile(src, Options{Strict: true})
	if err != nil {
		panic(err)
	}
	return out.Program
}

type compiler struct {
	strict   bool
	registry *Registry
	warnings []Warning
}

func (c *compiler) warn(line int, format string, args ...any) {
	c.warnings = append(c.warnings, Warning{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (c *compiler) compileLine(lineNo int, line string, depth int) ([]isa.Instruction, error) {
	text := strings.TrimSpace(stripComment(line))
	if text == "" {
		return nil, nil
	}

	toks, err := lex(text)
	if err == nil {
		var st *statement
		st, err = parseStatement(lineNo, toks)
		if err == nil {
			return c.compileStatement(st, depth)
		}
	}

	var se *syntaxError
	if !errors.As(err, &se) {
		return nil, err
	}
	if !c.strict {
		c.warn(lineNo, "skipped unparseable statement %q: %s", text, se.msg)
		return nil, nil
	}
	return nil, &CompileError{Code: ErrCodeSyntax, Line: lineNo, Column: se.col, Message: se.msg}
}

// lookupOp resolves a pseudocode name. Execution-domain names may omit
// their "exec." prefix.
func lookupOp(name string) (isa.OpInfo, bool) {
	if info, ok := isa.LookupName(name); ok {
		return info, true
	}
	if !strings.Contains(name, ".") {
		return isa.LookupName(isa.DomainExecution.String() + "." + name)
	}
	return isa.OpInfo{}, false
}

func (c *compiler) compileStatement(st *statement, depth int) ([]isa.Instruction, error) {
	name := st.callee.text
	if info, ok := lookupOp(name); ok {
		in, err := c.instruction(info, st)
		if err != nil {
			return nil, err
		}
		return []isa.Instruction{in}, nil
	}
	if m, ok := c.registry.Lookup(name); ok {
		return c.expand(m, st, depth)
	}
	if !c.strict {
		c.warn(st.line, "skipped unknown operation %s", name)
		return nil, nil
	}
	return nil, &CompileError{
		Code:    ErrCodeUnknownOp,
		Line:    st.line,
		Column:  st.callee.col,
		Message: fmt.Sprintf("unknown operation %s", name),
	}
}

func (c *compiler) instruction(info isa.OpInfo, st *statement) (isa.Instruction, error) {
	fail := func(code string, col int, format string, args ...any) (isa.Instruction, error) {
		return isa.Instruction{}, &CompileError{
			Code:    code,
			Line:    st.line,
			Column:  col,
			Message: info.Name + ": " + fmt.Sprintf(format, args...),
		}
	}

	bound := make([]*value, len(info.Slots))
	if st.target != nil {
		if info.Dest < 0 {
			return fail(ErrCodeArguments, st.target.col, "produces no value to assign to %s", st.target.text)
		}
		bound[info.Dest] = &value{tok: *st.target}
	}

	next := 0
	for i := range st.args {
		arg := &st.args[i]
		if arg.name == "" {
			for next < len(bound) && (bound[next] != nil || next == info.Dest) {
				next++
			}
			if next == len(bound) {
				if c.strict {
					return fail(ErrCodeArguments, arg.value.col(), "too many arguments, takes %d", len(info.Slots))
				}
				c.warn(st.line, "%s: ignored extra argument %d", info.Name, i+1)
				continue
			}
			bound[next] = &arg.value
			continue
		}

		slot := slotIndex(info, arg.name)
		if slot < 0 {
			return fail(ErrCodeArguments, arg.value.col(), "no argument named %s", arg.name)
		}
		if bound[slot] != nil {
			return fail(ErrCodeArguments, arg.value.col(), "%s given twice", arg.name)
		}
		bound[slot] = &arg.value
	}

	operands := make([]isa.Operand, len(info.Slots))
	for i, slot := range info.Slots {
		v := bound[i]
		if v == nil {
			if i == info.Dest {
				return fail(ErrCodeArguments, st.callee.col, "result must be assigned to a %s", slot.Kind)
			}
			return fail(ErrCodeArguments, st.callee.col, "missing %s", slot.Name)
		}
		op, err := operand(slot, *v)
		if err != nil {
			return fail(ErrCodeOperand, v.col(), "%v", err)
		}
		operands[i] = op
	}

	in, err := isa.New(info.Opcode, operands...)
	if err != nil {
		var se *isa.ShapeError
		col := st.callee.col
		if errors.As(err, &se) && se.Operand >= 0 && bound[se.Operand] != nil {
			col = bound[se.Operand].col()
		}
		return fail(ErrCodeOperand, col, "%v", err)
	}
	return in, nil
}

func slotIndex(info isa.OpInfo, name string) int {
	for i, s := range info.Slots {
		if strings.EqualFold(s.Name, name) {
			return i
		}
	}
	return -1
}

// expand binds a macro call's arguments to the macro's parameters and
// returns the instructions it produces.
func (c *compiler) expand(m Macro, st *statement, depth int) ([]isa.Instruction, error) {
	fail := func(col int, format string, args ...any) ([]isa.Instruction, error) {
		return nil, &CompileError{
			Code:    ErrCodeMacro,
			Line:    st.line,
			Column:  col,
			Message: m.Name + ": " + fmt.Sprintf(format, args...),
		}
	}
	if depth >= maxMacroDepth {
		return fail(st.callee.col, "macros nested deeper than %d", maxMacroDepth)
	}
	if st.target != nil {
		return fail(st.target.col, "a macro call cannot be assigned")
	}

	bound := make([]*value, len(m.Params))
	next := 0
	for i := range st.args {
		arg := &st.args[i]
		idx := next
		if arg.name != "" {
			idx = -1
			for j, p := range m.Params {
				if p == arg.name {
					idx = j
				}
			}
			if idx < 0 {
				return fail(arg.value.col(), "no parameter named %s", arg.name)
			}
		} else {
			for idx < len(bound) && bound[idx] != nil {
				idx++
			}
			next = idx
		}
		if idx >= len(bound) {
			return fail(arg.value.col(), "takes %d arguments (%s)", len(m.Params), strings.Join(m.Params, ", "))
		}
		if bound[idx] != nil {
			return fail(arg.value.col(), "%s given twice", m.Params[idx])
		}
		bound[idx] = &arg.value
	}

	args := make([]isa.Operand, len(m.Params))
	for i, v := range bound {
		if v == nil {
			return fail(st.callee.col, "missing %s", m.Params[i])
		}
		op, err := operand(isa.Slot{Name: m.Params[i]}, *v)
		if err != nil {
			return fail(v.col(), "%v", err)
		}
		args[i] = op
	}

	if m.body != nil {
		return c.expandTemplate(m, args, st, depth)
	}
	prog, err := m.Expand(args)
	if err != nil {
		return fail(st.callee.col, "%v", err)
	}
	for i, in := range prog {
		if err := in.Validate(); err != nil {
			return fail(st.callee.col, "expansion %d: %v", i, err)
		}
	}
	return prog, nil
}

// expandTemplate substitutes args for parameter names in each body line
// and compiles the result in place of the call.
func (c *compiler) expandTemplate(m Macro, args []isa.Operand, st *statement, depth int) ([]isa.Instruction, error) {
	subst := make(map[string]string, len(args))
	for i, p := range m.Params {
		subst[p] = isa.FormatOperand(args[i])
	}

	var prog []isa.Instruction
	for i, line := range m.body {
		toks, err := lex(stripComment(line))
		if err != nil {
			return nil, &CompileError{Code: ErrCodeMacro, Line: st.line, Column: st.callee.col,
				Message: fmt.Sprintf("%s body line %d: %v", m.Name, i+1, err)}
		}
		parts := make([]string, len(toks))
		for j, t := range toks {
			parts[j] = t.text
			if t.kind != tokIdent || isKeyword(toks, j) {
				continue
			}
			if s, ok := subst[t.text]; ok {
				parts[j] = s
			}
		}

		// Strictness applies to the expansion no matter how the caller
		// compiles, and errors point at the call site.
		sub := &compiler{strict: true, registry: c.registry}
		out, err := sub.compileLine(st.line, strings.Join(parts, " "), depth+1)
		if err != nil {
			var ce *CompileError
			if errors.As(err, &ce) {
				return nil, &CompileError{Code: ErrCodeMacro, Line: st.line, Column: st.callee.col,
					Message: fmt.Sprintf("%s body line %d: %s", m.Name, i+1, ce.Message)}
			}
			return nil, err
		}
		prog = append(prog, out...)
	}
	return prog, nil
}

// isKeyword reports whether toks[j] names an argument: "(name=" or ", name=".
func isKeyword(toks []lexeme, j int) bool {
	return j > 0 && j+1 < len(toks) && toks[j+1].is("=") && (toks[j-1].is("(") || toks[j-1].is(","))
}
