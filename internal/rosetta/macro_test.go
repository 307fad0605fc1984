package rosetta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/isa"
)

func TestBuiltinFusedAttention(t *testing.T) {
	r := NewRegistry()
	m, ok := r.Lookup("fused_attention")
	require.True(t, ok)
	assert.Equal(t, "fused_attention(q, k, v, dst)", m.Signature())
	assert.Nil(t, m.Body())

	prog, err := r.Expand("fused_attention(TR0, TR1, TR2, TR3)")
	require.NoError(t, err)
	want := []isa.Instruction{
		isa.MustNew(isa.OpNorm, isa.TR(0), isa.TR(0), isa.NormL2),
		isa.MustNew(isa.OpNorm, isa.TR(1), isa.TR(1), isa.NormL2),
		isa.MustNew(isa.OpRoute, isa.TR(0), isa.TR(1), isa.TR(2), isa.TR(3)),
	}
	assert.True(t, isa.ProgramEqual(want, prog), "got %v", prog)
}

func TestMacroKeywordArguments(t *testing.T) {
	prog, err := NewRegistry().Expand("fused_attention(TR4, TR5, dst=TR7, v=TR6)")
	require.NoError(t, err)
	require.Len(t, prog, 3)
	assert.True(t, prog[2].Equal(isa.MustNew(isa.OpRoute, isa.TR(4), isa.TR(5), isa.TR(6), isa.TR(7))))
}

func TestMacroArgumentErrors(t *testing.T) {
	r := NewRegistry()
	for _, call := range []string{
		"fused_attention(TR0, TR1, TR2)",
		"fused_attention(TR0, TR1, TR2, TR3, TR4)",
		"fused_attention(TR0, TR1, TR2, q=TR3)",
		"fused_attention(TR0, TR1, TR2, out=TR3)",
		"fused_attention(R0, R1, R2, R3)", // scalar registers
		"fused_attention(TR0, TR1, TR2, banana)",
	} {
		t.Run(call, func(t *testing.T) {
			_, err := r.Expand(call)
			requireCompileError(t, err, ErrCodeMacro)
		})
	}
}

func stridedCompose() Macro {
	return Macro{
		Name:        "strided_compose",
		Params:      []string{"src1", "src2", "dst"},
		Description: "Normalized dot product",
		Expand: func(args []isa.Operand) ([]isa.Instruction, error) {
			a, b, dst := args[0], args[1], args[2]
			return []isa.Instruction{
				isa.MustNew(isa.OpNorm, a, a, isa.NormL2),
				isa.MustNew(isa.OpNorm, b, b, isa.NormL2),
				isa.MustNew(isa.OpCompose, dst, a, b, isa.ComposeDot),
			}, nil
		},
	}
}

func TestRegisterGoMacro(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stridedCompose()))

	out, err := Compile("strided_compose(TR0, TR1, TR2)\nhalt", Options{Strict: true, Registry: r})
	require.NoError(t, err)
	require.Len(t, out.Program, 4)
	assert.Equal(t, "T_COMPOSE", out.Program[2].Mnemonic())

	names := make([]string, 0)
	for _, m := range r.List() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"fused_attention", "strided_compose"}, names)

	// Registries are independent.
	_, err = Compile("strided_compose(TR0, TR1, TR2)", Options{Strict: true})
	requireCompileError(t, err, ErrCodeUnknownOp)
}

func TestGoMacroMustReturnValidInstructions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Macro{
		Name:   "broken",
		Params: []string{"x"},
		Expand: func(args []isa.Operand) ([]isa.Instruction, error) {
			return []isa.Instruction{isa.Unchecked(isa.OpYield)}, nil
		},
	}))
	_, err := r.Expand("broken(R0)")
	requireCompileError(t, err, ErrCodeMacro)

	require.NoError(t, r.Register(Macro{
		Name:   "failing",
		Params: nil,
		Expand: func([]isa.Operand) ([]isa.Instruction, error) { return nil, errors.New("boom") },
	}))
	_, err = r.Expand("failing()")
	ce := requireCompileError(t, err, ErrCodeMacro)
	assert.Contains(t, ce.Message, "boom")
}

func TestRegisterRejects(t *testing.T) {
	expand := func([]isa.Operand) ([]isa.Instruction, error) { return nil, nil }
	tests := []struct {
		name  string
		macro Macro
	}{
		{"empty name", Macro{Expand: expand}},
		{"dotted name", Macro{Name: "tensor.fancy", Expand: expand}},
		{"shadows opcode", Macro{Name: "halt", Expand: expand}},
		{"duplicate", Macro{Name: "fused_attention", Expand: expand}},
		{"no body or expand", Macro{Name: "hollow"}},
		{"register param", Macro{Name: "m", Params: []string{"R0"}, Expand: expand}},
		{"repeated param", Macro{Name: "m", Params: []string{"a", "a"}, Expand: expand}},
		{"bad body", TemplateMacro("m", nil, "", []string{"halt ;"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireCompileError(t, NewRegistry().Register(tt.macro), ErrCodeMacro)
		})
	}
}

func TestTemplateMacroSubstitution(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TemplateMacro("approve_all",
		[]string{"id", "payload"},
		"propose to agents 0 and 1 and approve",
		[]string{
			"consensus.propose(id=id, payload=payload, agents=[0, 1])  # open",
			"consensus.vote(id, 0, approve)",
			"consensus.vote(id, 1, approve)",
		})))

	prog, err := r.Expand(`approve_all(9, "v2")`)
	require.NoError(t, err)
	want := []isa.Instruction{
		isa.MustNew(isa.OpPropose, isa.Int(9), isa.Bytes("v2"), isa.Agents{0, 1}),
		isa.MustNew(isa.OpVote, isa.Int(9), isa.Int(0), isa.VoteApprove),
		isa.MustNew(isa.OpVote, isa.Int(9), isa.Int(1), isa.VoteApprove),
	}
	assert.True(t, isa.ProgramEqual(want, prog), "got %v", prog)
}

func TestTemplateMacroErrorsPointAtCall(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TemplateMacro("bad", []string{"x"}, "", []string{"x = identity.verify(x)"})))

	_, err := Compile("nop\nbad(TR0)", Options{Registry: r})
	ce := requireCompileError(t, err, ErrCodeMacro)
	assert.Equal(t, 2, ce.Line)
	assert.Contains(t, ce.Message, "bad body line 1")
}

func TestNestedMacros(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TemplateMacro("attend_twice", []string{"q", "k", "v", "a", "b"}, "", []string{
		"fused_attention(q, k, v, a)",
		"fused_attention(q, k, a, b)",
	})))
	prog, err := r.Expand("attend_twice(TR0, TR1, TR2, TR3, TR4)")
	require.NoError(t, err)
	assert.Len(t, prog, 6)
}

func TestRecursiveMacroIsBounded(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TemplateMacro("forever", []string{"x"}, "", []string{"forever(x)"})))
	_, err := r.Expand("forever(R0)")
	ce := requireCompileError(t, err, ErrCodeMacro)
	assert.Contains(t, ce.Message, "nested deeper than")
}

func TestLoadMacros(t *testing.T) {
	macros, err := LoadMacros("testdata/macros")
	require.NoError(t, err)
	require.Len(t, macros, 3)

	assert.Equal(t, "attest", macros[0].Name)
	assert.Equal(t, []string{"cr", "seed", "out"}, macros[0].Params)
	assert.Equal(t, "double_route", macros[1].Name)
	assert.Empty(t, macros[1].Description)
	assert.Equal(t, "strided_compose", macros[2].Name)
	assert.Len(t, macros[2].Body(), 3)
}

func TestLoadDirAndCompile(t *testing.T) {
	r := NewRegistry()
	n, err := r.LoadDir("testdata/macros")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out, err := Compile(`
attest(CR2, 0xBEEF, R7)
strided_compose(TR0, TR1, TR2)
double_route(TR2, TR3)
halt
`, Options{Strict: true, Registry: r})
	require.NoError(t, err)

	want := []isa.Instruction{
		isa.MustNew(isa.OpDerive, isa.CR(2), isa.Int(0xBEEF), isa.Int(16)),
		isa.MustNew(isa.OpVerify, isa.R(7), isa.CR(2)),
		isa.MustNew(isa.OpYield, isa.R(7)),
		isa.MustNew(isa.OpNorm, isa.TR(0), isa.TR(0), isa.NormL2),
		isa.MustNew(isa.OpNorm, isa.TR(1), isa.TR(1), isa.NormL2),
		isa.MustNew(isa.OpCompose, isa.TR(2), isa.TR(0), isa.TR(1), isa.ComposeDot),
		isa.MustNew(isa.OpSelfAttend, isa.TR(3), isa.TR(2)),
		isa.MustNew(isa.OpScale, isa.TR(3), isa.TR(3), isa.Float(2)),
		isa.MustNew(isa.OpHalt),
	}
	assert.True(t, isa.ProgramEqual(want, out.Program), "got %v", out.Program)

	_, err = r.LoadDir("testdata/macros")
	require.Error(t, err, "second load collides with the first")
}

func TestLoadMacrosErrors(t *testing.T) {
	_, err := LoadMacros("testdata/badmacros")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty_body")

	_, err = LoadMacros(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")
}
