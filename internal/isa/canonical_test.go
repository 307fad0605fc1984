package isa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"bool", true, "true"},
		{"float integral", 2.0, "2"},
		{"float fraction", 0.5, "0.5"},
		{"float tiny", 1e-7, "1e-7"},
		{"float huge", 1e21, "1e+21"},
		{"float negative zero", math.Copysign(0, -1), "0"},
		{"empty array", []any{}, "[]"},
		{"string array", []string{"a", "b"}, `["a","b"]`},
		{"empty object", map[string]any{}, "{}"},
		{"html not escaped", "<a&b>", `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	for _, v := range []any{nil, math.NaN(), math.Inf(1), float32(1), []any{nil}} {
		_, err := MarshalCanonical(v)
		assert.Error(t, err, "%v", v)
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  map[string]any{"y": 1, "x": 2},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":2,"y":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute normalizes to U+00E9
	result, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// A literal backslash followed by the text u2028 stays escaped
	result, err = MarshalCanonical(`\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestMarshalCanonicalInstruction(t *testing.T) {
	in := MustNew(OpPropose, Int(1), Bytes{0xca, 0xfe}, Agents{0, 1})

	result, err := MarshalCanonical(in)
	require.NoError(t, err)
	assert.Equal(t,
		`{"op":"C_PROPOSE","operands":[{"int":1},{"bytes":"cafe"},{"agents":[0,1]}]}`,
		string(result))
}

func TestMarshalCanonicalProgram(t *testing.T) {
	prog := []Instruction{
		MustNew(OpLoad, R(0), Float(42.5)),
		MustNew(OpYield, R(0)),
	}

	result, err := MarshalCanonical(prog)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"op":"X_LOAD","operands":[{"reg":"R0"},{"float":42.5}]},{"op":"X_YIELD","operands":[{"reg":"R0"}]}]`,
		string(result))
}
