package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/rosetta"
	"github.com/roach88/scrawl/internal/synapse"
)

func TestCompileSuccess(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, program("heartbeat.rsta"))
	require.NoError(t, err)

	hash, err := isa.ProgramHash(rosetta.MustCompile(heartbeatSrc))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 4 instruction(s)")
	assert.Contains(t, out, "program hash: "+hash)
	assert.NotContains(t, out, "Wrote")
}

func TestCompileJSON(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, program("vote.rsta"))
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 9, result.Instructions)
	assert.Len(t, result.ProgramHash, 64)
	assert.Empty(t, result.Warnings)
}

func TestCompileWritesFrame(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "compressed"}[compress], func(t *testing.T) {
			outPath := filepath.Join(t.TempDir(), "vote.syn")
			args := []string{"-o", outPath, program("vote.rsta")}
			if compress {
				args = append([]string{"--compress"}, args...)
			}

			out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), args...)
			require.NoError(t, err)
			assert.Contains(t, out, "frame to "+outPath)

			frame, err := os.ReadFile(outPath)
			require.NoError(t, err)
			prog, meta, err := synapse.Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, compress, meta.Compressed())
			assert.True(t, isa.ProgramEqual(rosetta.MustCompile(voteSrc), prog))
		})
	}
}

func TestCompileFrameInput(t *testing.T) {
	frame, err := synapse.Encode(rosetta.MustCompile(heartbeatSrc), synapse.Options{})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "heartbeat.syn")
	require.NoError(t, os.WriteFile(path, frame, 0o644))

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled 4 instruction(s)")
}

func TestCompileSyntaxError(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, program("syntax_error.rsta"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, rosetta.ErrCodeSyntax, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "line 1")
}

func TestCompileStrictness(t *testing.T) {
	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), program("loose.rsta"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), "--strict=false", program("loose.rsta"))
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled 2 instruction(s)")
	assert.Contains(t, out, "warning: line 2: unknown operation emit_telemetry")
}

func TestCompileStrictFromConfig(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "scrawl.yaml", "compiler: {strict: false}\n")
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text", Config: cfg}), program("loose.rsta"))
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled 2 instruction(s)")

	_, err = execute(t, NewCompileCommand(&RootOptions{Format: "text", Config: cfg}), "--strict", program("loose.rsta"))
	require.Error(t, err, "an explicit flag beats the config")
}

func TestCompileMacros(t *testing.T) {
	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), program("attested.rsta"))
	require.Error(t, err)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}),
		"--macros", filepath.Join("testdata", "macros"), program("attested.rsta"))
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled 4 instruction(s)")

	_, err = execute(t, NewCompileCommand(&RootOptions{Format: "json"}),
		"--macros", t.TempDir(), program("attested.rsta"))
	require.Error(t, err)
}

func TestCompileMissingFile(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, filepath.Join(t.TempDir(), "nope.rsta"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestCompileCorruptFrame(t *testing.T) {
	frame, err := synapse.Encode(rosetta.MustCompile(heartbeatSrc), synapse.Options{})
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xff
	path := filepath.Join(t.TempDir(), "bad.syn")
	require.NoError(t, os.WriteFile(path, frame, 0o644))

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, ErrCodeBadFrame, resp.Error.Code)
}

func TestDecompile(t *testing.T) {
	out, err := execute(t, NewDecompileCommand(&RootOptions{Format: "text"}), program("heartbeat.rsta"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# rosetta\n# instructions: 4\n"), out)
	assert.Contains(t, out, "CR0 = identity.derive(seed=0xCAFE, depth=16)")

	again, err := rosetta.Compile(out, rosetta.Options{Strict: true})
	require.NoError(t, err)
	assert.True(t, isa.ProgramEqual(rosetta.MustCompile(heartbeatSrc), again.Program))
}

func TestDecompileFrameJSON(t *testing.T) {
	frame, err := synapse.Encode(rosetta.MustCompile(voteSrc), synapse.Options{Compress: true})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "vote.syn")
	require.NoError(t, os.WriteFile(path, frame, 0o644))

	out, err := execute(t, NewDecompileCommand(&RootOptions{Format: "json"}), "--hex", path)
	require.NoError(t, err)

	var result DecompileResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "synapse", result.Kind)
	assert.NotEmpty(t, result.Frame)
	assert.Contains(t, result.Text, "C_VOTE")
	assert.Contains(t, result.Text, "consensus.vote(")
}
