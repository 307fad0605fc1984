package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scrawl/internal/rosetta"
)

// DecompileOptions holds flags for the decompile command.
type DecompileOptions struct {
	*RootOptions
	Hex bool
}

// DecompileResult is the JSON form of decompiled output.
type DecompileResult struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Frame  string `json:"frame,omitempty"`
	Text   string `json:"text"`
}

// NewDecompileCommand creates the decompile command.
func NewDecompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decompile <frame|source>",
		Short: "Render a program as rosetta pseudocode",
		Long: `Render a SYNAPSE frame (or a pseudocode file, normalizing it) as rosetta
pseudocode that compiles back to the same instructions.

Examples:
  scrawl decompile heartbeat.syn
  scrawl decompile heartbeat.syn --hex`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Hex, "hex", false, "annotate each line with its opcode")

	return cmd
}

func runDecompile(opts *DecompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	prog, err := LoadProgram(path, LoadOptions{Strict: true})
	if err != nil {
		return outputCompileError(formatter, err)
	}
	if prog.Frame != nil {
		formatter.VerboseLog("%s", prog.Frame)
	}

	text, err := rosetta.Decompile(prog.Instructions, rosetta.DecompileOptions{IncludeHex: opts.Hex})
	if err != nil {
		return outputCompileError(formatter, err)
	}

	if formatter.JSON() {
		result := DecompileResult{Source: path, Kind: string(prog.Kind), Text: text}
		if prog.Frame != nil {
			result.Frame = prog.Frame.String()
		}
		return formatter.Success(result)
	}
	fmt.Fprint(formatter.Writer, text)
	return nil
}
