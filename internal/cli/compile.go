package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/synapse"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path
	Compress bool   // snappy-compress the frame payload
	Strict   bool
	Macros   []string
}

// CompilationResult describes a compiled program.
type CompilationResult struct {
	Source       string   `json:"source"`
	Instructions int      `json:"instructions"`
	ProgramHash  string   `json:"program_hash"`
	Warnings     []string `json:"warnings"`
	Output       string   `json:"output,omitempty"`
	FrameBytes   int      `json:"frame_bytes,omitempty"`
	Compressed   bool     `json:"compressed,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <source>",
		Short: "Compile rosetta pseudocode to a SYNAPSE frame",
		Long: `Compile rosetta pseudocode into instructions and, with --output, write
them as a SYNAPSE binary frame.

Without --output the program is only checked and summarized.

Examples:
  scrawl compile heartbeat.rsta
  scrawl compile heartbeat.rsta -o heartbeat.syn --compress
  scrawl compile agents.rsta --macros ./macros --strict=false`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output frame path")
	cmd.Flags().BoolVar(&opts.Compress, "compress", false, "snappy-compress the frame payload")
	cmd.Flags().BoolVar(&opts.Strict, "strict", true, "reject unknown statements instead of skipping them")
	cmd.Flags().StringSliceVar(&opts.Macros, "macros", nil, "directories of CUE macro files")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	strict := opts.Strict
	if !cmd.Flags().Changed("strict") && opts.Config != "" {
		strict = cfg.Compiler.Strict
	}
	macros := append(append([]string{}, cfg.Compiler.Macros...), opts.Macros...)

	prog, err := LoadProgram(path, LoadOptions{Strict: strict, Macros: macros})
	if err != nil {
		return outputCompileError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d instruction(s) from %s (%s)", len(prog.Instructions), path, prog.Kind)

	hash, err := isa.ProgramHash(prog.Instructions)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	result := CompilationResult{
		Source:       path,
		Instructions: len(prog.Instructions),
		ProgramHash:  hash,
		Warnings:     make([]string, 0, len(prog.Warnings)),
	}
	for _, w := range prog.Warnings {
		result.Warnings = append(result.Warnings, w.String())
	}

	if opts.Output != "" {
		frame, err := synapse.Encode(prog.Instructions, synapse.Options{Compress: opts.Compress})
		if err != nil {
			return outputCompileError(formatter, err)
		}
		if err := os.WriteFile(opts.Output, frame, 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
		result.Output = opts.Output
		result.FrameBytes = len(frame)
		result.Compressed = opts.Compress
	}

	return outputCompileSuccess(formatter, result)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Compiled %d instruction(s)\n", mark(true), result.Instructions)
	fmt.Fprintf(w, "  program hash: %s\n", result.ProgramHash)
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	if result.Output != "" {
		fmt.Fprintf(w, "Wrote %d-byte frame to %s\n", result.FrameBytes, result.Output)
	}
	return nil
}

// outputCompileError reports a load or compile failure. Compilation errors
// are command-level errors (exit code 2).
func outputCompileError(formatter *OutputFormatter, err error) error {
	code, message := errorCode(err)
	if formatter.JSON() {
		_ = formatter.Error(code, message, nil)
	} else {
		fmt.Fprintf(formatter.Writer, "%s Compilation failed\n  %s\n", mark(false), message)
	}
	return WrapExitError(ExitCommandError, "compilation failed", err)
}
