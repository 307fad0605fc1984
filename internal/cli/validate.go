package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scrawl/internal/harness"
	"github.com/roach88/scrawl/internal/rosetta"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Macros []string
}

// ValidationError is one problem found in one input.
type ValidationError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Checked int               `json:"checked"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate programs, frames, scenarios and macro directories",
		Long: `Check inputs without running them. Every path is checked and every
problem reported; validation does not stop at the first failure.

  *.rsta           compiled strictly against the built-in and --macros macros
  *.syn            decoded as a SYNAPSE frame
  *.yaml, *.yml    parsed as a harness scenario
  directory        loaded as a directory of CUE macro files

Exit codes:
  0 - Everything is valid
  1 - One or more inputs are invalid
  2 - Command error (missing path, bad macro directory in --macros)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Macros, "macros", nil, "directories of CUE macro files for *.rsta inputs")

	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error())
	}
	macros := append(append([]string{}, cfg.Compiler.Macros...), opts.Macros...)

	var errs []ValidationError
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("path not found: %s", path))
		}
		found := validatePath(path, info.IsDir(), macros)
		formatter.VerboseLog("%s: %d problem(s)", path, len(found))
		errs = append(errs, found...)
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, len(paths), errs)
	}
	return outputValidateSuccess(formatter, len(paths))
}

// validatePath dispatches on the kind of input.
func validatePath(path string, dir bool, macros []string) []ValidationError {
	if dir {
		reg := rosetta.NewRegistry()
		if _, err := reg.LoadDir(path); err != nil {
			return []ValidationError{newValidationError(path, err)}
		}
		var errs []ValidationError
		for _, c := range reg.Cycles() {
			errs = append(errs, ValidationError{Path: path, Code: rosetta.ErrCodeMacro, Message: c.Message})
		}
		return errs
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if _, err := harness.LoadScenario(path); err != nil {
			return []ValidationError{newValidationError(path, err)}
		}
		return nil
	default:
		// LoadProgram tells frames from source by their magic.
		prog, err := LoadProgram(path, LoadOptions{Strict: true, Macros: macros})
		if err != nil {
			return []ValidationError{newValidationError(path, err)}
		}
		var errs []ValidationError
		for i, in := range prog.Instructions {
			if err := in.Validate(); err != nil {
				errs = append(errs, ValidationError{
					Path:    path,
					Code:    ErrCodeBadFrame,
					Message: fmt.Sprintf("instruction %d: %v", i, err),
				})
			}
		}
		return errs
	}
}

func newValidationError(path string, err error) ValidationError {
	code, message := errorCode(err)
	ve := ValidationError{Path: path, Code: code, Message: message}
	if ce, ok := asCompileError(err); ok {
		ve.Line = ce.Line
	}
	return ve
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, checked int) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Checked: checked})
	}

	fmt.Fprintf(formatter.Writer, "%s All %d input(s) valid\n", mark(true), checked)
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, checked int, errs []ValidationError) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Checked: checked, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.Respond(response); err != nil {
			return err
		}
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Validation failed\n\n", mark(false))
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(w, "%s:%d\n", err.Path, err.Line)
		} else {
			fmt.Fprintln(w, err.Path)
		}
		fmt.Fprintf(w, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
