package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/rosetta"
	"github.com/roach88/scrawl/internal/synapse"
)

// CLI error codes (E001-E099). Compile errors carry rosetta's E2xx codes and
// runtime faults their engine codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadFrame    = "E010" // SYNAPSE frame does not decode
	ErrCodeMacros      = "E011" // Macro directory failed to load
	ErrCodeStore       = "E020" // Run database error
	ErrCodeRunNotFound = "E021" // No run with that ID
)

// SourceKind says how a program file was read.
type SourceKind string

const (
	SourceRosetta SourceKind = "rosetta"
	SourceSynapse SourceKind = "synapse"
)

// Program is a program file loaded for execution or inspection.
type Program struct {
	Path         string
	Kind         SourceKind
	Instructions []isa.Instruction
	Warnings     []rosetta.Warning // rosetta only
	Frame        *synapse.Metadata // synapse only
}

// LoadOptions configures LoadProgram for pseudocode sources.
type LoadOptions struct {
	Strict bool
	Macros []string // directories of CUE macro files
}

// LoadError represents an error that occurred while loading a program.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadProgram reads path as a SYNAPSE frame when it starts with the frame
// magic and as rosetta pseudocode otherwise.
func LoadProgram(path string, opts LoadOptions) (*Program, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
	}

	if bytes.HasPrefix(data, synapse.Magic[:]) {
		prog, meta, err := synapse.Decode(data)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadFrame, Message: fmt.Sprintf("%s: %v", path, err), Err: err}
		}
		return &Program{Path: path, Kind: SourceSynapse, Instructions: prog, Frame: &meta}, nil
	}

	registry, err := loadRegistry(opts.Macros)
	if err != nil {
		return nil, err
	}
	out, err := rosetta.Compile(string(data), rosetta.Options{Strict: opts.Strict, Registry: registry})
	if err != nil {
		return nil, err
	}
	return &Program{
		Path:         path,
		Kind:         SourceRosetta,
		Instructions: out.Program,
		Warnings:     out.Warnings,
	}, nil
}

func loadRegistry(dirs []string) (*rosetta.Registry, error) {
	registry := rosetta.NewRegistry()
	for _, dir := range dirs {
		if _, err := registry.LoadDir(dir); err != nil {
			return nil, &LoadError{Code: ErrCodeMacros, Message: fmt.Sprintf("macros %s: %v", dir, err), Err: err}
		}
	}
	return registry, nil
}

func asCompileError(err error) (*rosetta.CompileError, bool) {
	var ce *rosetta.CompileError
	ok := errors.As(err, &ce)
	return ce, ok
}

// errorCode picks the code reported for a load or compile failure.
func errorCode(err error) (string, string) {
	if ce, ok := asCompileError(err); ok {
		return ce.Code, ce.Error()
	}
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code, le.Message
	}
	return ErrCodeGeneric, err.Error()
}
