package rosetta

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Compile error codes (E200-E299)
const (
	ErrCodeSyntax           = "E201" // statement does not parse
	ErrCodeUnknownOp        = "E202" // no opcode or macro by that name
	ErrCodeArguments        = "E203" // missing, duplicate, unknown or surplus argument
	ErrCodeOperand          = "E204" // operand does not fit its slot
	ErrCodeMacro            = "E205" // macro definition or expansion failed
	ErrCodeNotRepresentable = "E206" // instruction has no pseudocode form
)

// CompileError is a compile failure at a source position. Line and Column
// are 1-based; Column is 0 when the whole line is at fault. Pos is set
// instead for errors inside CUE macro files.
type CompileError struct {
	Code    string
	Line    int
	Column  int
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	switch {
	case e.Pos.IsValid():
		return fmt.Sprintf("%s:%d:%d: [%s] %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	case e.Column > 0:
		return fmt.Sprintf("line %d:%d: [%s] %s", e.Line, e.Column, e.Code, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("line %d: [%s] %s", e.Line, e.Code, e.Message)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Warning is a statement skipped in non-strict mode.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Code:    ErrCodeMacro,
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
