package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// RuntimeError is an engine-fatal fault. It aborts the run that raised it.
//
// RuntimeError carries enough context to reproduce the fault: the opcode,
// the position of the instruction in the program and the offending operand.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Mnemonic is the opcode of the faulting instruction ("C_PROPOSE").
	Mnemonic string

	// Index is the position of the faulting instruction, -1 when the fault
	// did not come from a program.
	Index int

	// Operand is the offending operand, -1 for arity or whole-instruction
	// faults.
	Operand int

	// Details contains additional context.
	Details map[string]string

	// RunID names the run the fault aborted, empty outside Execute.
	RunID string

	err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMalformed indicates wrong arity, wrong operand kinds or a
	// register outside the modeled range.
	ErrCodeMalformed RuntimeErrorCode = "MALFORMED_INSTRUCTION"

	// ErrCodeInvalidParameter indicates an operand value the handler cannot
	// accept (depth < 1, threshold outside [0,1], negative agent id,
	// mismatched tensor shapes).
	ErrCodeInvalidParameter RuntimeErrorCode = "INVALID_PARAMETER"

	// ErrCodeDuplicateProposal indicates a proposal id that is already in
	// the table.
	ErrCodeDuplicateProposal RuntimeErrorCode = "DUPLICATE_PROPOSAL"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Mnemonic == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Operand >= 0 {
		return fmt.Sprintf("%s: %s (instruction %d %s, operand %d)", e.Code, e.Message, e.Index, e.Mnemonic, e.Operand)
	}
	return fmt.Sprintf("%s: %s (instruction %d %s)", e.Code, e.Message, e.Index, e.Mnemonic)
}

// Unwrap returns the domain error that caused the fault, if any.
func (e *RuntimeError) Unwrap() error { return e.err }

// IsMalformed returns true if the error is a MALFORMED_INSTRUCTION fault.
// Uses errors.As to handle wrapped errors.
func IsMalformed(err error) bool {
	return hasCode(err, ErrCodeMalformed)
}

// IsInvalidParameter returns true if the error is an INVALID_PARAMETER fault.
func IsInvalidParameter(err error) bool {
	return hasCode(err, ErrCodeInvalidParameter)
}

// IsDuplicateProposal returns true if the error is a DUPLICATE_PROPOSAL fault.
func IsDuplicateProposal(err error) bool {
	return hasCode(err, ErrCodeDuplicateProposal)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewMalformedError creates a MALFORMED_INSTRUCTION fault for operand
// (-1 for the whole instruction).
func NewMalformedError(operand int, msg string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMalformed,
		Message: msg,
		Index:   -1,
		Operand: operand,
	}
}

// NewInvalidParameterError creates an INVALID_PARAMETER fault wrapping cause.
func NewInvalidParameterError(operand int, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidParameter,
		Message: cause.Error(),
		Index:   -1,
		Operand: operand,
		err:     cause,
	}
}

// NewDuplicateProposalError creates a DUPLICATE_PROPOSAL fault for id.
func NewDuplicateProposalError(id int64, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDuplicateProposal,
		Message: fmt.Sprintf("proposal %d already exists", id),
		Index:   -1,
		Operand: 0,
		Details: map[string]string{
			"proposal_id": strconv.FormatInt(id, 10),
		},
		err: cause,
	}
}

// at stamps the instruction position onto e.
func (e *RuntimeError) at(index int, mnemonic string) *RuntimeError {
	e.Index = index
	e.Mnemonic = mnemonic
	return e
}
