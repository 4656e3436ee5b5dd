// Package vm provides error handling for the mission virtual machine.
package vm

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of runtime error.
type ErrorType string

const (
	// Fatal errors - the engine cannot be used in its current state
	ErrorInvalidState ErrorType = "INVALID_STATE"
	ErrorSnapshot     ErrorType = "SNAPSHOT"

	// Non-fatal errors - the owning thread takes a fallback and the engine keeps running
	ErrorUnresolvedLabel ErrorType = "UNRESOLVED_LABEL"
	ErrorWrongKind       ErrorType = "WRONG_KIND"
	ErrorUnknownOpcode   ErrorType = "UNKNOWN_OPCODE"
	ErrorFrozenTable     ErrorType = "FROZEN_TABLE"
	ErrorDuplicateLabel  ErrorType = "DUPLICATE_LABEL"
	ErrorBadJump         ErrorType = "BAD_JUMP"
)

// RuntimeError represents a runtime anomaly in the VM.
type RuntimeError struct {
	Type    ErrorType
	Message string
	Label   int // Referenced label if any, 0 otherwise
	Line    int // Source line if available, -1 otherwise
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("[%s] %s at line %d", e.Type, e.Message, e.Line)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// IsFatal returns true if the error prevents further use of the engine.
// Script anomalies never are: the mission data cannot be fixed at runtime.
func (e *RuntimeError) IsFatal() bool {
	switch e.Type {
	case ErrorInvalidState, ErrorSnapshot:
		return true
	default:
		return false
	}
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(errType ErrorType, message string) *RuntimeError {
	return &RuntimeError{
		Type:    errType,
		Message: message,
		Line:    -1,
	}
}

// WithLine returns a copy of the error annotated with a source line.
func (e *RuntimeError) WithLine(line int) *RuntimeError {
	c := *e
	c.Line = line
	return &c
}

// NewUnresolvedLabelError creates an error for a label missing from the reference table.
func NewUnresolvedLabelError(label int) *RuntimeError {
	err := NewRuntimeError(ErrorUnresolvedLabel, fmt.Sprintf("unresolved label %d", label))
	err.Label = label
	return err
}

// NewWrongKindError creates an error for a label bound to an unexpected object kind.
func NewWrongKindError(label int, got Kind, want ...Kind) *RuntimeError {
	err := NewRuntimeError(ErrorWrongKind, fmt.Sprintf("label %d is a %s, want %v", label, got, want))
	err.Label = label
	return err
}

// NewUnknownOpcodeError creates an error for an opcode without a handler.
func NewUnknownOpcodeError(op string) *RuntimeError {
	return NewRuntimeError(ErrorUnknownOpcode, fmt.Sprintf("no handler for opcode %q", op))
}

// NewFrozenTableError creates an error for a bind attempted after initialization.
func NewFrozenTableError(label int) *RuntimeError {
	err := NewRuntimeError(ErrorFrozenTable, fmt.Sprintf("reference table is frozen, cannot bind label %d", label))
	err.Label = label
	return err
}

// NewBadJumpError creates an error for a relative jump leaving the command list.
func NewBadJumpError(target, length int) *RuntimeError {
	return NewRuntimeError(ErrorBadJump, fmt.Sprintf("jump target %d outside 0..%d", target, length-1))
}

// IsErrorType reports whether err is a RuntimeError of the given type.
func IsErrorType(err error, errType ErrorType) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Type == errType
}
