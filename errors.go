// SPDX-Licence-Identifier: MIT

package goseccompc

import (
	"errors"
	"fmt"
)

// Authoring errors: the rule set itself is wrong.
var (
	ErrDuplicateUnconditionalRule = errors.New("duplicate unconditional rule")
	ErrUnknownSyscall             = errors.New("unknown syscall")
	ErrUnknownArchitecture        = errors.New("unknown architecture")
	ErrInvalidErrno               = errors.New("invalid errno")
	ErrInvalidAction              = errors.New("invalid action")
	ErrInvalidArgument            = errors.New("invalid argument predicate")
	ErrUnreachableRule            = errors.New("unreachable rule")
)

// Compilation errors: the emitted program cannot be loaded as is.
var (
	ErrJumpOverflow       = errors.New("jump overflow")
	ErrProgramTooLarge    = errors.New("program too large")
	ErrMalformedJump      = errors.New("malformed jump")
	ErrMissingReturn      = errors.New("program does not end with a return")
	ErrInvalidLoad        = errors.New("invalid load")
	ErrUnreachableCode    = errors.New("unreachable instruction")
	ErrInvalidInstruction = errors.New("invalid instruction")
)

// NoRule is the AuthoringError.Rule value of errors not tied to a rule.
const NoRule = -1

// AuthoringError reports a problem in the rule set, found before any
// instruction is emitted.
type AuthoringError struct {
	// Rule is the index of the offending rule, or NoRule.
	Rule    int
	Syscall uint32
	Err     error
}

func (e *AuthoringError) Error() string {
	if e.Rule == NoRule {
		return e.Err.Error()
	}
	return fmt.Sprintf("rule %d (syscall %d): %v", e.Rule, e.Syscall, e.Err)
}

func (e *AuthoringError) Unwrap() error { return e.Err }

// CompilationError reports a problem in the instruction stream.
type CompilationError struct {
	// Index of the offending instruction, -1 when the whole program is at fault.
	Index int
	Err   error
}

func (e *CompilationError) Error() string {
	if e.Index < 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }

func authoringErr(rule int, syscall uint32, err error, format string, args ...interface{}) error {
	if format != "" {
		err = fmt.Errorf("%w: "+format, append([]interface{}{err}, args...)...)
	}
	return &AuthoringError{Rule: rule, Syscall: syscall, Err: err}
}

func compilationErr(index int, err error, format string, args ...interface{}) error {
	if format != "" {
		err = fmt.Errorf("%w: "+format, append([]interface{}{err}, args...)...)
	}
	return &CompilationError{Index: index, Err: err}
}
