package errors

import (
	"errors"
	"fmt"
)

// Exit codes for kraftcheck
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitLaunchFailed   = 2
	ExitChecksFailed   = 3
	ExitParseError     = 4
	ExitConfigError    = 5
	ExitProcessControl = 6
)

// KraftError is the base error type for kraftcheck
type KraftError struct {
	Code    int
	Message string
	Cause   error
}

func (e *KraftError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *KraftError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *KraftError) ExitCode() int {
	return e.Code
}

// New creates a new KraftError
func New(code int, message string) *KraftError {
	return &KraftError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a KraftError
func Wrap(code int, message string, cause error) *KraftError {
	return &KraftError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// LaunchError returns an error for a launcher binary that could not be started
func LaunchError(command string, cause error) *KraftError {
	return Wrap(ExitLaunchFailed, fmt.Sprintf("failed to launch %s", command), cause)
}

// ProcessControlError returns an error for a terminate or kill that did not take effect
func ProcessControlError(op string, pid int, cause error) *KraftError {
	return Wrap(ExitProcessControl, fmt.Sprintf("%s of pid %d failed", op, pid), cause)
}

// ChecksFailed returns the error reported when a run finished with failing cases
func ChecksFailed(failed, errored, total int) *KraftError {
	return New(ExitChecksFailed, fmt.Sprintf("%d failed, %d errored out of %d test cases", failed, errored, total))
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *KraftError {
	return Wrap(ExitConfigError, message, cause)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *KraftError {
	return New(ExitParseError, message)
}

// ParseError describes an invalid field in a test-case description.
// Index is the zero-based position of the test case in its file, or -1 when
// the file as a whole could not be read as a list of test cases.
type ParseError struct {
	Index int
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return "invalid descriptions: " + e.Msg
	}
	if e.Field == "" {
		return fmt.Sprintf("test case %d: %s", e.Index, e.Msg)
	}
	return fmt.Sprintf("test case %d: %s: %s", e.Index, e.Field, e.Msg)
}

// ExitCode returns the exit code for description errors
func (e *ParseError) ExitCode() int {
	return ExitParseError
}

// exitCoder is implemented by every error type in this package
type exitCoder interface {
	ExitCode() int
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
