package cli

import (
	"errors"
	"fmt"

	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
)

// Process exit codes.
const (
	ExitSuccess      = 0 // every test passed
	ExitFailure      = 1 // a test or provisioning step failed
	ExitCommandError = 2 // unknown suite, bad flags or arguments, fatal environment error
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code for the error a command returned:
// ExitSuccess for nil, the carried code for an ExitError anywhere in the
// chain, ExitFailure otherwise.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// dispatchExit maps a dispatch outcome to the command's error. Unknown
// suites and environment errors are command errors; failed tests or steps
// are failures.
func dispatchExit(o runner.Outcome, err error) error {
	switch {
	case err != nil:
		return WrapExitError(ExitCommandError, "dispatch", err)
	case !o.OK:
		return NewExitError(ExitFailure, fmt.Sprintf("%s: one or more tests failed", o.Command))
	}
	return nil
}
