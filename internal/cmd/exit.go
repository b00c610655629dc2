package cmd

import (
	"errors"
	"fmt"
)

// Process exit codes
const (
	ExitOK        = 0 // every block Passed or Skipped
	ExitFailed    = 1 // at least one block Failed
	ExitMalformed = 2 // the document has an unterminated fence
	ExitUsage     = 3 // bad flags, bad configuration or an I/O error
)

// ExitError carries the exit code a command finished with.
// Err is nil when everything worth saying has already been printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(format string, args ...any) error {
	return &ExitError{Code: ExitUsage, Err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by Execute to a process exit code.
// Errors that are not an *ExitError come from cobra's own flag and argument
// validation and count as usage errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}
