package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"go.uber.org/zap"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (exit code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode maps err to a process exit code. Errors without an explicit
// code (flag parsing, unknown commands) are usage errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return foundry.ExitInvalidArgument
}

// ExitWithCode logs err and returns the matching ExitError.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) error {
	logger.Error(message, zap.Error(err), zap.Int("exit_code", code))
	return exitError(code, message, err)
}
