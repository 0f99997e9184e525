package cli

import (
	"errors"
	"fmt"

	"recordkeeper-hq/keeper/pkg/config"
	"recordkeeper-hq/keeper/pkg/retention"
)

// Process exit statuses.
const (
	ExitOK      = 0
	ExitConfig  = 1
	ExitRuntime = 2
)

// UsageError reports invalid command-line input.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewUsageError creates a new UsageError.
func NewUsageError(format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	var verr config.ValidationError
	if retention.IsConfigurationError(err) || errors.As(err, &usage) || errors.As(err, &verr) {
		return ExitConfig
	}
	return ExitRuntime
}
