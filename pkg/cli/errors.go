package cli

import (
	"errors"
	"fmt"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/config"
)

// Exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitConfig       = 2
	ExitCloudRequest = 3
)

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

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *cloud.ConfigError
	var valErr config.ValidationError
	var cloudErr *cloud.CloudRequestError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		return ExitConfig
	case errors.As(err, &cloudErr):
		return ExitCloudRequest
	default:
		return ExitFailure
	}
}
