package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rflorenc/awxctl/internal/config"
	"github.com/rflorenc/awxctl/internal/monitor"
	"github.com/rflorenc/awxctl/internal/platform"
	"github.com/rflorenc/awxctl/internal/prompt"
	"github.com/rflorenc/awxctl/internal/resource"
)

// Exit codes. Scripts branch on these, so every class of failure has a
// stable number.
const (
	ExitOK         = 0
	ExitRemote     = 1 // the controller rejected or failed the request
	ExitUsage      = 2 // bad invocation
	ExitValidation = 3 // local validation or missing input
	ExitTimeout    = 4 // monitor wait budget elapsed
	ExitTransport  = 5 // retries exhausted, remote state unknown
	ExitProtocol   = 6 // pagination or response protocol violation
)

// UsageError marks a bad invocation: unknown flag, wrong argument
// count, and the like.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// exactArgs is cobra.ExactArgs with the error classified as usage.
func exactArgs(n int) cobra.PositionalArgs {
	inner := cobra.ExactArgs(n)
	return func(cmd *cobra.Command, args []string) error {
		if err := inner(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// ExitCode maps an error from command execution to the process exit
// code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		remote      *platform.RemoteError
		transport   *platform.TransportError
		pagination  *platform.PaginationError
		validation  *resource.ValidationError
		missing     *prompt.MissingValueError
		unknownRes  *resource.UnknownResourceError
		unsupported *resource.UnsupportedOperationError
		timeout     *monitor.TimeoutError
		pollFailed  *monitor.TransportError
		jobFailed   *JobFailedError
		usage       *UsageError
		badConfig   *config.ParseError
	)
	switch {
	case errors.As(err, &timeout):
		return ExitTimeout
	case errors.As(err, &transport), errors.As(err, &pollFailed):
		return ExitTransport
	case errors.As(err, &pagination):
		return ExitProtocol
	case errors.As(err, &validation), errors.As(err, &missing), errors.As(err, &badConfig):
		return ExitValidation
	case errors.As(err, &unknownRes), errors.As(err, &unsupported), errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &remote), errors.As(err, &jobFailed):
		return ExitRemote
	}
	// Cobra reports unknown commands and flags as plain errors.
	msg := err.Error()
	if strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag") {
		return ExitUsage
	}
	return ExitRemote
}
