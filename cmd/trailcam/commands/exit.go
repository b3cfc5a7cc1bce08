package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trailcam/runner"
	"trailcam/stream"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitSetup       = 1
	ExitStream      = 2
	ExitDevice      = 3
	ExitInterrupted = 130
)

// Version is set at build time with -ldflags "-X trailcam/cmd/trailcam/commands.Version=..."
var Version = "dev"

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, runner.ErrInterrupted):
		return ExitInterrupted
	case errors.Is(err, runner.ErrDevice):
		return ExitDevice
	case errors.Is(err, stream.ErrStreamOpen), errors.Is(err, stream.ErrSinkOpen):
		return ExitStream
	default:
		return ExitSetup
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "trailcam %s\n", Version)
		},
	}
}
