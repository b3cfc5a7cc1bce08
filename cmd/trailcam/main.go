// Package main provides the entry point for the trailcam CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"trailcam/cmd/trailcam/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "trailcam",
		Short: "Object detection and trajectory overlays for video files",
		Long: `trailcam detects and tracks objects in a video, draws their boxes and
motion trails, and writes an annotated copy plus a processing report.

Commands:
  run       Process one video
  models    List the model catalog
  history   Show past runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewModelsCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(commands.ExitCode(err))
}
