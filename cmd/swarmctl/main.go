// Command swarmctl drives a swarm run end to end from the command line.
//
// # Basic Usage
//
// Validate a configuration file:
//
//	swarmctl config validate --config swarm.yaml
//
// Run a swarm against a goal, using the configured provider:
//
//	swarmctl run --config swarm.yaml --goal "summarize open incidents"
//
// Show the recorded job status of one run in the job store:
//
//	swarmctl status --config swarm.yaml --swarm-id <id>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "swarmctl",
		Short:        "swarmctl drives multi-agent swarm runs",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildRunCmd(),
		buildStatusCmd(),
		buildConfigCmd(),
	)
	return rootCmd
}
