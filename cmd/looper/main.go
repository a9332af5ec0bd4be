// Package main provides the looper CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	version = "0.1.0"
	pretty  = term.IsTerminal(int(os.Stdout.Fd()))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "looper",
		Short: "Bounded agent iteration loop",
		Long: `looper runs an AI coding agent against a prompt file in a bounded,
observable loop: each iteration invokes the agent, records the outcome
to an append-only session ledger, optionally commits the working tree,
and evaluates stop conditions until the task completes or the iteration
budget runs out.

Use 'looper run <prompt.md>' to start a loop.
Use 'looper sessions' to list past runs.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", pretty, "Pretty print output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the looper version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("looper %s\n", version)
		},
	}
}
