// Package main session history commands.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/looper/internal/config"
	"github.com/joss/looper/internal/render"
	"github.com/joss/looper/internal/session"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session history commands",
		Long:  "List and inspect past runs recorded in the run index",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent runs",
		Run: func(cmd *cobra.Command, args []string) {
			idx := openIndex()
			defer idx.Close()

			runs, err := idx.ListRuns(context.Background(), limit)
			if err != nil {
				exitOnError(err)
			}

			r := render.New(pretty)
			fmt.Print(r.Runs(runs))
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	showCmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Show iteration history for a session",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			idx := openIndex()
			defer idx.Close()

			iters, err := idx.IterationsForSession(context.Background(), args[0])
			if err != nil {
				exitOnError(err)
			}

			r := render.New(pretty)
			fmt.Print(r.Iterations(args[0], iters))
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(showCmd)

	// Bare "looper sessions" lists.
	cmd.Run = listCmd.Run

	return cmd
}

func openIndex() *session.Index {
	idx, err := session.OpenIndex(config.Home())
	if err != nil {
		exitOnError(fmt.Errorf("open run index: %w", err))
	}
	return idx
}
