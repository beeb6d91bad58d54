package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentorg/snapshot/sqlite"
)

func newRunsCmd() *cobra.Command {
	var (
		dbPath string
		show   string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs stored in a snapshot database",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			store, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if show != "" {
				snap, err := store.Load(cmd.Context(), show)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s  %s\n", snap.RunID, snap.Goal)
				printTasks(out, snap.Tasks)
				return nil
			}

			runs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range runs {
				state := "running"
				if r.Complete {
					state = "complete"
				}
				_, _ = fmt.Fprintf(out, "%s  %s  %-8s %3d tasks  %s\n",
					r.RunID, r.SavedAt.Local().Format("2006-01-02 15:04:05"), state, r.Tasks, truncate(r.Goal, 60))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "agentorg.db", "SQLite database for run snapshots")
	cmd.Flags().StringVar(&show, "show", "", "Print the task table of one run")
	return cmd
}
