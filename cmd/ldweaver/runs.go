package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/alvmarrod/ld-weaver/internal/storage"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewStorage(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer store.Close()

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tURLS\tINGESTED\tTRIPLES\tOUTPUT")
			for _, run := range runs {
				output := "-"
				if run.Written {
					output = run.OutputPath
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
					run.RunID, run.StartedAt.Local().Format(time.DateTime),
					run.URLCount, run.Ingested, run.Triples, output)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "ldweaver.db", "run journal database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")

	return cmd
}
