package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scholarscope/harvest-cli/internal/model"
	"github.com/scholarscope/harvest-cli/internal/store"
)

var (
	runsSource string
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past harvest runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent harvest runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Source: runsSource,
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tSTARTED\tFOUND\tCREATED\tRENEWED\tSKIPPED\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				r.ID, r.Source, r.Status, r.StartedAt.Format("2006-01-02 15:04"),
				r.Found, r.Created, r.Renewed, r.Skipped, r.Failed)
		}
		return w.Flush()
	},
}

var runsFailuresCmd = &cobra.Command{
	Use:   "failures <run-id>",
	Short: "Show the page failures recorded for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		failures, err := st.ListPageFailures(ctx, args[0])
		if err != nil {
			return err
		}
		if len(failures) == 0 {
			fmt.Println("no page failures recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "URL\tREASON")
		for _, f := range failures {
			fmt.Fprintf(w, "%s\t%s\n", f.URL, f.Reason)
		}
		return w.Flush()
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsSource, "source", "", "filter by source name")
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "filter by run status")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsFailuresCmd)
	rootCmd.AddCommand(runsCmd)
}
