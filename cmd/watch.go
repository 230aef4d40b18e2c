package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <record-id> <email>",
	Short: "Register a watcher to be notified when a record reopens",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		w, err := st.CreateWatcher(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("watching %s as %s (%s)\n", w.RecordID, w.Email, w.ID)
		return nil
	},
}

var watchersCmd = &cobra.Command{
	Use:   "watchers <record-id>",
	Short: "List the watchers registered on a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		watchers, err := st.ListWatchers(ctx, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNOTIFIED FOR")
		for _, wa := range watchers {
			year := "-"
			if wa.NotifiedForYear > 0 {
				year = fmt.Sprintf("%d", wa.NotifiedForYear)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", wa.ID, wa.Email, year)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(watchersCmd)
}
