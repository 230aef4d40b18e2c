package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rotisserie/eris"
)

var sweepCatchUpDays int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire records whose deadline passed the grace window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		lc := newLifecycle(st)
		expired, err := lc.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("expired %d record(s)\n", expired)

		if sweepCatchUpDays > 0 {
			since := time.Now().AddDate(0, 0, -sweepCatchUpDays)
			queued, err := lc.EnqueueRecentRenewals(ctx, since)
			if err != nil {
				return err
			}
			fmt.Printf("queued %d catch-up notification(s)\n", queued)
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepCatchUpDays, "catch-up-days", 0,
		"also queue notifications for watchers added after renewals in the last N days")
	rootCmd.AddCommand(sweepCmd)
}
