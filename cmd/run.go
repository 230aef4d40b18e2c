package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <source>",
	Short: "Harvest a single source's listing page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		sources, err := loadSources()
		if err != nil {
			return err
		}
		src, err := sources.Get(args[0])
		if err != nil {
			return err
		}

		// Expire overdue records first so renewals can be detected this run.
		if _, err := newLifecycle(st).Sweep(ctx); err != nil {
			return err
		}

		run, err := newOrchestrator(st).Harvest(ctx, src)
		if err != nil {
			return eris.Wrapf(err, "harvest %s", src.Name)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
