package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scholarscope/harvest-cli/internal/model"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Harvest every configured source sequentially",
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

		if _, err := newLifecycle(st).Sweep(ctx); err != nil {
			return err
		}

		o := newOrchestrator(st)
		var runs []*model.Run
		for _, name := range sources.Names() {
			src, err := sources.Get(name)
			if err != nil {
				return err
			}
			run, err := o.Harvest(ctx, src)
			if err != nil {
				// One broken source never stops the batch.
				zap.L().Error("source harvest failed",
					zap.String("source", name),
					zap.Error(err),
				)
			}
			if run != nil {
				runs = append(runs, run)
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tSTATUS\tFOUND\tCREATED\tRENEWED\tSKIPPED\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				r.Source, r.Status, r.Found, r.Created, r.Renewed, r.Skipped, r.Failed)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
}
