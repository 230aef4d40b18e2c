package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scholarscope/harvest-cli/internal/notify"
)

var notifyLimit int

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Deliver pending renewal notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var sender notify.Sender
		if cfg.Notify.WebhookURL != "" {
			sender = notify.NewWebhookSender(cfg.Notify.WebhookURL, 10*time.Second)
		} else {
			sender = notify.LogSender{}
		}

		sent, failed, err := newLifecycle(st).Deliver(ctx, sender, notifyLimit)
		if err != nil {
			return err
		}
		fmt.Printf("sent %d, failed %d\n", sent, failed)
		return nil
	},
}

func init() {
	notifyCmd.Flags().IntVar(&notifyLimit, "limit", 100, "maximum notifications to deliver")
	rootCmd.AddCommand(notifyCmd)
}
