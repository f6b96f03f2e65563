package cmd

import (
	"context"
	"fmt"

	"message-notifier/internal/fanout"
	"message-notifier/internal/models"

	"github.com/spf13/cobra"
)

var (
	broadcastRecipient string
	broadcastMessage   string
	broadcastChannels  []string
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Send a message through every channel and report each result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if broadcastRecipient == "" {
			return fmt.Errorf("--recipient is required")
		}
		return withBackend(func(ctx context.Context, b *backend) error {
			order := b.policy.ChannelOrder
			if len(broadcastChannels) > 0 {
				parsed, err := models.ParseChannels(broadcastChannels)
				if err != nil {
					return err
				}
				order = parsed
			}

			recipient, err := b.store.GetRecipient(ctx, broadcastRecipient)
			if err != nil {
				return err
			}

			results := fanout.NewNotifier(b.senders.Targets(order), b.logger).
				NotifyAll(ctx, *recipient, broadcastMessage)
			return printJSON(cmd, results)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the notification tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			if err := b.store.Migrate(ctx); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(broadcastCmd, migrateCmd)

	broadcastCmd.Flags().StringVarP(&broadcastRecipient, "recipient", "r", "", "recipient id")
	broadcastCmd.Flags().StringVarP(&broadcastMessage, "message", "m", "", "message text")
	broadcastCmd.Flags().StringSliceVar(&broadcastChannels, "channels", nil, "channels to use (default: configured order)")
}
