package cmd

import (
	"context"
	"fmt"

	"message-notifier/internal/intake"
	"message-notifier/internal/models"

	"github.com/spf13/cobra"
)

var (
	createRecipient string
	createMessage   string
	createInline    bool

	listStatus string
	listLimit  int
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a notification and schedule its delivery",
	RunE: func(cmd *cobra.Command, args []string) error {
		if createRecipient == "" {
			return fmt.Errorf("--recipient is required")
		}
		return withBackend(func(ctx context.Context, b *backend) error {
			trigger, done, err := b.trigger(ctx, createInline)
			if err != nil {
				return err
			}

			n, submitErr := intake.NewService(b.store, trigger, b.logger).Submit(ctx, createRecipient, createMessage)
			done()
			if n == nil {
				return submitErr
			}

			if createInline {
				// the pool has drained, report the record as the first cycle left it
				if latest, err := b.store.GetByID(ctx, n.ID); err == nil {
					n = latest
				}
			}
			if err := printJSON(cmd, n); err != nil {
				return err
			}
			return submitErr
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			n, err := b.store.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, n)
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := models.Status(listStatus)
		switch status {
		case models.StatusPending, models.StatusSent, models.StatusFailed:
		default:
			return fmt.Errorf("unknown status %q", listStatus)
		}
		return withBackend(func(ctx context.Context, b *backend) error {
			items, err := b.store.ListByStatus(ctx, status, listLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd, items)
		})
	},
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <id>",
	Short: "Run one dispatch cycle for a notification and wait for it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			svc, err := b.dispatcher()
			if err != nil {
				return err
			}
			n, err := svc.DispatchOnce(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, n)
		})
	},
}

func init() {
	rootCmd.AddCommand(createCmd, getCmd, listCmd, dispatchCmd)

	createCmd.Flags().StringVarP(&createRecipient, "recipient", "r", "", "recipient id")
	createCmd.Flags().StringVarP(&createMessage, "message", "m", "", "message text")
	createCmd.Flags().BoolVar(&createInline, "inline", false, "dispatch in-process instead of through Zeebe")

	listCmd.Flags().StringVar(&listStatus, "status", string(models.StatusPending), "pending, sent or failed")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum number of rows")
}
