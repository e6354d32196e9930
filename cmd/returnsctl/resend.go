package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/marketplace-returns/internal/container"
	"github.com/garyjia/marketplace-returns/internal/domain/event"
)

func resendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend <id|return-number> <event-code>",
		Short: "Deliver a case's notification again and wait for the outcome",
		Long: "Rebuilds the event from the case's current fields and runs the notification\n" +
			"pipeline in the foreground. Keys already delivered are reported as duplicates\n" +
			"when the Redis delivery guard is enabled.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withContainer(ctx, func(c *container.Container) error {
				rc, err := resolveCase(ctx, c, args[0])
				if err != nil {
					return err
				}
				if err := c.Engine().Renotify(ctx, rc.ID, event.Type(args[1])); err != nil {
					return err
				}

				deliveries, err := c.Repositories().Deliveries.ListByCase(ctx, rc.ID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(deliveries))
				for _, d := range deliveries {
					if d.EventCode != args[1] {
						continue
					}
					rows = append(rows, []string{
						formatTime(d.CreatedAt), d.Channel, d.Recipient, d.Status, fmt.Sprint(d.Attempts), d.LastError,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Time", "Channel", "Recipient", "Status", "Attempts", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
