package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/marketplace-returns/internal/application/ledger"
	"github.com/garyjia/marketplace-returns/internal/container"
)

func trackingCmd() *cobra.Command {
	var withDeliveries bool

	cmd := &cobra.Command{
		Use:   "tracking <case-id|return-number>",
		Short: "Show a return's tracking ledger and time spent per state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withContainer(ctx, func(c *container.Container) error {
				rc, err := resolveCase(ctx, c, args[0])
				if err != nil {
					return err
				}
				tl, err := c.Services().Ledger.Timeline(ctx, rc.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %s  (order %s, %s)\n\n", rc.ReturnNumber, rc.Status, rc.OrderNumber, rc.ProductName)

				rows := make([][]string, 0, len(tl.Entries))
				for _, e := range tl.Entries {
					rows = append(rows, []string{
						formatTime(e.Timestamp), string(e.Status), string(e.ActorType), e.Location, e.Description,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Time", "Status", "Actor", "Location", "Description"}, rows, nil))

				fmt.Fprintln(out)
				fmt.Fprintln(out, durationTable(tl.Durations))

				if !withDeliveries {
					return nil
				}
				deliveries, err := c.Repositories().Deliveries.ListByCase(ctx, rc.ID)
				if err != nil {
					return err
				}
				drows := make([][]string, 0, len(deliveries))
				for _, d := range deliveries {
					drows = append(drows, []string{
						formatTime(d.CreatedAt), d.EventCode, d.Channel, d.Recipient, d.Status, fmt.Sprint(d.Attempts),
					})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"Time", "Event", "Channel", "Recipient", "Status", "Attempts"}, drows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&withDeliveries, "deliveries", "d", false, "also list notification deliveries")
	return cmd
}

func durationTable(durations []ledger.StateDuration) string {
	rows := make([][]string, 0, len(durations)+1)
	for _, d := range durations {
		state := string(d.State)
		if d.Current {
			state += " *"
		}
		rows = append(rows, []string{state, formatTime(d.EnteredAt), formatDuration(d.Duration)})
	}
	rows = append(rows, []string{"total", "", formatDuration(ledger.Total(durations))})
	return renderTable([]string{"State", "Entered", "Duration"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
}
