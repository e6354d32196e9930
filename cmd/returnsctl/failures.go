package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/container"
)

func failuresCmd() *cobra.Command {
	var (
		since time.Duration
		limit int
	)

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List notifications that could not be rendered or delivered",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withContainer(ctx, func(c *container.Container) error {
				filter := port.DeliveryFilter{Limit: limit}
				if since > 0 {
					filter.Since = time.Now().Add(-since)
				}
				failures, err := c.Repositories().Deliveries.ListFailures(ctx, filter)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(failures) == 0 {
					fmt.Fprintln(out, "No failed notifications.")
					return nil
				}

				rows := make([][]string, 0, len(failures))
				for _, d := range failures {
					rows = append(rows, []string{
						formatTime(d.CreatedAt), fmt.Sprint(d.CaseID), d.EventCode, d.Channel,
						d.TemplateCode, d.Status, fmt.Sprint(d.Attempts), d.LastError,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Time", "Case", "Event", "Channel", "Template", "Status", "Attempts", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look back this far (0 for everything)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum rows")
	return cmd
}
