package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/marketplace-returns/internal/container"
)

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <case-id|return-number>",
		Short: "Write a return's timeline workbook to the export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withContainer(ctx, func(c *container.Container) error {
				rc, err := resolveCase(ctx, c, args[0])
				if err != nil {
					return err
				}
				path, err := c.Services().Exporter.Export(ctx, rc.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.Services().Files.GetFullPath(path))
				return nil
			})
		},
	}
}
