package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/marketplace-returns/internal/application/workflow"
)

func transitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "Print the return lifecycle transition table",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := workflow.TransitionTable()
			rows := make([][]string, 0, len(table))
			for _, t := range table {
				rows = append(rows, []string{string(t.From), string(t.Trigger), string(t.To)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"From", "Action", "To"}, rows, nil))
			return nil
		},
	}
}
