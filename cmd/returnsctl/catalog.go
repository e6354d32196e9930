package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyjia/marketplace-returns/internal/container"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage notification templates and event triggers",
	}
	cmd.AddCommand(catalogImportCmd())
	cmd.AddCommand(catalogPreviewCmd())
	cmd.AddCommand(catalogListCmd())
	return cmd
}

func catalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Upsert every template and trigger in a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			return withContainer(ctx, func(c *container.Container) error {
				res, err := c.Services().Catalog.ImportCatalog(ctx, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d templates and %d triggers\n", res.Templates, res.Triggers)
				return nil
			})
		},
	}
}

func catalogPreviewCmd() *cobra.Command {
	var vars []string

	cmd := &cobra.Command{
		Use:   "preview <template-code>",
		Short: "Render a template with sample variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]string, len(vars))
			for _, kv := range vars {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("variable %q is not key=value", kv)
				}
				values[k] = v
			}

			ctx := cmd.Context()
			return withContainer(ctx, func(c *container.Container) error {
				out := cmd.OutOrStdout()
				if t, err := c.Repositories().Templates.GetByCode(ctx, args[0]); err == nil {
					if slots := positionalSlots(t, values); len(slots) > 0 {
						fmt.Fprintln(out, renderTable([]string{"Slot", "Variable", "Value"}, slots, nil))
					}
				}

				msg, err := c.Services().Catalog.Preview(ctx, args[0], values)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "channel: %s\n", msg.Channel)
				if msg.Subject != "" {
					fmt.Fprintf(out, "subject: %s\n", msg.Subject)
				}
				if msg.Header != "" {
					fmt.Fprintf(out, "header:  %s\n", msg.Header)
				}
				fmt.Fprintf(out, "\n%s\n", msg.Body)
				if msg.Footer != "" {
					fmt.Fprintf(out, "\n%s\n", msg.Footer)
				}
				for _, b := range msg.Buttons {
					fmt.Fprintf(out, "[%s] %s\n", b.Text, b.URL)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&vars, "var", "v", nil, "template variable as key=value (repeatable)")
	return cmd
}

func catalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the event triggers currently in force",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withContainer(ctx, func(c *container.Container) error {
				snap := c.Registry().Snapshot()
				rows := make([][]string, 0)
				for _, code := range snap.EventCodes() {
					trig, _ := snap.Trigger(code)
					for _, ch := range notification.AllChannels {
						b, ok := trig.Channels[ch]
						if !ok {
							continue
						}
						state := "disabled"
						if trig.Usable(ch) {
							state = "enabled"
						}
						rows = append(rows, []string{code, trig.Category, string(ch), b.TemplateCode, state})
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Event", "Category", "Channel", "Template", "State"}, rows, nil))
				return nil
			})
		},
	}
}

// positionalSlots maps each {{n}} a structured template uses to the declared
// variable that feeds it
func positionalSlots(t *notification.Template, values map[string]string) [][]string {
	highest := t.MaxPosition()
	rows := make([][]string, 0, highest)
	for i := 1; i <= highest; i++ {
		name, value := "-", "(missing)"
		if i <= len(t.Variables) {
			name = t.Variables[i-1]
			if v, ok := values[name]; ok {
				value = v
			}
		}
		rows = append(rows, []string{fmt.Sprintf("{{%d}}", i), name, value})
	}
	return rows
}
