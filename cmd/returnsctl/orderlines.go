package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/container"
)

// orderLineDoc is one order line in a seed file
type orderLineDoc struct {
	ItemID      int64  `yaml:"item_id" validate:"required,gt=0"`
	OrderID     int64  `yaml:"order_id" validate:"required,gt=0"`
	OrderNumber string `yaml:"order_number" validate:"required"`
	ProductID   int64  `yaml:"product_id" validate:"required,gt=0"`
	ProductName string `yaml:"product_name" validate:"required"`
	Quantity    int    `yaml:"quantity" validate:"required,gt=0"`
	LineTotal   string `yaml:"line_total" validate:"required,numeric"`
	Currency    string `yaml:"currency" validate:"required,len=3"`

	Customer partyDoc `yaml:"customer"`
	Vendor   partyDoc `yaml:"vendor"`
}

type partyDoc struct {
	ID    int64  `yaml:"id" validate:"required,gt=0"`
	Name  string `yaml:"name" validate:"required"`
	Email string `yaml:"email" validate:"required,email"`
	Phone string `yaml:"phone" validate:"omitempty,e164"`
}

// parseOrderLines decodes and validates a seed file
func parseOrderLines(r io.Reader) ([]*port.OrderLine, error) {
	var doc struct {
		OrderLines []orderLineDoc `yaml:"order_lines"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}

	v := validator.New()
	lines := make([]*port.OrderLine, 0, len(doc.OrderLines))
	for i, d := range doc.OrderLines {
		if err := v.Struct(d); err != nil {
			return nil, fmt.Errorf("order line %d: %w", i, err)
		}
		total, err := decimal.NewFromString(d.LineTotal)
		if err != nil {
			return nil, fmt.Errorf("order line %d: line_total: %w", i, err)
		}
		lines = append(lines, &port.OrderLine{
			OrderID:       d.OrderID,
			OrderNumber:   d.OrderNumber,
			ItemID:        d.ItemID,
			ProductID:     d.ProductID,
			ProductName:   d.ProductName,
			Quantity:      d.Quantity,
			LineTotal:     total,
			Currency:      d.Currency,
			CustomerID:    d.Customer.ID,
			CustomerName:  d.Customer.Name,
			CustomerEmail: d.Customer.Email,
			CustomerPhone: d.Customer.Phone,
			VendorID:      d.Vendor.ID,
			VendorName:    d.Vendor.Name,
			VendorEmail:   d.Vendor.Email,
			VendorPhone:   d.Vendor.Phone,
		})
	}
	return lines, nil
}

func orderLinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order-lines",
		Short: "Maintain the local copy of order lines returns are raised against",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "load <file.yaml>",
		Short: "Insert or replace order lines from a seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			lines, err := parseOrderLines(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withContainer(ctx, func(c *container.Container) error {
				for _, line := range lines {
					if err := c.Repositories().OrderLines.SaveOrderLine(ctx, line); err != nil {
						return fmt.Errorf("save item %d: %w", line.ItemID, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d order lines\n", len(lines))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <item-id>",
		Short: "Show an order line and how much of it can still be returned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var itemID int64
			if _, err := fmt.Sscan(args[0], &itemID); err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			ctx := cmd.Context()
			return withContainer(ctx, func(c *container.Container) error {
				line, err := c.Repositories().OrderLines.GetOrderLine(ctx, itemID)
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Order", line.OrderNumber},
					{"Product", line.ProductName},
					{"Quantity", fmt.Sprint(line.Quantity)},
					{"Returnable", fmt.Sprint(line.ReturnableQuantity)},
					{"Line total", line.LineTotal.StringFixed(2) + " " + line.Currency},
					{"Customer", fmt.Sprintf("%s <%s>", line.CustomerName, line.CustomerEmail)},
					{"Vendor", fmt.Sprintf("%s <%s>", line.VendorName, line.VendorEmail)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	})

	return cmd
}
