package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/workflow"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/sqlite"
)

// OrderLineRepository implements port.OrderLineProvider over the local
// order_items table. The returnable quantity is the ordered quantity minus
// every return of the line that was not rejected or cancelled.
type OrderLineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderLineRepository creates a new order line repository
func NewOrderLineRepository(db *sql.DB, logger *zap.Logger) *OrderLineRepository {
	return &OrderLineRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrderLine loads an order line with its remaining returnable quantity
func (r *OrderLineRepository) GetOrderLine(ctx context.Context, orderItemID int64) (*port.OrderLine, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.order_number, oi.product_id, oi.product_name,
			oi.quantity, oi.line_total, oi.currency,
			oi.customer_id, oi.customer_name, oi.customer_email, oi.customer_phone,
			oi.vendor_id, oi.vendor_name, oi.vendor_email, oi.vendor_phone,
			oi.quantity - COALESCE((
				SELECT SUM(rc.quantity) FROM return_cases rc
				WHERE rc.order_item_id = oi.id AND rc.status NOT IN (?, ?)
			), 0)
		FROM order_items oi
		WHERE oi.id = ?
	`

	var line port.OrderLine
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query,
		workflow.StateRejected, workflow.StateCancelled, orderItemID,
	).Scan(
		&line.ItemID,
		&line.OrderID,
		&line.OrderNumber,
		&line.ProductID,
		&line.ProductName,
		&line.Quantity,
		&line.LineTotal,
		&line.Currency,
		&line.CustomerID,
		&line.CustomerName,
		&line.CustomerEmail,
		&line.CustomerPhone,
		&line.VendorID,
		&line.VendorName,
		&line.VendorEmail,
		&line.VendorPhone,
		&line.ReturnableQuantity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get order line", zap.Int64("order_item_id", orderItemID), zap.Error(err))
		return nil, fmt.Errorf("failed to get order line: %w", err)
	}

	if line.ReturnableQuantity < 0 {
		line.ReturnableQuantity = 0
	}
	return &line, nil
}

// SaveOrderLine inserts or replaces an order line. ReturnableQuantity is ignored.
func (r *OrderLineRepository) SaveOrderLine(ctx context.Context, line *port.OrderLine) error {
	query := `
		INSERT INTO order_items (
			id, order_id, order_number, product_id, product_name, quantity, line_total, currency,
			customer_id, customer_name, customer_email, customer_phone,
			vendor_id, vendor_name, vendor_email, vendor_phone
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			order_id = excluded.order_id,
			order_number = excluded.order_number,
			product_id = excluded.product_id,
			product_name = excluded.product_name,
			quantity = excluded.quantity,
			line_total = excluded.line_total,
			currency = excluded.currency,
			customer_id = excluded.customer_id,
			customer_name = excluded.customer_name,
			customer_email = excluded.customer_email,
			customer_phone = excluded.customer_phone,
			vendor_id = excluded.vendor_id,
			vendor_name = excluded.vendor_name,
			vendor_email = excluded.vendor_email,
			vendor_phone = excluded.vendor_phone
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		line.ItemID, line.OrderID, line.OrderNumber, line.ProductID, line.ProductName,
		line.Quantity, line.LineTotal, line.Currency,
		line.CustomerID, line.CustomerName, line.CustomerEmail, line.CustomerPhone,
		line.VendorID, line.VendorName, line.VendorEmail, line.VendorPhone,
	)
	if err != nil {
		r.logger.Error("Failed to save order line", zap.Int64("order_item_id", line.ItemID), zap.Error(err))
		return fmt.Errorf("failed to save order line: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.OrderLineProvider = (*OrderLineRepository)(nil)
