package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/domain/workflow"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/sqlite"
)

const returnCaseColumns = `
	id, return_number, status,
	order_id, order_number, order_item_id, product_id, product_name,
	customer_id, customer_name, customer_email, customer_phone,
	vendor_id, vendor_name, vendor_email, vendor_phone,
	return_type, reason, reason_detail, quantity, refund_amount, line_total, currency,
	rejection_reason, cancellation_reason, pickup_date, carrier_name, awb_number,
	inspection_passed, inspection_notes, refund_method, refund_reference,
	approved_at, rejected_at, cancelled_at, pickup_scheduled_at, in_transit_at,
	picked_up_at, received_at, inspection_started_at, inspected_at,
	refund_initiated_at, refund_completed_at,
	created_at, updated_at`

// ReturnCaseRepository implements port.ReturnCaseRepository
type ReturnCaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReturnCaseRepository creates a new return case repository
func NewReturnCaseRepository(db *sql.DB, logger *zap.Logger) port.ReturnCaseRepository {
	return &ReturnCaseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new return case
func (r *ReturnCaseRepository) Create(ctx context.Context, rc *entity.ReturnCase) error {
	query := `
		INSERT INTO return_cases (
			return_number, status,
			order_id, order_number, order_item_id, product_id, product_name,
			customer_id, customer_name, customer_email, customer_phone,
			vendor_id, vendor_name, vendor_email, vendor_phone,
			return_type, reason, reason_detail, quantity, refund_amount, line_total, currency,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		rc.ReturnNumber, rc.Status,
		rc.OrderID, rc.OrderNumber, rc.OrderItemID, rc.ProductID, rc.ProductName,
		rc.CustomerID, rc.CustomerName, rc.CustomerEmail, rc.CustomerPhone,
		rc.VendorID, rc.VendorName, rc.VendorEmail, rc.VendorPhone,
		rc.ReturnType, rc.Reason, rc.ReasonDetail, rc.Quantity, rc.RefundAmount, rc.LineTotal, rc.Currency,
		rc.CreatedAt, rc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create return case", zap.String("return_number", rc.ReturnNumber), zap.Error(err))
		return fmt.Errorf("failed to create return case: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rc.ID = id
	return nil
}

// GetByID retrieves a return case by ID
func (r *ReturnCaseRepository) GetByID(ctx context.Context, id int64) (*entity.ReturnCase, error) {
	query := `SELECT ` + returnCaseColumns + ` FROM return_cases WHERE id = ?`
	rc, err := scanReturnCase(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, port.ErrNotFound) {
		r.logger.Error("Failed to get return case by ID", zap.Int64("id", id), zap.Error(err))
	}
	return rc, err
}

// GetByReturnNumber retrieves a return case by its return number
func (r *ReturnCaseRepository) GetByReturnNumber(ctx context.Context, returnNumber string) (*entity.ReturnCase, error) {
	query := `SELECT ` + returnCaseColumns + ` FROM return_cases WHERE return_number = ?`
	rc, err := scanReturnCase(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, returnNumber))
	if err != nil && !errors.Is(err, port.ErrNotFound) {
		r.logger.Error("Failed to get return case by number", zap.String("return_number", returnNumber), zap.Error(err))
	}
	return rc, err
}

// CompareAndSetStatus writes the mutable fields of updated only while the
// stored status still equals expected
func (r *ReturnCaseRepository) CompareAndSetStatus(ctx context.Context, id int64, expected workflow.State, updated *entity.ReturnCase) (bool, error) {
	query := `
		UPDATE return_cases SET
			status = ?,
			rejection_reason = ?, cancellation_reason = ?,
			pickup_date = ?, carrier_name = ?, awb_number = ?,
			inspection_passed = ?, inspection_notes = ?,
			refund_method = ?, refund_reference = ?,
			approved_at = ?, rejected_at = ?, cancelled_at = ?,
			pickup_scheduled_at = ?, in_transit_at = ?, picked_up_at = ?,
			received_at = ?, inspection_started_at = ?, inspected_at = ?,
			refund_initiated_at = ?, refund_completed_at = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	m := updated.Milestones
	var inspectionPassed sql.NullBool
	if updated.InspectionPassed != nil {
		inspectionPassed = sql.NullBool{Bool: *updated.InspectionPassed, Valid: true}
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		updated.Status,
		updated.RejectionReason, updated.CancellationReason,
		nullTime(updated.PickupDate), updated.CarrierName, updated.AWBNumber,
		inspectionPassed, updated.InspectionNotes,
		updated.RefundMethod, updated.RefundReference,
		nullTime(m.ApprovedAt), nullTime(m.RejectedAt), nullTime(m.CancelledAt),
		nullTime(m.PickupScheduledAt), nullTime(m.InTransitAt), nullTime(m.PickedUpAt),
		nullTime(m.ReceivedAt), nullTime(m.InspectionStartedAt), nullTime(m.InspectedAt),
		nullTime(m.RefundInitiatedAt), nullTime(m.RefundCompletedAt),
		updated.UpdatedAt,
		id, expected,
	)
	if err != nil {
		r.logger.Error("Failed to update return case status",
			zap.Int64("id", id),
			zap.String("expected", expected.String()),
			zap.Error(err))
		return false, fmt.Errorf("failed to update return case: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func scanReturnCase(row *sql.Row) (*entity.ReturnCase, error) {
	var rc entity.ReturnCase
	var pickupDate sql.NullTime
	var inspectionPassed sql.NullBool
	var milestones [11]sql.NullTime

	err := row.Scan(
		&rc.ID, &rc.ReturnNumber, &rc.Status,
		&rc.OrderID, &rc.OrderNumber, &rc.OrderItemID, &rc.ProductID, &rc.ProductName,
		&rc.CustomerID, &rc.CustomerName, &rc.CustomerEmail, &rc.CustomerPhone,
		&rc.VendorID, &rc.VendorName, &rc.VendorEmail, &rc.VendorPhone,
		&rc.ReturnType, &rc.Reason, &rc.ReasonDetail, &rc.Quantity, &rc.RefundAmount, &rc.LineTotal, &rc.Currency,
		&rc.RejectionReason, &rc.CancellationReason, &pickupDate, &rc.CarrierName, &rc.AWBNumber,
		&inspectionPassed, &rc.InspectionNotes, &rc.RefundMethod, &rc.RefundReference,
		&milestones[0], &milestones[1], &milestones[2], &milestones[3], &milestones[4],
		&milestones[5], &milestones[6], &milestones[7], &milestones[8],
		&milestones[9], &milestones[10],
		&rc.CreatedAt, &rc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan return case: %w", err)
	}

	rc.PickupDate = timePtr(pickupDate)
	if inspectionPassed.Valid {
		passed := inspectionPassed.Bool
		rc.InspectionPassed = &passed
	}

	slots := []**time.Time{
		&rc.Milestones.ApprovedAt, &rc.Milestones.RejectedAt, &rc.Milestones.CancelledAt,
		&rc.Milestones.PickupScheduledAt, &rc.Milestones.InTransitAt, &rc.Milestones.PickedUpAt,
		&rc.Milestones.ReceivedAt, &rc.Milestones.InspectionStartedAt, &rc.Milestones.InspectedAt,
		&rc.Milestones.RefundInitiatedAt, &rc.Milestones.RefundCompletedAt,
	}
	for i, slot := range slots {
		*slot = timePtr(milestones[i])
	}

	return &rc, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Verify interface compliance
var _ port.ReturnCaseRepository = (*ReturnCaseRepository)(nil)
