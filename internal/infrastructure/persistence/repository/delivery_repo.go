package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/sqlite"
)

const defaultFailureLimit = 100

const deliveryColumns = `
	id, event_id, event_code, case_id, channel, template_code, recipient,
	idempotency_key, status, attempts, provider_ref, last_error, created_at`

// DeliveryRepository implements port.DeliveryRepository
type DeliveryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeliveryRepository creates a new delivery log repository
func NewDeliveryRepository(db *sql.DB, logger *zap.Logger) port.DeliveryRepository {
	return &DeliveryRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends one delivery outcome
func (r *DeliveryRepository) Record(ctx context.Context, d *entity.NotificationDelivery) error {
	query := `
		INSERT INTO notification_deliveries (
			event_id, event_code, case_id, channel, template_code, recipient,
			idempotency_key, status, attempts, provider_ref, last_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		d.EventID,
		d.EventCode,
		d.CaseID,
		d.Channel,
		d.TemplateCode,
		d.Recipient,
		d.IdempotencyKey,
		d.Status,
		d.Attempts,
		d.ProviderRef,
		d.LastError,
		d.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to record delivery",
			zap.String("idempotency_key", d.IdempotencyKey),
			zap.String("status", d.Status),
			zap.Error(err))
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	d.ID = id
	return nil
}

// ListFailures returns failed and render_failed deliveries, newest first
func (r *DeliveryRepository) ListFailures(ctx context.Context, filter port.DeliveryFilter) ([]*entity.NotificationDelivery, error) {
	var where []string
	args := []interface{}{entity.DeliveryStatusFailed, entity.DeliveryStatusRenderFailed}
	where = append(where, "status IN (?, ?)")

	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultFailureLimit
	}
	args = append(args, limit)

	query := `SELECT ` + deliveryColumns + ` FROM notification_deliveries
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	return r.list(ctx, query, args...)
}

// ListByCase returns every delivery of a case in insertion order
func (r *DeliveryRepository) ListByCase(ctx context.Context, caseID int64) ([]*entity.NotificationDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM notification_deliveries WHERE case_id = ? ORDER BY id ASC`
	return r.list(ctx, query, caseID)
}

func (r *DeliveryRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.NotificationDelivery, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list deliveries", zap.Error(err))
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var out []*entity.NotificationDelivery
	for rows.Next() {
		var d entity.NotificationDelivery
		err := rows.Scan(
			&d.ID,
			&d.EventID,
			&d.EventCode,
			&d.CaseID,
			&d.Channel,
			&d.TemplateCode,
			&d.Recipient,
			&d.IdempotencyKey,
			&d.Status,
			&d.Attempts,
			&d.ProviderRef,
			&d.LastError,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.DeliveryRepository = (*DeliveryRepository)(nil)
