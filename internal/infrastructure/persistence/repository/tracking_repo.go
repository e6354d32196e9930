package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/sqlite"
)

// TrackingRepository implements port.TrackingRepository.
// The table rejects UPDATE and DELETE at the schema level.
type TrackingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTrackingRepository creates a new tracking ledger repository
func NewTrackingRepository(db *sql.DB, logger *zap.Logger) port.TrackingRepository {
	return &TrackingRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes one ledger entry
func (r *TrackingRepository) Append(ctx context.Context, entry *entity.TrackingEntry) error {
	query := `
		INSERT INTO tracking_entries (
			case_id, status, description, location, actor_type, actor_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.CaseID,
		entry.Status,
		entry.Description,
		entry.Location,
		entry.ActorType,
		entry.ActorID,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append tracking entry", zap.Int64("case_id", entry.CaseID), zap.Error(err))
		return fmt.Errorf("failed to append tracking entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByCase returns the case's entries in insertion order
func (r *TrackingRepository) ListByCase(ctx context.Context, caseID int64) ([]*entity.TrackingEntry, error) {
	query := `
		SELECT id, case_id, status, description, location, actor_type, actor_id, timestamp
		FROM tracking_entries
		WHERE case_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, caseID)
	if err != nil {
		r.logger.Error("Failed to list tracking entries", zap.Int64("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list tracking entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.TrackingEntry
	for rows.Next() {
		var e entity.TrackingEntry
		err := rows.Scan(
			&e.ID,
			&e.CaseID,
			&e.Status,
			&e.Description,
			&e.Location,
			&e.ActorType,
			&e.ActorID,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracking entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.TrackingRepository = (*TrackingRepository)(nil)
