package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/sqlite"
)

// TriggerRepository implements port.TriggerRepository
type TriggerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTriggerRepository creates a new event trigger repository
func NewTriggerRepository(db *sql.DB, logger *zap.Logger) port.TriggerRepository {
	return &TriggerRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts a trigger or replaces the one with the same event code
func (r *TriggerRepository) Upsert(ctx context.Context, trig *notification.EventTrigger) error {
	channels := trig.Channels
	if channels == nil {
		channels = map[notification.Channel]notification.ChannelBinding{}
	}
	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("failed to encode trigger channels: %w", err)
	}
	variables, err := json.Marshal(nonNilStrings(trig.Variables))
	if err != nil {
		return fmt.Errorf("failed to encode trigger variables: %w", err)
	}

	query := `
		INSERT INTO event_triggers (event_code, category, channels, variables, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_code) DO UPDATE SET
			category = excluded.category,
			channels = excluded.channels,
			variables = excluded.variables,
			updated_at = excluded.updated_at
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		trig.EventCode,
		trig.Category,
		string(channelsJSON),
		string(variables),
		trig.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert trigger", zap.String("event_code", trig.EventCode), zap.Error(err))
		return fmt.Errorf("failed to upsert trigger: %w", err)
	}
	return nil
}

// GetByCode retrieves the trigger of an event code
func (r *TriggerRepository) GetByCode(ctx context.Context, eventCode string) (*notification.EventTrigger, error) {
	query := `
		SELECT event_code, category, channels, variables, updated_at
		FROM event_triggers
		WHERE event_code = ?
	`

	trig, err := scanTrigger(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, eventCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get trigger", zap.String("event_code", eventCode), zap.Error(err))
		return nil, err
	}
	return trig, nil
}

// List returns every trigger ordered by event code
func (r *TriggerRepository) List(ctx context.Context) ([]*notification.EventTrigger, error) {
	query := `
		SELECT event_code, category, channels, variables, updated_at
		FROM event_triggers
		ORDER BY event_code
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list triggers", zap.Error(err))
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	defer rows.Close()

	var out []*notification.EventTrigger
	for rows.Next() {
		trig, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trig)
	}
	return out, rows.Err()
}

func scanTrigger(row rowScanner) (*notification.EventTrigger, error) {
	var trig notification.EventTrigger
	var channels, variables string

	if err := row.Scan(&trig.EventCode, &trig.Category, &channels, &variables, &trig.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan trigger: %w", err)
	}

	if err := json.Unmarshal([]byte(channels), &trig.Channels); err != nil {
		return nil, fmt.Errorf("failed to decode channels of trigger %s: %w", trig.EventCode, err)
	}
	if err := json.Unmarshal([]byte(variables), &trig.Variables); err != nil {
		return nil, fmt.Errorf("failed to decode variables of trigger %s: %w", trig.EventCode, err)
	}
	return &trig, nil
}

// Verify interface compliance
var _ port.TriggerRepository = (*TriggerRepository)(nil)
