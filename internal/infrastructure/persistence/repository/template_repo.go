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

// TemplateRepository implements port.TemplateRepository.
// Content is stored as a JSON ContentSpec and converted back per channel.
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts a template or replaces the one with the same code
func (r *TemplateRepository) Upsert(ctx context.Context, tmpl *notification.Template) error {
	variables, err := json.Marshal(nonNilStrings(tmpl.Variables))
	if err != nil {
		return fmt.Errorf("failed to encode template variables: %w", err)
	}
	content, err := json.Marshal(notification.SpecOf(tmpl.Content))
	if err != nil {
		return fmt.Errorf("failed to encode template content: %w", err)
	}

	query := `
		INSERT INTO notification_templates (code, channel, variables, active, content, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			channel = excluded.channel,
			variables = excluded.variables,
			active = excluded.active,
			content = excluded.content,
			updated_at = excluded.updated_at
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		tmpl.Code,
		tmpl.Channel,
		string(variables),
		tmpl.Active,
		string(content),
		tmpl.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert template", zap.String("code", tmpl.Code), zap.Error(err))
		return fmt.Errorf("failed to upsert template: %w", err)
	}
	return nil
}

// GetByCode retrieves a template by code regardless of its active flag
func (r *TemplateRepository) GetByCode(ctx context.Context, code string) (*notification.Template, error) {
	query := `
		SELECT code, channel, variables, active, content, updated_at
		FROM notification_templates
		WHERE code = ?
	`

	tmpl, err := scanTemplate(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get template", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	return tmpl, nil
}

// ListActive returns active templates ordered by code
func (r *TemplateRepository) ListActive(ctx context.Context) ([]*notification.Template, error) {
	query := `
		SELECT code, channel, variables, active, content, updated_at
		FROM notification_templates
		WHERE active = 1
		ORDER BY code
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []*notification.Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tmpl)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*notification.Template, error) {
	var tmpl notification.Template
	var variables, content string

	if err := row.Scan(&tmpl.Code, &tmpl.Channel, &variables, &tmpl.Active, &content, &tmpl.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	if err := json.Unmarshal([]byte(variables), &tmpl.Variables); err != nil {
		return nil, fmt.Errorf("failed to decode variables of template %s: %w", tmpl.Code, err)
	}

	var spec notification.ContentSpec
	if err := json.Unmarshal([]byte(content), &spec); err != nil {
		return nil, fmt.Errorf("failed to decode content of template %s: %w", tmpl.Code, err)
	}
	c, err := spec.For(tmpl.Channel)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", tmpl.Code, err)
	}
	tmpl.Content = c

	return &tmpl, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Verify interface compliance
var _ port.TemplateRepository = (*TemplateRepository)(nil)
