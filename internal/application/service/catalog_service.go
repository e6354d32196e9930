package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Reloader refreshes the in-memory notification registry
type Reloader interface {
	Reload(ctx context.Context) error
}

// ImportResult summarizes a catalog import
type ImportResult struct {
	Templates int `json:"templates"`
	Triggers  int `json:"triggers"`
}

// CatalogService manages notification templates and event triggers
type CatalogService interface {
	UpsertTemplate(ctx context.Context, in TemplateInput) (*notification.Template, error)
	UpsertTrigger(ctx context.Context, in TriggerInput) (*notification.EventTrigger, error)
	ImportCatalog(ctx context.Context, r io.Reader) (*ImportResult, error)
	// Preview renders a stored template with the given variables, active or not
	Preview(ctx context.Context, code string, vars map[string]string) (*notification.RenderedMessage, error)
	Reload(ctx context.Context) error
}

type catalogServiceImpl struct {
	templates port.TemplateRepository
	triggers  port.TriggerRepository
	txManager port.TransactionManager
	registry  Reloader
	logger    Logger
	now       func() time.Time
}

// NewCatalogService creates a new CatalogService. registry may be nil.
func NewCatalogService(
	templates port.TemplateRepository,
	triggers port.TriggerRepository,
	txManager port.TransactionManager,
	registry Reloader,
	logger Logger,
) CatalogService {
	return &catalogServiceImpl{
		templates: templates,
		triggers:  triggers,
		txManager: txManager,
		registry:  registry,
		logger:    logger,
		now:       time.Now,
	}
}

// UpsertTemplate validates and stores one template, then reloads the registry
func (s *catalogServiceImpl) UpsertTemplate(ctx context.Context, in TemplateInput) (*notification.Template, error) {
	t, err := in.ToTemplate()
	if err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()

	if err := s.templates.Upsert(ctx, t); err != nil {
		s.logger.Error("Failed to save template", "template_code", t.Code, "error", err)
		return nil, fmt.Errorf("save template %s: %w", t.Code, err)
	}

	s.logger.Info("Template saved", "template_code", t.Code, "channel", t.Channel, "active", t.Active)
	s.reload(ctx)
	return t, nil
}

// UpsertTrigger validates and stores one trigger, then reloads the registry
func (s *catalogServiceImpl) UpsertTrigger(ctx context.Context, in TriggerInput) (*notification.EventTrigger, error) {
	t, err := in.ToTrigger()
	if err != nil {
		return nil, err
	}
	if err := s.checkBindings(ctx, t, nil); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()

	if err := s.triggers.Upsert(ctx, t); err != nil {
		s.logger.Error("Failed to save trigger", "event_code", t.EventCode, "error", err)
		return nil, fmt.Errorf("save trigger %s: %w", t.EventCode, err)
	}

	s.logger.Info("Trigger saved", "event_code", t.EventCode, "channels", t.UsableChannels())
	s.reload(ctx)
	return t, nil
}

// ImportCatalog validates a whole catalog and stores it atomically
func (s *catalogServiceImpl) ImportCatalog(ctx context.Context, r io.Reader) (*ImportResult, error) {
	catalog, err := ParseCatalog(r)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pending := make(map[string]*notification.Template, len(catalog.Templates))
	templates := make([]*notification.Template, 0, len(catalog.Templates))
	for _, in := range catalog.Templates {
		t, err := in.ToTemplate()
		if err != nil {
			return nil, err
		}
		if _, dup := pending[t.Code]; dup {
			return nil, fmt.Errorf("%w: template %s defined twice", notification.ErrTemplateInvalid, t.Code)
		}
		t.UpdatedAt = now
		pending[t.Code] = t
		templates = append(templates, t)
	}

	seen := make(map[string]bool, len(catalog.Triggers))
	triggers := make([]*notification.EventTrigger, 0, len(catalog.Triggers))
	for _, in := range catalog.Triggers {
		t, err := in.ToTrigger()
		if err != nil {
			return nil, err
		}
		if seen[t.EventCode] {
			return nil, fmt.Errorf("%w: trigger %s defined twice", notification.ErrTriggerInvalid, t.EventCode)
		}
		seen[t.EventCode] = true
		if err := s.checkBindings(ctx, t, pending); err != nil {
			return nil, err
		}
		t.UpdatedAt = now
		triggers = append(triggers, t)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, t := range templates {
			if err := s.templates.Upsert(txCtx, t); err != nil {
				return fmt.Errorf("save template %s: %w", t.Code, err)
			}
		}
		for _, t := range triggers {
			if err := s.triggers.Upsert(txCtx, t); err != nil {
				return fmt.Errorf("save trigger %s: %w", t.EventCode, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Catalog import failed", "error", err)
		return nil, err
	}

	result := &ImportResult{Templates: len(templates), Triggers: len(triggers)}
	s.logger.Info("Catalog imported", "templates", result.Templates, "triggers", result.Triggers)
	s.reload(ctx)
	return result, nil
}

// Preview renders a stored template with the given variables
func (s *catalogServiceImpl) Preview(ctx context.Context, code string, vars map[string]string) (*notification.RenderedMessage, error) {
	t, err := s.templates.GetByCode(ctx, code)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", notification.ErrTemplateNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", code, err)
	}
	return notification.Render(t, notification.BindingsFor(t, vars))
}

// Reload refreshes the registry from storage
func (s *catalogServiceImpl) Reload(ctx context.Context) error {
	if s.registry == nil {
		return nil
	}
	return s.registry.Reload(ctx)
}

// checkBindings makes sure enabled channels point at a template of the
// same channel, looking first at templates pending in the same import
func (s *catalogServiceImpl) checkBindings(ctx context.Context, t *notification.EventTrigger, pending map[string]*notification.Template) error {
	for ch, b := range t.Channels {
		if !b.Enabled || b.TemplateCode == "" {
			continue
		}

		tmpl, ok := pending[b.TemplateCode]
		if !ok {
			stored, err := s.templates.GetByCode(ctx, b.TemplateCode)
			if errors.Is(err, port.ErrNotFound) {
				return fmt.Errorf("%w: %s binds %s to unknown template %s",
					notification.ErrTemplateNotFound, t.EventCode, ch, b.TemplateCode)
			}
			if err != nil {
				return fmt.Errorf("load template %s: %w", b.TemplateCode, err)
			}
			tmpl = stored
		}

		if tmpl.Channel != ch {
			return fmt.Errorf("%w: %s binds %s to %s template %s",
				notification.ErrTriggerInvalid, t.EventCode, ch, tmpl.Channel, b.TemplateCode)
		}
	}
	return nil
}

func (s *catalogServiceImpl) reload(ctx context.Context) {
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("Registry reload failed, previous snapshot stays active", "error", err)
	}
}
