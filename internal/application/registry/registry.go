package registry

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
}

// Snapshot is an immutable view of triggers and active templates
type Snapshot struct {
	triggers  map[string]*notification.EventTrigger
	templates map[string]*notification.Template
	loadedAt  time.Time
}

func newSnapshot(triggers []*notification.EventTrigger, templates []*notification.Template, at time.Time) *Snapshot {
	s := &Snapshot{
		triggers:  make(map[string]*notification.EventTrigger, len(triggers)),
		templates: make(map[string]*notification.Template, len(templates)),
		loadedAt:  at,
	}
	for _, t := range triggers {
		s.triggers[t.EventCode] = t.Clone()
	}
	for _, t := range templates {
		// inactive templates are treated as absent
		if t.Active {
			cp := *t
			cp.Variables = append([]string(nil), t.Variables...)
			s.templates[t.Code] = &cp
		}
	}
	return s
}

// Trigger returns the trigger for an event code
func (s *Snapshot) Trigger(eventCode string) (*notification.EventTrigger, bool) {
	t, ok := s.triggers[eventCode]
	return t, ok
}

// EventCodes lists configured event codes in sorted order
func (s *Snapshot) EventCodes() []string {
	codes := make([]string, 0, len(s.triggers))
	for code := range s.triggers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// TemplateCount is the number of active templates
func (s *Snapshot) TemplateCount() int {
	return len(s.templates)
}

// LoadedAt is when the snapshot was built
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Registry resolves event codes to (channel, template) routes.
// Readers always see a complete snapshot; Replace swaps it atomically so
// dispatches already holding routes are unaffected.
type Registry struct {
	current   atomic.Pointer[Snapshot]
	templates port.TemplateRepository
	triggers  port.TriggerRepository
	logger    Logger
	now       func() time.Time
}

// Option configures the registry
type Option func(*Registry)

// WithLogger sets a logger for the registry
func WithLogger(logger Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry with an empty snapshot. Call Reload to populate it.
func New(templates port.TemplateRepository, triggers port.TriggerRepository, opts ...Option) *Registry {
	r := &Registry{
		templates: templates,
		triggers:  triggers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(newSnapshot(nil, nil, r.now()))
	return r
}

// Snapshot returns the current snapshot
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Replace installs a new snapshot built from the given definitions
func (r *Registry) Replace(triggers []*notification.EventTrigger, templates []*notification.Template) *Snapshot {
	s := newSnapshot(triggers, templates, r.now())
	r.current.Store(s)
	if r.logger != nil {
		r.logger.Info("Notification registry replaced",
			"triggers", len(s.triggers),
			"templates", len(s.templates),
		)
	}
	return s
}

// Reload rebuilds the snapshot from the repositories
func (r *Registry) Reload(ctx context.Context) error {
	if r.templates == nil || r.triggers == nil {
		return fmt.Errorf("registry has no backing repositories")
	}

	templates, err := r.templates.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	triggers, err := r.triggers.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load triggers: %w", err)
	}

	r.Replace(triggers, templates)
	return nil
}

// Lookup returns one route per channel that is enabled and has an active
// template. Everything else is omitted and logged at debug level.
func (r *Registry) Lookup(eventCode string) []notification.Route {
	s := r.current.Load()

	trig, ok := s.triggers[eventCode]
	if !ok {
		r.debug("No trigger configured for event", "event_code", eventCode)
		return nil
	}

	var routes []notification.Route
	for _, ch := range notification.AllChannels {
		binding, ok := trig.Channels[ch]
		switch {
		case !ok || !binding.Enabled:
			r.debug("Channel disabled for event", "event_code", eventCode, "channel", ch)
			continue
		case binding.TemplateCode == "":
			r.debug("No template bound for channel", "event_code", eventCode, "channel", ch)
			continue
		}

		tmpl, ok := s.templates[binding.TemplateCode]
		if !ok || tmpl.Channel != ch {
			r.debug("Template not found for channel",
				"event_code", eventCode,
				"channel", ch,
				"template_code", binding.TemplateCode,
			)
			continue
		}
		routes = append(routes, notification.Route{Channel: ch, Template: tmpl})
	}
	return routes
}

func (r *Registry) debug(msg string, keysAndValues ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, keysAndValues...)
	}
}
