package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/dispatcher"
	"github.com/garyjia/marketplace-returns/internal/application/ledger"
	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/application/registry"
	"github.com/garyjia/marketplace-returns/internal/application/service"
	"github.com/garyjia/marketplace-returns/internal/application/workflow"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/repository"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/report"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/storage"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/worker"
	"github.com/garyjia/marketplace-returns/pkg/database"
)

// Container owns every component and tears them down in reverse order of
// construction.
type Container struct {
	config *Config
	logger *zap.Logger

	db           *database.DB
	txManager    *sqlite.TxManager
	repositories *RepositoryBundle

	registry   *registry.Registry
	dispatcher dispatcher.Dispatcher
	engine     workflow.ReturnEngine
	services   *ServiceBundle
	workers    *worker.WorkerManager

	closeGuard func() error

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Cases      port.ReturnCaseRepository
	Tracking   port.TrackingRepository
	Templates  port.TemplateRepository
	Triggers   port.TriggerRepository
	Deliveries port.DeliveryRepository
	OrderLines *repository.OrderLineRepository
}

// ServiceBundle groups the application services outside the engine.
type ServiceBundle struct {
	Catalog  service.CatalogService
	Ledger   *ledger.Reader
	Exporter *report.TimelineExporter
	Files    *storage.LocalFileStorage
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{config: cfg, logger: logger}, nil
}

// Start initializes all components in dependency order:
// database, repositories, registry, notification pipeline, engine,
// services, workers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = bundle.DB
	c.txManager = bundle.TransactionMgr
	c.repositories = ProvideRepositories(c.db.DB, c.logger)

	c.registry = registry.New(c.repositories.Templates, c.repositories.Triggers,
		registry.WithLogger(newLoggerAdapter(c.logger.Named("registry"))))
	if err := c.registry.Reload(ctx); err != nil {
		c.shutdown()
		return fmt.Errorf("failed to load notification registry: %w", err)
	}

	deps := &NotifierDeps{
		Registry:   c.registry,
		Deliveries: c.repositories.Deliveries,
		Senders:    ProvideSenders(c.config, c.logger),
		Retry:      c.config.Dispatch,
		Logger:     c.logger.Named("dispatch"),
	}
	guard, closeGuard, err := ProvideDeliveryGuard(ctx, &c.config.Redis, c.logger)
	if err != nil {
		c.shutdown()
		return fmt.Errorf("failed to initialize delivery guard: %w", err)
	}
	if guard != nil {
		deps.Guard = guard
		c.closeGuard = closeGuard
	}
	if alerter := ProvideAlerter(&c.config.Lark, c.logger); alerter != nil {
		deps.Alerter = alerter
	}
	c.dispatcher = ProvideDispatcher(deps)

	c.engine = ProvideWorkflowEngine(c.repositories, c.txManager, c.dispatcher, &c.config.Returns, c.logger.Named("workflow"))
	c.services = ProvideServices(c.repositories, c.txManager, c.registry, &c.config.Storage, c.logger)

	c.workers = ProvideWorkers(c.registry, &c.config.Registry, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		c.shutdown()
		return fmt.Errorf("failed to start workers: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.Int("channels", len(deps.Senders)),
		zap.Bool("delivery_guard", deps.Guard != nil),
		zap.Bool("alerts", deps.Alerter != nil))
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	err := c.shutdown()
	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

// shutdown releases whatever was initialized so far
func (c *Container) shutdown() error {
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}
	// waits for in-flight deliveries
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}
	if c.closeGuard != nil {
		if err := c.closeGuard(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth)}

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		if err := c.db.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, c.db.Path())
		}
	}

	if c.registry == nil {
		set("registry", false, "not initialized")
	} else {
		snap := c.registry.Snapshot()
		set("registry", true, fmt.Sprintf("%d triggers, %d templates, loaded %s",
			len(snap.EventCodes()), snap.TemplateCount(), snap.LoadedAt().UTC().Format(time.RFC3339)))
	}

	if c.dispatcher == nil {
		set("notifications", false, "not initialized")
	} else {
		set("notifications", true, fmt.Sprintf("%d deliveries in flight", c.dispatcher.Pending()))
	}

	if c.workers == nil || !c.workers.IsRunning() {
		set("workers", false, "not running")
	} else {
		set("workers", true, "")
	}

	return status
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Registry returns the event trigger registry.
func (c *Container) Registry() *registry.Registry {
	return c.registry
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the return workflow engine.
func (c *Container) Engine() workflow.ReturnEngine {
	return c.engine
}

// Services returns the application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// KVLogger is the key/value logger the application packages accept
type KVLogger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HTTPLogger returns a key/value logger for the HTTP adapter.
func (c *Container) HTTPLogger() KVLogger {
	return newLoggerAdapter(c.logger.Named("http"))
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces of
// the application packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func newLoggerAdapter(logger *zap.Logger) *zapLoggerAdapter {
	return &zapLoggerAdapter{logger: logger}
}

func (a *zapLoggerAdapter) Debug(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
