package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/dispatcher"
	"github.com/garyjia/marketplace-returns/internal/application/ledger"
	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/application/registry"
	"github.com/garyjia/marketplace-returns/internal/application/service"
	"github.com/garyjia/marketplace-returns/internal/application/workflow"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/dedup"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/external/email"
	infraLark "github.com/garyjia/marketplace-returns/internal/infrastructure/external/lark"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/external/whatsapp"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/repository"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/report"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/storage"
	"github.com/garyjia/marketplace-returns/internal/infrastructure/worker"
	"github.com/garyjia/marketplace-returns/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.TxManager
}

// ProvideDatabase opens the database and applies embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewTxManager(db.DB, logger.Named("tx")),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Cases:      repository.NewReturnCaseRepository(sqlDB, logger),
		Tracking:   repository.NewTrackingRepository(sqlDB, logger),
		Templates:  repository.NewTemplateRepository(sqlDB, logger),
		Triggers:   repository.NewTriggerRepository(sqlDB, logger),
		Deliveries: repository.NewDeliveryRepository(sqlDB, logger),
		OrderLines: repository.NewOrderLineRepository(sqlDB, logger),
	}
}

// ProvideSenders creates a sender for every configured channel.
func ProvideSenders(cfg *Config, logger *zap.Logger) []port.ChannelSender {
	var senders []port.ChannelSender

	if cfg.Email.Host != "" {
		senders = append(senders, email.NewSender(email.Config{
			Host:          cfg.Email.Host,
			Port:          cfg.Email.Port,
			Username:      cfg.Email.Username,
			Password:      cfg.Email.Password,
			From:          cfg.Email.From,
			FromName:      cfg.Email.FromName,
			TLSMode:       cfg.Email.TLSMode,
			SkipVerifyTLS: cfg.Email.SkipVerifyTLS,
		}, logger.Named("email")))
	} else {
		logger.Warn("Email channel disabled, no SMTP host configured")
	}

	if cfg.WhatsApp.Endpoint != "" {
		senders = append(senders, whatsapp.NewSender(whatsapp.Config{
			Endpoint: cfg.WhatsApp.Endpoint,
			APIToken: cfg.WhatsApp.APIToken,
			Sender:   cfg.WhatsApp.Sender,
			Language: cfg.WhatsApp.Language,
			Timeout:  cfg.WhatsApp.Timeout,
		}, nil, logger.Named("whatsapp")))
	} else {
		logger.Warn("WhatsApp channel disabled, no gateway endpoint configured")
	}

	return senders
}

// ProvideDeliveryGuard connects to redis when configured. It returns nil,
// nil when the guard is disabled.
func ProvideDeliveryGuard(ctx context.Context, cfg *RedisConfig, logger *zap.Logger) (*dedup.RedisGuard, func() error, error) {
	if cfg.Addr == "" {
		return nil, nil, nil
	}

	dcfg := dedup.Config{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		KeyPrefix: cfg.KeyPrefix,
		TTL:       cfg.TTL,
	}
	client, err := dedup.NewClient(ctx, dcfg)
	if err != nil {
		return nil, nil, err
	}
	return dedup.NewRedisGuard(client, dcfg, logger.Named("dedup")), client.Close, nil
}

// ProvideAlerter creates the Lark alerter when configured, nil otherwise.
func ProvideAlerter(cfg *LarkConfig, logger *zap.Logger) *infraLark.Alerter {
	if cfg.AppID == "" || cfg.ChatID == "" {
		return nil
	}
	lcfg := infraLark.Config{
		AppID:      cfg.AppID,
		AppSecret:  cfg.AppSecret,
		ChatID:     cfg.ChatID,
		ConsoleURL: cfg.ConsoleURL,
	}
	return infraLark.NewAlerter(infraLark.NewMessageCreator(lcfg), lcfg, logger.Named("lark"))
}

// NotifierDeps holds dependencies of the notification pipeline.
type NotifierDeps struct {
	Registry   *registry.Registry
	Deliveries port.DeliveryRepository
	Senders    []port.ChannelSender
	Guard      port.DeliveryGuard
	Alerter    port.AlertNotifier
	Retry      DispatchConfig
	Logger     *zap.Logger
}

// ProvideDispatcher creates the event dispatcher and subscribes the notifier.
func ProvideDispatcher(deps *NotifierDeps) dispatcher.Dispatcher {
	log := newLoggerAdapter(deps.Logger)
	disp := dispatcher.NewDispatcher(
		dispatcher.WithLogger(log),
		dispatcher.WithMaxInFlight(deps.Retry.MaxInFlight),
	)

	opts := []dispatcher.NotifierOption{
		dispatcher.WithNotifierLogger(log),
		dispatcher.WithRetryPolicy(dispatcher.RetryPolicy{
			MaxAttempts:    deps.Retry.MaxAttempts,
			InitialBackoff: deps.Retry.InitialBackoff,
			MaxBackoff:     deps.Retry.MaxBackoff,
			Multiplier:     deps.Retry.Multiplier,
			AttemptTimeout: deps.Retry.AttemptTimeout,
		}),
	}
	if deps.Guard != nil {
		opts = append(opts, dispatcher.WithDeliveryGuard(deps.Guard))
	}
	if deps.Alerter != nil {
		opts = append(opts, dispatcher.WithAlerter(deps.Alerter))
	}

	dispatcher.NewNotifier(deps.Registry, deps.Deliveries, deps.Senders, opts...).Register(disp)
	return disp
}

// ProvideWorkflowEngine creates the return workflow engine.
func ProvideWorkflowEngine(repos *RepositoryBundle, tx port.TransactionManager, disp dispatcher.Dispatcher, cfg *ReturnsConfig, logger *zap.Logger) workflow.ReturnEngine {
	return workflow.NewEngine(
		repos.Cases,
		repos.Tracking,
		tx,
		repos.OrderLines,
		workflow.WithDispatcher(disp),
		workflow.WithLogger(newLoggerAdapter(logger)),
		workflow.WithReturnURLBase(cfg.TrackingURLBase),
	)
}

// ProvideServices creates the catalog service, ledger reader and exporter.
func ProvideServices(repos *RepositoryBundle, tx port.TransactionManager, reg *registry.Registry, cfg *StorageConfig, logger *zap.Logger) *ServiceBundle {
	reader := ledger.NewReader(repos.Cases, repos.Tracking)
	files := storage.NewLocalFileStorage(cfg.ExportDir, logger.Named("storage"))

	return &ServiceBundle{
		Catalog:  service.NewCatalogService(repos.Templates, repos.Triggers, tx, reg, newLoggerAdapter(logger)),
		Ledger:   reader,
		Exporter: report.NewTimelineExporter(reader, files, logger.Named("report")),
		Files:    files,
	}
}

// ProvideWorkers registers background workers. Nothing is started here.
func ProvideWorkers(reg *registry.Registry, cfg *RegistryConfig, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger.Named("worker"))
	if cfg.RefreshInterval > 0 {
		manager.Register(worker.NewRegistryRefresher(reg, cfg.RefreshInterval, logger.Named("registry")))
	}
	return manager
}
