// Package http exposes the return workflow, ledger queries and notification
// catalog over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/marketplace-returns/internal/application/ledger"
	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/application/service"
	"github.com/garyjia/marketplace-returns/internal/application/workflow"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// LedgerReader serves tracking and duration queries
type LedgerReader interface {
	StateDurations(ctx context.Context, caseID int64) ([]ledger.StateDuration, error)
}

// DeliveryLog lists recorded notification deliveries
type DeliveryLog interface {
	ListFailures(ctx context.Context, filter port.DeliveryFilter) ([]*entity.NotificationDelivery, error)
	ListByCase(ctx context.Context, caseID int64) ([]*entity.NotificationDelivery, error)
}

// TimelineExporter writes a case timeline to storage and returns its path
type TimelineExporter interface {
	Export(ctx context.Context, caseID int64) (string, error)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Services groups the application services the API calls.
// Exporter may be nil, in which case the export route answers 501.
type Services struct {
	Engine     workflow.ReturnEngine
	Ledger     LedgerReader
	Deliveries DeliveryLog
	Catalog    service.CatalogService
	Exporter   TimelineExporter
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a server with all routes mounted
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(services, logger),
		logger:   logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.setupRoutes()

	return s
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("HTTP request", fields...)
			return
		}
		s.logger.Info("HTTP request", fields...)
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		returns := api.Group("/returns")
		returns.POST("", h.RequestReturn)
		returns.GET("/by-number/:number", h.GetReturnByNumber)
		returns.GET("/:id", h.GetReturn)
		returns.GET("/:id/tracking", h.GetTracking)
		returns.GET("/:id/durations", h.GetDurations)
		returns.GET("/:id/deliveries", h.ListCaseDeliveries)
		returns.POST("/:id/transitions/:action", h.ApplyTransition)
		returns.POST("/:id/export", h.ExportTimeline)

		api.GET("/notifications/failures", h.ListFailures)

		api.PUT("/templates", h.UpsertTemplate)
		api.POST("/templates/:code/preview", h.PreviewTemplate)
		api.PUT("/triggers", h.UpsertTrigger)
		api.POST("/catalog/import", h.ImportCatalog)
		api.POST("/registry/reload", h.ReloadRegistry)
	}
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", s.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
