package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reloader rebuilds an in-memory catalog from storage
type Reloader interface {
	Reload(ctx context.Context) error
}

// RegistryRefresher periodically reloads the event trigger registry so
// catalog changes made by other processes are picked up
type RegistryRefresher struct {
	registry Reloader
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistryRefresher creates a refresher ticking every interval
func NewRegistryRefresher(registry Reloader, interval time.Duration, logger *zap.Logger) *RegistryRefresher {
	return &RegistryRefresher{registry: registry, interval: interval, logger: logger}
}

// Name implements Worker
func (r *RegistryRefresher) Name() string {
	return "registry-refresher"
}

// Start launches the refresh loop
func (r *RegistryRefresher) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", r.interval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return fmt.Errorf("refresher already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(loopCtx, r.done)
	return nil
}

// Stop ends the loop and waits for an in-flight reload
func (r *RegistryRefresher) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (r *RegistryRefresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.registry.Reload(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("Registry refresh failed, keeping previous snapshot", zap.Error(err))
			}
		}
	}
}
