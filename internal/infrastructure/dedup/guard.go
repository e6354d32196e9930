// Package dedup remembers delivered idempotency keys in Redis so a replayed
// emission is not sent twice.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
)

// DefaultTTL bounds how long a delivered key is remembered
const DefaultTTL = 72 * time.Hour

// Store is the subset of redis commands the guard uses
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Config holds redis connection settings
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// NewClient opens a redis client and pings it
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisGuard implements port.DeliveryGuard
type RedisGuard struct {
	store  Store
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisGuard creates a guard over store
func NewRedisGuard(store Store, cfg Config, logger *zap.Logger) *RedisGuard {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "returns:delivered:"
	}
	return &RedisGuard{store: store, prefix: cfg.KeyPrefix, ttl: cfg.TTL, logger: logger}
}

// Seen returns the provider reference stored for key, if any
func (g *RedisGuard) Seen(ctx context.Context, key string) (string, bool, error) {
	ref, err := g.store.Get(ctx, g.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read delivery key: %w", err)
	}
	return ref, true, nil
}

// Remember stores key with the configured TTL
func (g *RedisGuard) Remember(ctx context.Context, key, providerRef string) error {
	if err := g.store.Set(ctx, g.prefix+key, providerRef, g.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store delivery key: %w", err)
	}
	g.logger.Debug("Delivery key remembered", zap.String("key", key), zap.Duration("ttl", g.ttl))
	return nil
}

// Verify interface compliance
var _ port.DeliveryGuard = (*RedisGuard)(nil)
