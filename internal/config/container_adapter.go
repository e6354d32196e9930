package config

import (
	"github.com/garyjia/marketplace-returns/internal/container"
)

// ToContainerConfig converts the file-based config loaded by viper into
// the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Dispatch: container.DispatchConfig{
			MaxAttempts:    c.Dispatch.MaxAttempts,
			InitialBackoff: c.Dispatch.InitialBackoff,
			MaxBackoff:     c.Dispatch.MaxBackoff,
			Multiplier:     c.Dispatch.Multiplier,
			MaxInFlight:    c.Dispatch.MaxInFlight,
			AttemptTimeout: c.Dispatch.AttemptTimeout,
		},
		Email: container.EmailConfig{
			Host:          c.Email.Host,
			Port:          c.Email.Port,
			Username:      c.Email.Username,
			Password:      c.Email.Password,
			From:          c.Email.From,
			FromName:      c.Email.FromName,
			TLSMode:       c.Email.TLSMode,
			SkipVerifyTLS: c.Email.SkipVerifyTLS,
		},
		WhatsApp: container.WhatsAppConfig{
			Endpoint: c.WhatsApp.Endpoint,
			APIToken: c.WhatsApp.APIToken,
			Sender:   c.WhatsApp.Sender,
			Language: c.WhatsApp.Language,
			Timeout:  c.WhatsApp.Timeout,
		},
		Lark: container.LarkConfig{
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			ChatID:     c.Lark.ChatID,
			ConsoleURL: c.Lark.ConsoleURL,
		},
		Redis: container.RedisConfig{
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			KeyPrefix: c.Redis.KeyPrefix,
			TTL:       c.Redis.TTL,
		},
		Registry: container.RegistryConfig{
			RefreshInterval: c.Registry.RefreshInterval,
		},
		Returns: container.ReturnsConfig{
			TrackingURLBase: c.Returns.TrackingURLBase,
		},
		Storage: container.StorageConfig{
			ExportDir: c.Storage.ExportDir,
		},
	}
}
