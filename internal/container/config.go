// Package container provides dependency injection and lifecycle management
// for the returns service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Dispatch DispatchConfig
	Email    EmailConfig
	WhatsApp WhatsAppConfig
	Lark     LarkConfig
	Redis    RedisConfig
	Registry RegistryConfig
	Returns  ReturnsConfig
	Storage  StorageConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to the SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DispatchConfig bounds notification retries and concurrency.
type DispatchConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	MaxInFlight    int
	AttemptTimeout time.Duration
}

// EmailConfig holds SMTP settings. The channel is disabled when Host is empty.
type EmailConfig struct {
	Host          string
	Port          string
	Username      string
	Password      string
	From          string
	FromName      string
	TLSMode       string
	SkipVerifyTLS bool
}

// WhatsAppConfig holds messaging gateway settings. The channel is disabled
// when Endpoint is empty.
type WhatsAppConfig struct {
	Endpoint string
	APIToken string
	Sender   string
	Language string
	Timeout  time.Duration
}

// LarkConfig holds ops alert settings. Alerts are disabled when AppID or
// ChatID is empty.
type LarkConfig struct {
	AppID      string
	AppSecret  string
	ChatID     string
	ConsoleURL string
}

// RedisConfig holds the delivery guard store. The guard is disabled when
// Addr is empty.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RegistryConfig controls the periodic registry refresh.
type RegistryConfig struct {
	// RefreshInterval of zero disables the refresher
	RefreshInterval time.Duration
}

// ReturnsConfig holds workflow settings.
type ReturnsConfig struct {
	// TrackingURLBase builds return_url as <base>/<return number>
	TrackingURLBase string
}

// StorageConfig holds the export directory.
type StorageConfig struct {
	ExportDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/returns.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Dispatch: DispatchConfig{
			MaxAttempts:    4,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2,
			MaxInFlight:    32,
			AttemptTimeout: 30 * time.Second,
		},
		Email: EmailConfig{
			Port:    "587",
			TLSMode: "starttls",
		},
		WhatsApp: WhatsAppConfig{
			Language: "en",
			Timeout:  10 * time.Second,
		},
		Redis: RedisConfig{
			KeyPrefix: "returns:delivered:",
			TTL:       72 * time.Hour,
		},
		Registry: RegistryConfig{
			RefreshInterval: time.Minute,
		},
		Storage: StorageConfig{
			ExportDir: "data",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch.max_attempts must be at least 1")
	}
	if c.Email.Host != "" && c.Email.From == "" {
		return fmt.Errorf("email.from is required when email.host is set")
	}
	switch c.Email.TLSMode {
	case "", "none", "tls", "starttls":
	default:
		return fmt.Errorf("email.tls_mode must be one of none, tls, starttls")
	}
	if c.Lark.ChatID != "" && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required when lark.chat_id is set")
	}
	if c.Registry.RefreshInterval < 0 {
		return fmt.Errorf("registry.refresh_interval must not be negative")
	}
	return nil
}
