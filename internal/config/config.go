package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Email    EmailConfig    `mapstructure:"email"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Registry RegistryConfig `mapstructure:"registry"`
	Returns  ReturnsConfig  `mapstructure:"returns"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// DispatchConfig holds notification retry settings
type DispatchConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	MaxInFlight    int           `mapstructure:"max_in_flight"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	From          string `mapstructure:"from"`
	FromName      string `mapstructure:"from_name"`
	TLSMode       string `mapstructure:"tls_mode"`
	SkipVerifyTLS bool   `mapstructure:"skip_verify_tls"`
}

// WhatsAppConfig holds messaging gateway configuration
type WhatsAppConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIToken string        `mapstructure:"api_token"`
	Sender   string        `mapstructure:"sender"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LarkConfig holds ops alert configuration
type LarkConfig struct {
	AppID      string `mapstructure:"app_id"`
	AppSecret  string `mapstructure:"app_secret"`
	ChatID     string `mapstructure:"chat_id"`
	ConsoleURL string `mapstructure:"console_url"`
}

// RedisConfig holds delivery guard configuration
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// RegistryConfig holds trigger registry settings
type RegistryConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ReturnsConfig holds workflow settings
type ReturnsConfig struct {
	TrackingURLBase string `mapstructure:"tracking_url_base"`
}

// StorageConfig holds export storage settings
type StorageConfig struct {
	ExportDir string `mapstructure:"export_dir"`
}

// Load reads configPath, then the environment. A .env file next to the
// process is loaded first when present; variables already set win.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("RETURNS")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/returns.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("dispatch.max_attempts", 4)
	v.SetDefault("dispatch.initial_backoff", 500*time.Millisecond)
	v.SetDefault("dispatch.max_backoff", 10*time.Second)
	v.SetDefault("dispatch.multiplier", 2.0)
	v.SetDefault("dispatch.max_in_flight", 32)
	v.SetDefault("dispatch.attempt_timeout", 30*time.Second)

	v.SetDefault("email.port", "587")
	v.SetDefault("email.tls_mode", "starttls")

	v.SetDefault("whatsapp.language", "en")
	v.SetDefault("whatsapp.timeout", 10*time.Second)

	v.SetDefault("redis.key_prefix", "returns:delivered:")
	v.SetDefault("redis.ttl", 72*time.Hour)

	v.SetDefault("registry.refresh_interval", time.Minute)

	v.SetDefault("storage.export_dir", "data")
}

// bindEnvVars binds credentials to their conventional variable names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"email.username":     "SMTP_USERNAME",
		"email.password":     "SMTP_PASSWORD",
		"whatsapp.api_token": "WHATSAPP_API_TOKEN",
		"lark.app_id":        "LARK_APP_ID",
		"lark.app_secret":    "LARK_APP_SECRET",
		"redis.password":     "REDIS_PASSWORD",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "RETURNS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch.max_attempts must be at least 1")
	}
	if c.Email.Host != "" && c.Email.From == "" {
		return fmt.Errorf("email.from is required when email.host is set")
	}
	if c.Lark.ChatID != "" && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required when lark.chat_id is set")
	}
	if c.Returns.TrackingURLBase != "" && !strings.HasPrefix(c.Returns.TrackingURLBase, "http") {
		return fmt.Errorf("returns.tracking_url_base must be an http(s) URL")
	}
	return nil
}
