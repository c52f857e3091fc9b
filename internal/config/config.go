// Package config loads application configuration from defaults, an optional
// YAML file and HEALTHBOARD_* environment variables, in that order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of configuration environment variables.
// Sections are separated by a double underscore:
// HEALTHBOARD_DATABASE__URL sets database.url.
const EnvPrefix = "HEALTHBOARD_"

// Config is the root configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	CORS          CORSConfig          `koanf:"cors"`
	Operators     []OperatorConfig    `koanf:"operators" validate:"dive"`
	Cache         CacheConfig         `koanf:"cache"`
	Tasks         TasksConfig         `koanf:"tasks"`
	Checks        ChecksConfig        `koanf:"checks"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig configures the HTTP servers.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	BaseURL           string        `koanf:"base_url" validate:"omitempty,url"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"gte=1"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// JWTConfig configures access tokens.
type JWTConfig struct {
	SecretKey           string        `koanf:"secret_key" validate:"required,min=16"`
	AccessTokenDuration time.Duration `koanf:"access_token_duration" validate:"gt=0"`
}

// CORSConfig configures allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// OperatorConfig is an account allowed to log in.
type OperatorConfig struct {
	Email        string `koanf:"email" validate:"required,email"`
	PasswordHash string `koanf:"password_hash" validate:"required"`
	Role         string `koanf:"role" validate:"required,oneof=viewer operator admin"`
}

// CacheConfig configures the in-process slug cache.
type CacheConfig struct {
	Size int           `koanf:"size" validate:"gte=1"`
	TTL  time.Duration `koanf:"ttl" validate:"gt=0"`
}

// TasksConfig configures the background task pool.
type TasksConfig struct {
	Workers   int `koanf:"workers" validate:"gte=1"`
	QueueSize int `koanf:"queue_size" validate:"gte=0"`
}

// ChecksConfig configures the built-in health checks.
type ChecksConfig struct {
	Enabled          bool          `koanf:"enabled"`
	RegisterOnStart  bool          `koanf:"register_on_start"`
	Interval         time.Duration `koanf:"interval" validate:"gt=0"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	DiskPath         string        `koanf:"disk_path"`
	DiskMaxPercent   int           `koanf:"disk_max_percent" validate:"gte=1,lte=100"`
	MemoryMaxPercent int           `koanf:"memory_max_percent" validate:"gte=1,lte=100"`
	StorageDir       string        `koanf:"storage_dir"`
	RabbitMQURL      string        `koanf:"rabbitmq_url" validate:"omitempty,url"`
}

// NotificationsConfig configures webhook delivery of status changes.
type NotificationsConfig struct {
	WebhookURL string      `koanf:"webhook_url" validate:"omitempty,url"`
	Username   string      `koanf:"username"`
	Channel    string      `koanf:"channel"`
	RateLimit  float64     `koanf:"rate_limit" validate:"gte=0"`
	Burst      int         `koanf:"burst" validate:"gte=1"`
	Retry      RetryConfig `koanf:"retry"`
}

// Enabled reports whether a webhook is configured.
func (c NotificationsConfig) Enabled() bool {
	return c.WebhookURL != ""
}

// RetryConfig configures delivery retries.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts" validate:"gte=1"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier" validate:"gte=1"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			AccessTokenDuration: 12 * time.Hour,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  5 * time.Minute,
		},
		Tasks: TasksConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Checks: ChecksConfig{
			Enabled:          true,
			RegisterOnStart:  false,
			Interval:         time.Minute,
			Timeout:          10 * time.Second,
			DiskPath:         "/",
			DiskMaxPercent:   90,
			MemoryMaxPercent: 90,
			StorageDir:       "/tmp",
		},
		Notifications: NotificationsConfig{
			RateLimit: 1,
			Burst:     5,
			Retry: RetryConfig{
				MaxAttempts:       3,
				InitialBackoff:    time.Second,
				MaxBackoff:        time.Minute,
				BackoffMultiplier: 2,
			},
		},
	}
}

// Load reads configuration. path may be empty to skip the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps HEALTHBOARD_CHECKS__DISK_MAX_PERCENT to checks.disk_max_percent.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DomainOperators converts configured operators to domain accounts.
func (c *Config) DomainOperators() []domain.Operator {
	ops := make([]domain.Operator, 0, len(c.Operators))
	for _, op := range c.Operators {
		ops = append(ops, domain.Operator{
			Email:        op.Email,
			PasswordHash: op.PasswordHash,
			Role:         domain.Role(op.Role),
		})
	}
	return ops
}
