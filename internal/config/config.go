// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrAPIKeyRequired is returned when OPENAI_API_KEY is not set.
	ErrAPIKeyRequired = errors.New("config: OPENAI_API_KEY is required")
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidPolling is returned when a polling setting is not positive.
	ErrInvalidPolling = errors.New("config: POLL_INTERVAL_MS, POLL_TIMEOUT_SEC and MAX_POLL_ERRORS must be positive")
	// ErrInvalidRetries is returned when SORA_MAX_RETRIES is negative.
	ErrInvalidRetries = errors.New("config: SORA_MAX_RETRIES must not be negative")
	// ErrIncompleteS3 is returned when only one of S3_BUCKET and S3_REGION is set.
	ErrIncompleteS3 = errors.New("config: S3_BUCKET and S3_REGION must be set together")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int    `env:"PORT, default=8080" json:"port"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Remote API settings
	OpenAIAPIKey   string `env:"OPENAI_API_KEY, required" json:"-"` // Masked in JSON
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL, default=https://api.openai.com/v1" json:"openai_base_url"`
	OpenAIOrgID    string `env:"OPENAI_ORG_ID" json:"openai_org_id,omitempty"`
	OpenAIProject  string `env:"OPENAI_PROJECT_ID" json:"openai_project_id,omitempty"`
	DefaultModel   string `env:"SORA_DEFAULT_MODEL, default=sora-2" json:"default_model"`
	HTTPTimeoutSec int    `env:"SORA_HTTP_TIMEOUT_SEC, default=60" json:"http_timeout_sec"`
	MaxRetries     int    `env:"SORA_MAX_RETRIES, default=0" json:"max_retries"`

	// Archive settings
	ArchiveDir string `env:"ARCHIVE_DIR, default=videos" json:"archive_dir"`
	TempDir    string `env:"TEMP_DIR, default=temp" json:"temp_dir"`

	// Polling settings
	PollIntervalMs int `env:"POLL_INTERVAL_MS, default=3000" json:"poll_interval_ms"`
	PollTimeoutSec int `env:"POLL_TIMEOUT_SEC, default=600" json:"poll_timeout_sec"`
	MaxPollErrors  int `env:"MAX_POLL_ERRORS, default=5" json:"max_poll_errors"`

	// Optional S3 mirror settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional Redis registry settings
	RedisAddr        string `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword    string `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisDB          int    `env:"REDIS_DB, default=0" json:"redis_db"`
	RedisJobTTLHours int    `env:"REDIS_JOB_TTL_HOURS, default=24" json:"redis_job_ttl_hours"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RedisEnabled returns true if the task registry should live in Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// PollInterval returns the delay between status checks.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// PollTimeout returns the polling budget per task.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSec) * time.Second
}

// HTTPTimeout returns the per-request timeout of the remote API client.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// RedisJobTTL returns how long task records are kept in Redis.
func (c *Config) RedisJobTTL() time.Duration {
	return time.Duration(c.RedisJobTTLHours) * time.Hour
}

// Origins returns the configured CORS origins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	return LoadWithLookuper(context.Background(), envconfig.OsLookuper())
}

// LoadWithLookuper reads configuration from the given lookuper.
func LoadWithLookuper(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: l}); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "OPENAI_API_KEY") {
			return nil, ErrAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and sane.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return ErrAPIKeyRequired
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.PollIntervalMs <= 0 || c.PollTimeoutSec <= 0 || c.MaxPollErrors <= 0 {
		return ErrInvalidPolling
	}
	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if (c.S3Bucket == "") != (c.S3Region == "") {
		return ErrIncompleteS3
	}
	return nil
}

// NewLogger creates a structured logger writing to stdout.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, OpenAIBaseURL: %s, DefaultModel: %s, ArchiveDir: %s, TempDir: %s, PollIntervalMs: %d, PollTimeoutSec: %d, MaxPollErrors: %d, S3Bucket: %s, S3Region: %s, RedisAddr: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.OpenAIBaseURL,
		c.DefaultModel,
		c.ArchiveDir,
		c.TempDir,
		c.PollIntervalMs,
		c.PollTimeoutSec,
		c.MaxPollErrors,
		c.S3Bucket,
		c.S3Region,
		c.RedisAddr,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
