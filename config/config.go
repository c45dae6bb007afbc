package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	StorageDriver      string   `env:"STORAGE_DRIVER"       envDefault:"postgres"`
	DatabaseURL        string   `env:"DATABASE_URL"`
	JWTSecretKey       string   `env:"JWT_SECRET_KEY"`
	ServerPort         int      `env:"SERVER_PORT"          envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel           string   `env:"LOG_LEVEL"            envDefault:"info"`

	// SeedAccounts lists id or id:gender entries loaded into the memory store.
	SeedAccounts []string `env:"SEED_ACCOUNTS" envSeparator:","`

	RatingKFactor     int `env:"RATING_K_FACTOR"     envDefault:"32"`
	RatingInitial     int `env:"RATING_INITIAL"      envDefault:"1000"`
	RatingMaxAttempts int `env:"RATING_MAX_ATTEMPTS" envDefault:"5"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisChannel  string `env:"REDIS_CHANNEL" envDefault:"match-events"`

	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"1h"`
	ReminderAfter    time.Duration `env:"REMINDER_AFTER"    envDefault:"24h"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`

	OTELEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL environment variable is not set"))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, c.StorageDriver))
	}

	if c.JWTSecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY environment variable is not set"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(c.CORSAllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must list at least one origin"))
	}

	if c.RatingKFactor <= 0 {
		errs = append(errs, fmt.Errorf("RATING_K_FACTOR must be positive, got %d", c.RatingKFactor))
	}
	if c.RatingInitial <= 0 {
		errs = append(errs, fmt.Errorf("RATING_INITIAL must be positive, got %d", c.RatingInitial))
	}
	if c.RatingMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RATING_MAX_ATTEMPTS must be at least 1, got %d", c.RatingMaxAttempts))
	}

	if c.ReminderAfter < 0 {
		errs = append(errs, fmt.Errorf("REMINDER_AFTER must not be negative, got %s", c.ReminderAfter))
	}
	if c.ReminderAfter > 0 && c.ReminderInterval <= 0 {
		errs = append(errs, fmt.Errorf("REMINDER_INTERVAL must be positive, got %s", c.ReminderInterval))
	}

	return errors.Join(errs...)
}

// SlogLevel maps LOG_LEVEL (debug, info, warn, error) to a slog level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not a valid level", raw)
	}
	return level, nil
}

// RemindersEnabled is false when REMINDER_AFTER is 0.
func (c *Config) RemindersEnabled() bool {
	return c.ReminderAfter > 0
}

// ArchiveEnabled reports whether every R2 setting is present.
func (c *Config) ArchiveEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}
