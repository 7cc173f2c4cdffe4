package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Import    ImportConfig    `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port string `mapstructure:"SERVER_PORT"`
	Host string `mapstructure:"SERVER_HOST"`
	Env  string `mapstructure:"ENV"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	Host            string        `mapstructure:"DATABASE_HOST"`
	Port            string        `mapstructure:"DATABASE_PORT"`
	Name            string        `mapstructure:"DATABASE_NAME"`
	User            string        `mapstructure:"DATABASE_USER"`
	Password        string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host       string        `mapstructure:"REDIS_HOST"`
	Port       string        `mapstructure:"REDIS_PORT"`
	Password   string        `mapstructure:"REDIS_PASSWORD"`
	DB         int           `mapstructure:"REDIS_DB"`
	SummaryTTL time.Duration `mapstructure:"REDIS_SUMMARY_TTL"`
}

type SchedulerConfig struct {
	RefreshCron string `mapstructure:"SCHEDULER_REFRESH_CRON"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// ImportConfig tunes the loan import pipeline.
type ImportConfig struct {
	BatchSize                 int    `mapstructure:"IMPORT_BATCH_SIZE"`
	Concurrency               int    `mapstructure:"IMPORT_CONCURRENCY"`
	RenewalStandaloneFallback bool   `mapstructure:"IMPORT_RENEWAL_STANDALONE_FALLBACK"`
	PaidEpsilon               string `mapstructure:"IMPORT_PAID_EPSILON"`
	DefaultLoanWeeks          int    `mapstructure:"IMPORT_DEFAULT_LOAN_WEEKS"`
	DefaultLoanRate           string `mapstructure:"IMPORT_DEFAULT_LOAN_RATE"`
	Use1904Dates              bool   `mapstructure:"IMPORT_USE_1904_DATES"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DATABASE_HOST", "localhost")
	viper.SetDefault("DATABASE_PORT", "5432")
	viper.SetDefault("DATABASE_NAME", "loans")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_PASSWORD", "")
	viper.SetDefault("DATABASE_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 20)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_SUMMARY_TTL", "720h")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("IMPORT_BATCH_SIZE", 200)
	viper.SetDefault("IMPORT_CONCURRENCY", 8)
	viper.SetDefault("IMPORT_RENEWAL_STANDALONE_FALLBACK", false)
	viper.SetDefault("IMPORT_PAID_EPSILON", "1")
	viper.SetDefault("IMPORT_DEFAULT_LOAN_WEEKS", 10)
	viper.SetDefault("IMPORT_DEFAULT_LOAN_RATE", "0")
	viper.SetDefault("IMPORT_USE_1904_DATES", false)
	viper.SetDefault("SCHEDULER_REFRESH_CRON", "0 0 2 * * *")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("DATABASE_URL or DATABASE_HOST is required")
	}

	if c.Import.BatchSize < 1 || c.Import.BatchSize > 1000 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be between 1 and 1000")
	}

	if c.Import.Concurrency < 1 {
		return fmt.Errorf("IMPORT_CONCURRENCY must be greater than 0")
	}

	if c.Import.DefaultLoanWeeks <= 0 {
		return fmt.Errorf("IMPORT_DEFAULT_LOAN_WEEKS must be greater than 0")
	}

	if _, err := decimal.NewFromString(c.Import.DefaultLoanRate); err != nil {
		return fmt.Errorf("IMPORT_DEFAULT_LOAN_RATE must be a valid decimal: %w", err)
	}

	if _, err := decimal.NewFromString(c.Import.PaidEpsilon); err != nil {
		return fmt.Errorf("IMPORT_PAID_EPSILON must be a valid decimal: %w", err)
	}

	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Scheduler.RefreshCron); err != nil {
		return fmt.Errorf("SCHEDULER_REFRESH_CRON must be a valid cron expression: %w", err)
	}

	// Validate health check timeout
	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// DSN returns the Postgres connection string, preferring DATABASE_URL.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// GetDefaultLoanRate returns the fallback loan type rate as decimal
func (c *Config) GetDefaultLoanRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Import.DefaultLoanRate)
	return rate
}

// GetPaidEpsilon returns the amount under which a loan counts as paid off
func (c *Config) GetPaidEpsilon() decimal.Decimal {
	eps, _ := decimal.NewFromString(c.Import.PaidEpsilon)
	return eps
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
