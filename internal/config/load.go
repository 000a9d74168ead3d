package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all environment variables consumed by Load.
// A config key like "task.worker_count" maps to AURUM_TASK_WORKER_COUNT.
const envPrefix = "AURUM"

// Load reads configuration from environment variables and an optional
// config.yaml file. Environment variables take precedence over file values,
// which take precedence over the built-in defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// An on-disk config file is optional; its absence is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/aurum")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct validation tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// setDefaults registers a default for every key so AutomaticEnv can see it.
// Keys without a usable zero default (database URL, JWT secret) get an empty
// default and are caught by validation when left unset.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout_seconds", 5)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 10080)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.kpi_ttl_seconds", 300)
	v.SetDefault("cache.forecast_ttl_seconds", 3600)
	v.SetDefault("cache.chart_ttl_seconds", 600)
	v.SetDefault("cache.report_ttl_seconds", 900)
	v.SetDefault("cache.aggregation_ttl_seconds", 1800)

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.pull_interval_seconds", 2)
	v.SetDefault("task.max_retries", 3)
	v.SetDefault("task.retry_backoff_seconds", 60)
	v.SetDefault("task.soft_time_limit_seconds", 300)
	v.SetDefault("task.hard_time_limit_seconds", 330)
	v.SetDefault("task.scheduler_tick_seconds", 30)

	v.SetDefault("sales.tax_rate_basis_points", 700)
	v.SetDefault("sales.invoice_number_prefix", "INV-")

	v.SetDefault("backup.dir", "/var/lib/aurum/backups")
	v.SetDefault("backup.retention_days", 30)
}
