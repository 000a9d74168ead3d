package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"    validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"    validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
	Sales    SalesConfig    `mapstructure:"sales"    validate:"required"`
	Backup   BackupConfig   `mapstructure:"backup"   validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database related settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains the settings for the Redis connection backing the
// analytics cache.
type RedisConfig struct {
	URL                string `mapstructure:"url"                  validate:"required,url"`
	PoolSize           int    `mapstructure:"pool_size"            validate:"gte=0"`
	DialTimeoutSeconds int    `mapstructure:"dial_timeout_seconds" validate:"gt=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost                  int    `mapstructure:"bcrypt_cost"                    validate:"gte=4,lte=31"`
}

// CacheConfig contains the per-namespace TTLs for the analytics cache.
// Every cache write uses the TTL of its namespace; there are no ad hoc TTLs.
type CacheConfig struct {
	Enabled               bool `mapstructure:"enabled"`
	KPITTLSeconds         int  `mapstructure:"kpi_ttl_seconds"         validate:"required,gt=0"`
	ForecastTTLSeconds    int  `mapstructure:"forecast_ttl_seconds"    validate:"required,gt=0"`
	ChartTTLSeconds       int  `mapstructure:"chart_ttl_seconds"       validate:"required,gt=0"`
	ReportTTLSeconds      int  `mapstructure:"report_ttl_seconds"      validate:"required,gt=0"`
	AggregationTTLSeconds int  `mapstructure:"aggregation_ttl_seconds" validate:"required,gt=0"`
}

// SalesConfig contains invoicing business settings. The tax rate is expressed
// in basis points (700 = 7.00%) so invoice math stays in integers.
type SalesConfig struct {
	TaxRateBasisPoints  int    `mapstructure:"tax_rate_basis_points" validate:"gte=0,lte=10000"`
	InvoiceNumberPrefix string `mapstructure:"invoice_number_prefix" validate:"required"`
}

// BackupConfig contains backup job settings.
type BackupConfig struct {
	Dir           string `mapstructure:"dir"            validate:"required"`
	RetentionDays int    `mapstructure:"retention_days" validate:"required,gt=0"`
}

// TaskConfig contains all background task processing settings.
// HardTimeLimitSeconds must exceed SoftTimeLimitSeconds so handlers get a
// window to observe context cancellation before the worker abandons them.
type TaskConfig struct {
	WorkerCount          int `mapstructure:"worker_count"            validate:"required,gt=0"`
	PullIntervalSeconds  int `mapstructure:"pull_interval_seconds"   validate:"required,gt=0"`
	MaxRetries           int `mapstructure:"max_retries"             validate:"gte=0"`
	RetryBackoffSeconds  int `mapstructure:"retry_backoff_seconds"   validate:"required,gt=0"`
	SoftTimeLimitSeconds int `mapstructure:"soft_time_limit_seconds" validate:"required,gt=0"`
	HardTimeLimitSeconds int `mapstructure:"hard_time_limit_seconds" validate:"required,gtfield=SoftTimeLimitSeconds"`
	SchedulerTickSeconds int `mapstructure:"scheduler_tick_seconds"  validate:"required,gt=0"`
}
