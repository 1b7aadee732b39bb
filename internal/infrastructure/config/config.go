package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Erli      ErliConfig
	Sync      SyncConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	// AutoMigrate applies the embedded SQL migrations on server start
	AutoMigrate bool
}

// RedisConfig holds Redis connection settings.
// When disabled the connector keeps its caches and locks in process.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
	MaxBodySize    int64
	// RateLimit* throttle the cron endpoints per client IP
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// ErliConfig holds marketplace API settings
type ErliConfig struct {
	APIKey         string
	UseSandbox     bool
	BaseURL        string // overrides the production/sandbox URL when set
	Timeout        time.Duration
	RateLimit      float64 // requests per second, 0 disables pacing
	RateBurst      int
	CronToken      string
	UserAgent      string
	MaxResponseMiB int
}

// SyncConfig holds settings of the sync runs
type SyncConfig struct {
	InboxLimit        int
	InboxMaxBatches   int
	ProductBatchSize  int
	LanguageID        int64
	ShopSecureDomain  string // e.g. https://shop.example.com
	ImageBaseURL      string // prefix of catalog image URLs, empty for host-relative URLs
	AttributeCacheTTL time.Duration
}

// SchedulerConfig holds the periodic sync job configuration
type SchedulerConfig struct {
	Enabled         bool
	InboxInterval   time.Duration
	ProductInterval time.Duration
	JobTimeout      time.Duration
	HistorySize     int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ERLI_ prefix (e.g., ERLI_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFrom(".", "./config", "/etc/erli-connector")
}

// LoadFrom loads configuration searching the given directories for config.toml
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ERLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),

			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Erli: ErliConfig{
			APIKey:         v.GetString("erli.api_key"),
			UseSandbox:     v.GetBool("erli.use_sandbox"),
			BaseURL:        v.GetString("erli.base_url"),
			Timeout:        v.GetDuration("erli.timeout"),
			RateLimit:      v.GetFloat64("erli.rate_limit"),
			RateBurst:      v.GetInt("erli.rate_burst"),
			CronToken:      v.GetString("erli.cron_token"),
			UserAgent:      v.GetString("erli.user_agent"),
			MaxResponseMiB: v.GetInt("erli.max_response_mib"),
		},
		Sync: SyncConfig{
			InboxLimit:        v.GetInt("sync.inbox_limit"),
			InboxMaxBatches:   v.GetInt("sync.inbox_max_batches"),
			ProductBatchSize:  v.GetInt("sync.product_batch_size"),
			LanguageID:        v.GetInt64("sync.language_id"),
			ShopSecureDomain:  v.GetString("sync.shop_secure_domain"),
			ImageBaseURL:      v.GetString("sync.image_base_url"),
			AttributeCacheTTL: v.GetDuration("sync.attribute_cache_ttl"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         v.GetBool("scheduler.enabled"),
			InboxInterval:   v.GetDuration("scheduler.inbox_interval"),
			ProductInterval: v.GetDuration("scheduler.product_interval"),
			JobTimeout:      v.GetDuration("scheduler.job_timeout"),
			HistorySize:     v.GetInt("scheduler.history_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "erli-connector"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "shop"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// inbox runs answer after the whole run, which may include 429 backoff
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 30
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Erli.Timeout == 0 {
		cfg.Erli.Timeout = 30 * time.Second
	}
	if cfg.Erli.RateBurst == 0 {
		cfg.Erli.RateBurst = 1
	}
	if cfg.Erli.UserAgent == "" {
		cfg.Erli.UserAgent = "erli-connector/1.0"
	}
	if cfg.Erli.MaxResponseMiB == 0 {
		cfg.Erli.MaxResponseMiB = 10
	}
	if cfg.Sync.InboxLimit == 0 {
		cfg.Sync.InboxLimit = 50
	}
	if cfg.Sync.InboxMaxBatches == 0 {
		cfg.Sync.InboxMaxBatches = 2
	}
	if cfg.Sync.ProductBatchSize == 0 {
		cfg.Sync.ProductBatchSize = 20
	}
	if cfg.Sync.LanguageID == 0 {
		cfg.Sync.LanguageID = 1
	}
	if cfg.Scheduler.InboxInterval == 0 {
		cfg.Scheduler.InboxInterval = 5 * time.Minute
	}
	if cfg.Scheduler.ProductInterval == 0 {
		cfg.Scheduler.ProductInterval = time.Hour
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.HistorySize == 0 {
		cfg.Scheduler.HistorySize = 100
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "erli-connector"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sync.InboxLimit < 1 || c.Sync.InboxLimit > 100 {
		return fmt.Errorf("sync.inbox_limit must be between 1 and 100, got %d", c.Sync.InboxLimit)
	}
	if c.Sync.InboxMaxBatches < 1 {
		return fmt.Errorf("sync.inbox_max_batches must be positive")
	}
	if c.Sync.ProductBatchSize < 1 {
		return fmt.Errorf("sync.product_batch_size must be positive")
	}
	if c.Erli.RateLimit < 0 {
		return fmt.Errorf("erli.rate_limit cannot be negative")
	}
	if c.Sync.ShopSecureDomain != "" {
		if _, err := url.Parse(c.Sync.ShopSecureDomain); err != nil {
			return fmt.Errorf("sync.shop_secure_domain is not a valid URL: %w", err)
		}
	}

	if c.App.Env == "production" {
		if c.Erli.APIKey == "" {
			return fmt.Errorf("erli.api_key is required in production")
		}
		if c.Erli.UseSandbox {
			return fmt.Errorf("erli.use_sandbox must be false in production")
		}
		if len(c.Erli.CronToken) < 16 {
			return fmt.Errorf("erli.cron_token must be at least 16 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Sync.ShopSecureDomain == "" {
			return fmt.Errorf("sync.shop_secure_domain is required in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
