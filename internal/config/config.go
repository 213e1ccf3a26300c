package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Resync    ResyncConfig    `yaml:"resync" mapstructure:"resync"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourcesConfig locates the web source catalog and the reference data used
// to normalize listings.
type SourcesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	// CitiesPath overrides the embedded city table when set.
	CitiesPath  string `yaml:"cities_path" mapstructure:"cities_path"`
	PhoneRegion string `yaml:"phone_region" mapstructure:"phone_region"`
	TimeZone    string `yaml:"time_zone" mapstructure:"time_zone"`
}

// AggregateConfig tunes one aggregation run.
type AggregateConfig struct {
	MinResults       int `yaml:"min_results" mapstructure:"min_results"`
	MaxRecords       int `yaml:"max_records" mapstructure:"max_records"`
	FetchConcurrency int `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	UserAgent     string      `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int         `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffMillis int         `yaml:"backoff_millis" mapstructure:"backoff_millis"`
	HostRate      float64     `yaml:"host_rate" mapstructure:"host_rate"`
	HostBurst     int         `yaml:"host_burst" mapstructure:"host_burst"`
	HostLimits    []HostLimit `yaml:"host_limits" mapstructure:"host_limits"`

	// BreakerThreshold consecutive failures skip a source for
	// BreakerResetSecs.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// HostLimit pins a fixed request rate for one host.
type HostLimit struct {
	Host  string  `yaml:"host" mapstructure:"host"`
	Rate  float64 `yaml:"rate" mapstructure:"rate"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

// ServerConfig configures the read API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	PageSize       int      `yaml:"page_size" mapstructure:"page_size"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// ResyncConfig configures the periodic refresh of queried filters.
type ResyncConfig struct {
	Schedule          string `yaml:"schedule" mapstructure:"schedule"`
	IdleThresholdDays int    `yaml:"idle_threshold_days" mapstructure:"idle_threshold_days"`
	Concurrency       int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COVISEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "covisearch.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("sources.path", "sources.yaml")
	v.SetDefault("sources.phone_region", "IN")
	v.SetDefault("sources.time_zone", "Asia/Kolkata")
	v.SetDefault("aggregate.min_results", 20)
	v.SetDefault("aggregate.max_records", 300)
	v.SetDefault("aggregate.fetch_concurrency", 8)
	v.SetDefault("fetch.user_agent", "covisearch/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_millis", 1000)
	v.SetDefault("fetch.host_rate", 5.0)
	v.SetDefault("fetch.host_burst", 5)
	v.SetDefault("fetch.breaker_threshold", 3)
	v.SetDefault("fetch.breaker_reset_secs", 300)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.page_size", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("resync.schedule", "@every 1h")
	v.SetDefault("resync.idle_threshold_days", 2)
	v.SetDefault("resync.concurrency", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string
	requireStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	requireSources := func() {
		if c.Sources.Path == "" {
			errs = append(errs, "sources.path is required")
		}
	}
	requireAggregate := func() {
		if c.Aggregate.MinResults < 1 {
			errs = append(errs, "aggregate.min_results must be > 0")
		}
		if c.Aggregate.MaxRecords < 1 {
			errs = append(errs, "aggregate.max_records must be > 0")
		}
		if c.Aggregate.FetchConcurrency < 1 || c.Aggregate.FetchConcurrency > 64 {
			errs = append(errs, "aggregate.fetch_concurrency must be between 1 and 64")
		}
		if c.Fetch.MaxRetries < 0 {
			errs = append(errs, "fetch.max_retries must be >= 0")
		}
		for _, hl := range c.Fetch.HostLimits {
			if hl.Host == "" || hl.Rate <= 0 {
				errs = append(errs, "fetch.host_limits entries need a host and a rate > 0")
				break
			}
		}
	}
	requireResync := func() {
		if c.Resync.IdleThresholdDays < 0 {
			errs = append(errs, "resync.idle_threshold_days must be >= 0")
		}
		if c.Resync.Concurrency < 1 || c.Resync.Concurrency > 50 {
			errs = append(errs, "resync.concurrency must be between 1 and 50")
		}
	}

	switch mode {
	case "aggregate":
		requireStore()
		requireSources()
		requireAggregate()
	case "resync":
		requireStore()
		requireSources()
		requireAggregate()
		requireResync()
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.PageSize < 1 {
			errs = append(errs, "server.page_size must be > 0")
		}
	case "sources":
		requireSources()
	case "migrate":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
