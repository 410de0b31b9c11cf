package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultSourceTimeout bounds one source fetch when timeout_secs is unset.
const DefaultSourceTimeout = 10 * time.Second

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig             `yaml:"store" mapstructure:"store"`
	Log        LogConfig               `yaml:"log" mapstructure:"log"`
	Server     ServerConfig            `yaml:"server" mapstructure:"server"`
	Fieldmap   FieldmapConfig          `yaml:"fieldmap" mapstructure:"fieldmap"`
	Match      MatchConfig             `yaml:"match" mapstructure:"match"`
	Sources    map[string]SourceConfig `yaml:"sources" mapstructure:"sources"`
	Feed       FeedConfig              `yaml:"feed" mapstructure:"feed"`
	Cache      CacheConfig             `yaml:"cache" mapstructure:"cache"`
	Audit      AuditConfig             `yaml:"audit" mapstructure:"audit"`
	Salesforce SalesforceConfig        `yaml:"salesforce" mapstructure:"salesforce"`
	Metrics    MetricsConfig           `yaml:"metrics" mapstructure:"metrics"`
	Monitoring MonitoringConfig        `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// FieldmapConfig points at the canonical field mapping table. An empty path
// uses the built-in table.
type FieldmapConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MatchConfig tunes the candidate matcher.
type MatchConfig struct {
	Threshold      float64 `yaml:"threshold" mapstructure:"threshold"`
	PriceWeight    float64 `yaml:"price_weight" mapstructure:"price_weight"`
	BedroomsWeight float64 `yaml:"bedrooms_weight" mapstructure:"bedrooms_weight"`
	AddressWeight  float64 `yaml:"address_weight" mapstructure:"address_weight"`
}

// SourceConfig configures one secondary listing source. A source with
// neither a base URL nor a fixture is not configured.
type SourceConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	SearchPath       string  `yaml:"search_path" mapstructure:"search_path"`
	ItemPath         string  `yaml:"item_path" mapstructure:"item_path"`
	ResultsKey       string  `yaml:"results_key" mapstructure:"results_key"`
	Fixture          string  `yaml:"fixture" mapstructure:"fixture"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Retries          int     `yaml:"retries" mapstructure:"retries"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// Configured reports whether the source has somewhere to fetch from.
func (s SourceConfig) Configured() bool {
	return s.BaseURL != "" || s.Fixture != ""
}

// Timeout returns the per-fetch timeout.
func (s SourceConfig) Timeout() time.Duration {
	if s.TimeoutSecs <= 0 {
		return DefaultSourceTimeout
	}
	return time.Duration(s.TimeoutSecs) * time.Second
}

// FeedConfig configures the primary CRM XML feed.
type FeedConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Username    string `yaml:"username" mapstructure:"username"`
	Password    string `yaml:"password" mapstructure:"password"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig configures the comparison cache.
type CacheConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"` // none, memory, redis
	RedisURL   string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// AuditConfig configures the batch audit job.
type AuditConfig struct {
	MaxConcurrent    int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	ExportPath       string `yaml:"export_path" mapstructure:"export_path"`
	PushSalesforce   bool   `yaml:"push_salesforce" mapstructure:"push_salesforce"`
	SalesforceObject string `yaml:"salesforce_object" mapstructure:"salesforce_object"`
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// MonitoringConfig configures consistency alerting in the serve command.
type MonitoringConfig struct {
	Enabled             bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int    `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	// LowConsistencyRate is the share (0-1) of low-band runs that triggers an alert.
	LowConsistencyRate float64 `yaml:"low_consistency_rate" mapstructure:"low_consistency_rate"`
	// MinAverageConsistency alerts when the window average drops below it. 0 disables.
	MinAverageConsistency float64 `yaml:"min_average_consistency" mapstructure:"min_average_consistency"`
	AlertOnIdle           bool    `yaml:"alert_on_idle" mapstructure:"alert_on_idle"`
}

// Load reads configuration from config.yaml in the working directory and
// RECON_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceConfig{}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "listing-recon.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("match.threshold", 50.0)
	v.SetDefault("match.price_weight", 0.4)
	v.SetDefault("match.bedrooms_weight", 0.2)
	v.SetDefault("match.address_weight", 0.4)
	v.SetDefault("feed.timeout_secs", 120)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("audit.max_concurrent", 4)
	v.SetDefault("audit.salesforce_object", "Listing_Audit__c")
	v.SetDefault("audit.batch_size", 200)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "listing_recon")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.low_consistency_rate", 0.25)
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
