// Package config loads consolidator settings from config.yaml and
// CONSOLIDATOR_* environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Ingestion IngestionConfig `yaml:"ingestion" mapstructure:"ingestion"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Matching  MatchingConfig  `yaml:"matching" mapstructure:"matching"`
	Overrides OverridesConfig `yaml:"overrides" mapstructure:"overrides"`
	Taxonomy  TaxonomyConfig  `yaml:"taxonomy" mapstructure:"taxonomy"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// IngestionConfig names the upstream table and what a run writes back.
type IngestionConfig struct {
	Table              string `yaml:"table" mapstructure:"table"`
	PendingStatus      string `yaml:"pending_status" mapstructure:"pending_status"`
	ConsolidatedStatus string `yaml:"consolidated_status" mapstructure:"consolidated_status"`
	MarkConsolidated   bool   `yaml:"mark_consolidated" mapstructure:"mark_consolidated"`
	PersistGolden      bool   `yaml:"persist_golden" mapstructure:"persist_golden"`
}

// BatchConfig bounds one run.
type BatchConfig struct {
	Limit   int `yaml:"limit" mapstructure:"limit"`
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// MatchingConfig configures scoring and clustering.
type MatchingConfig struct {
	Threshold        float64 `yaml:"threshold" mapstructure:"threshold"`
	BlockingFallback bool    `yaml:"blocking_fallback" mapstructure:"blocking_fallback"`
	WeightsFile      string  `yaml:"weights_file" mapstructure:"weights_file"`
}

// OverridesConfig locates the authoritative price workbook.
type OverridesConfig struct {
	ExcelPath   string `yaml:"excel_path" mapstructure:"excel_path"`
	SheetName   string `yaml:"sheet_name" mapstructure:"sheet_name"`
	SKUColumn   string `yaml:"sku_column" mapstructure:"sku_column"`
	PriceColumn string `yaml:"price_column" mapstructure:"price_column"`
}

// TaxonomyConfig configures category validation.
type TaxonomyConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	TTLMinutes int  `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// ExtractConfig configures image attribute extraction.
type ExtractConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// RetryConfig configures retries of store and model calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins    []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	JobTimeoutMinutes int      `yaml:"job_timeout_minutes" mapstructure:"job_timeout_minutes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultSQLitePath is used when the sqlite driver has no database_url.
const DefaultSQLitePath = "consolidator.db"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONSOLIDATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("ingestion.table", "products_ingestion")
	v.SetDefault("ingestion.pending_status", "scraped")
	v.SetDefault("ingestion.consolidated_status", "consolidated")
	v.SetDefault("ingestion.mark_consolidated", false)
	v.SetDefault("ingestion.persist_golden", false)
	v.SetDefault("batch.limit", 100)
	v.SetDefault("batch.workers", 8)
	v.SetDefault("matching.threshold", 0.9)
	v.SetDefault("matching.blocking_fallback", true)
	v.SetDefault("matching.weights_file", "")
	v.SetDefault("overrides.excel_path", "")
	v.SetDefault("overrides.sheet_name", "")
	v.SetDefault("overrides.sku_column", "sku")
	v.SetDefault("overrides.price_column", "price")
	v.SetDefault("taxonomy.enabled", true)
	v.SetDefault("taxonomy.ttl_minutes", 60)
	v.SetDefault("extract.enabled", false)
	v.SetDefault("extract.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("extract.max_tokens", 1024)
	v.SetDefault("extract.rate_per_sec", 2.0)
	v.SetDefault("extract.concurrency", 4)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.job_timeout_minutes", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a run cannot start without. The returned
// error is a *model.ConfigError.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return &model.ConfigError{Key: "store.database_url", Reason: "required for the postgres driver"}
		}
	case "sqlite":
	default:
		return &model.ConfigError{Key: "store.driver", Reason: "unsupported driver " + c.Store.Driver}
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		return &model.ConfigError{Key: "matching.threshold", Reason: "must be in (0, 1]"}
	}
	if c.Batch.Limit < 1 {
		return &model.ConfigError{Key: "batch.limit", Reason: "must be at least 1"}
	}
	if c.Extract.Enabled && c.Anthropic.Key == "" {
		return &model.ConfigError{Key: "anthropic.key", Reason: "required when extract.enabled is set"}
	}
	return nil
}

// SQLitePath returns the database file for the sqlite driver.
func (c *Config) SQLitePath() string {
	if c.Store.DatabaseURL != "" {
		return c.Store.DatabaseURL
	}
	return DefaultSQLitePath
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
