package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rewired-gh/curio/internal/pricing"
)

// Search providers.
const (
	ProviderGoogle = "google"
	ProviderNone   = "none"
)

// Config represents the complete application configuration
type Config struct {
	Search   SearchConfig   `mapstructure:"search"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Revalue  RevalueConfig  `mapstructure:"revalue"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SearchConfig holds the marketplace search provider configuration
type SearchConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	EngineID          string        `mapstructure:"engine_id"`
	Endpoint          string        `mapstructure:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ResultsPerQuery   int           `mapstructure:"results_per_query"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
}

// PricingConfig holds the domain lists used for confidence scoring
type PricingConfig struct {
	ReputableDomains  []string `mapstructure:"reputable_domains"`
	AuctionHouses     []string `mapstructure:"auction_houses"`
	MarketplaceDomain string   `mapstructure:"marketplace_domain"`
}

// StorageConfig holds collection database configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// RevalueConfig holds collection revaluation configuration
type RevalueConfig struct {
	TopK         int     `mapstructure:"top_k"`
	MinChangePct float64 `mapstructure:"min_change_pct"`
	Workers      int     `mapstructure:"workers"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file, a .env file and environment
// variables. An empty path skips the config file.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("CURIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads CURIO_ENV_FILE (default ".env") into the process
// environment. A missing file is not an error.
func loadDotEnv() error {
	file := os.Getenv("CURIO_ENV_FILE")
	if file == "" {
		file = ".env"
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", file, err)
	}
	return nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Search defaults
	v.SetDefault("search.provider", ProviderGoogle)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.engine_id", "")
	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.timeout", "10s")
	v.SetDefault("search.results_per_query", 10)
	v.SetDefault("search.requests_per_second", 1.0)
	v.SetDefault("search.burst", 3)
	v.SetDefault("search.breaker_failures", 5)
	v.SetDefault("search.breaker_cooldown", "1m")

	// Pricing defaults
	v.SetDefault("pricing.reputable_domains", pricing.DefaultReputableDomains)
	v.SetDefault("pricing.auction_houses", pricing.DefaultAuctionHouses)
	v.SetDefault("pricing.marketplace_domain", pricing.DefaultMarketplaceDomain)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/curio.db")

	// Revalue defaults
	v.SetDefault("revalue.top_k", 10)
	v.SetDefault("revalue.min_change_pct", 0.10)
	v.SetDefault("revalue.workers", 4)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Server defaults
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.requests_per_minute", 120)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Search config
	switch c.Search.Provider {
	case ProviderGoogle:
		if c.Search.APIKey == "" {
			return fmt.Errorf("search.api_key is required for the google provider")
		}
		if c.Search.EngineID == "" {
			return fmt.Errorf("search.engine_id is required for the google provider")
		}
	case ProviderNone:
	default:
		return fmt.Errorf("search.provider must be one of: google, none")
	}
	if c.Search.Timeout < 1*time.Second {
		return fmt.Errorf("search.timeout must be at least 1 second")
	}
	if c.Search.ResultsPerQuery < 1 || c.Search.ResultsPerQuery > 10 {
		return fmt.Errorf("search.results_per_query must be between 1 and 10")
	}
	if c.Search.RequestsPerSecond <= 0 {
		return fmt.Errorf("search.requests_per_second must be positive")
	}
	if c.Search.Burst < 1 {
		return fmt.Errorf("search.burst must be at least 1")
	}
	if c.Search.BreakerFailures < 1 {
		return fmt.Errorf("search.breaker_failures must be at least 1")
	}

	// Validate Pricing config
	if len(c.Pricing.ReputableDomains) == 0 {
		return fmt.Errorf("pricing.reputable_domains must contain at least one domain")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Revalue config
	if c.Revalue.TopK < 1 {
		return fmt.Errorf("revalue.top_k must be at least 1")
	}
	if c.Revalue.MinChangePct < 0.0 || c.Revalue.MinChangePct > 10.0 {
		return fmt.Errorf("revalue.min_change_pct must be between 0.0 and 10.0")
	}
	if c.Revalue.Workers < 1 {
		return fmt.Errorf("revalue.workers must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Server config
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.RequestsPerMinute < 1 {
		return fmt.Errorf("server.requests_per_minute must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ScorerConfig returns the confidence scorer domain lists
func (c *Config) ScorerConfig() pricing.ScorerConfig {
	return pricing.ScorerConfig{
		ReputableDomains:  c.Pricing.ReputableDomains,
		AuctionHouses:     c.Pricing.AuctionHouses,
		MarketplaceDomain: c.Pricing.MarketplaceDomain,
	}
}
