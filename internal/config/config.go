// Package config provides unified configuration loading for the market engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the market engine.
type Config struct {
	Search        SearchConfig        `yaml:"search"`
	Cache         CacheConfig         `yaml:"cache"`
	AI            AIConfig            `yaml:"ai"`
	Stats         StatsConfig         `yaml:"stats"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SearchConfig holds auction API client settings.
type SearchConfig struct {
	BaseURL string `yaml:"base_url"`
	// PageSize is the per_page parameter sent to the API.
	PageSize int `yaml:"page_size"`
	// PageCap bounds pagination regardless of yield.
	PageCap int `yaml:"page_cap"`
	// QualityThreshold is the minimum count of sold-and-priced records before
	// pagination stops early.
	QualityThreshold int           `yaml:"quality_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
	// ExcludedSellerID filters out a seller's own listings from comparables.
	// It is part of the cache key.
	ExcludedSellerID string `yaml:"excluded_seller_id"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	Driver string `yaml:"driver"` // memory or redis
	// EndedTTL applies to historical results, which are immutable once an
	// auction has closed.
	EndedTTL time.Duration `yaml:"ended_ttl"`
	// LiveTTL applies to in-progress auction queries, where bids change.
	LiveTTL time.Duration `yaml:"live_ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// AIConfig holds AI relevance-filter settings.
type AIConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	// Timeout bounds the single classification round-trip; on expiry the
	// pipeline proceeds without AI filtering.
	Timeout time.Duration `yaml:"timeout"`
}

// StatsConfig holds statistics engine tunables. The IQR multiplier and trend
// bounds are heuristics carried over from observed behavior, not derived
// optima; they are exposed here so deployments can adjust them.
type StatsConfig struct {
	IQRMultiplier float64 `yaml:"iqr_multiplier"`
	// ExtremeTrendPercent caps the displayed trend magnitude.
	ExtremeTrendPercent float64 `yaml:"extreme_trend_percent"`
	// SuspiciousTrendPercent suppresses the magnitude entirely; a swing this
	// large almost certainly means mixed or irrelevant data.
	SuspiciousTrendPercent float64 `yaml:"suspicious_trend_percent"`
	// MinComparables is the floor below which outlier filtering reverts and
	// trend and exceptional-sale detection are suppressed. A thinner sample
	// still produces a result, at low confidence.
	MinComparables int `yaml:"min_comparables"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or console
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			BaseURL:          "https://auctionet.com/api/v2",
			PageSize:         50,
			PageCap:          4,
			QualityThreshold: 25,
			Timeout:          15 * time.Second,
		},
		Cache: CacheConfig{
			Driver:   "memory",
			EndedTTL: 24 * time.Hour,
			LiveTTL:  5 * time.Minute,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "market:",
			},
		},
		AI: AIConfig{
			Enabled: true,
			Model:   "anthropic/claude-3.5-haiku",
			BaseURL: "https://openrouter.ai/api/v1",
			Timeout: 8 * time.Second,
		},
		Stats: StatsConfig{
			IQRMultiplier:          1.5,
			ExtremeTrendPercent:    500,
			SuspiciousTrendPercent: 1000,
			MinComparables:         3,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load reads configuration from an optional YAML file and applies environment
// overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config values from environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("MARKET_API_BASE_URL"); v != "" {
		c.Search.BaseURL = v
	}
	if v := os.Getenv("MARKET_EXCLUDED_SELLER_ID"); v != "" {
		c.Search.ExcludedSellerID = v
	}
	if v := os.Getenv("MARKET_CACHE_DRIVER"); v != "" {
		c.Cache.Driver = v
	}
	if v := os.Getenv("MARKET_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("MARKET_AI_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v := os.Getenv("MARKET_AI_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AI.Enabled = b
		}
	}
	if v := os.Getenv("MARKET_LOG_LEVEL"); v != "" {
		c.Observability.LogLevel = v
	}
	if v := os.Getenv("MARKET_LOG_FORMAT"); v != "" {
		c.Observability.LogFormat = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url is required")
	}
	if c.Search.PageCap < 1 {
		return fmt.Errorf("search.page_cap must be at least 1")
	}
	if c.Search.PageSize < 1 {
		return fmt.Errorf("search.page_size must be at least 1")
	}
	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("cache.driver must be memory or redis, got %q", c.Cache.Driver)
	}
	if c.Stats.IQRMultiplier <= 0 {
		return fmt.Errorf("stats.iqr_multiplier must be positive")
	}
	if c.Stats.MinComparables < 1 {
		return fmt.Errorf("stats.min_comparables must be at least 1")
	}
	return nil
}
