// Package config handles configuration loading for tickerlab.
// It supports YAML config files, .env files and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/seenimoa/tickerlab/internal/analysis/gaps"
)

// AppName is reported by the health endpoint.
const AppName = "ticker-lab-backend"

// Config represents the complete application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Polygon PolygonConfig `mapstructure:"polygon" yaml:"polygon"`
	Sources SourcesConfig `mapstructure:"sources" yaml:"sources"`
	Cache   CacheConfig   `mapstructure:"cache"   yaml:"cache"`
	Market  MarketConfig  `mapstructure:"market"  yaml:"market"`
	News    NewsConfig    `mapstructure:"news"    yaml:"news"`
	Gaps    GapsConfig    `mapstructure:"gaps"    yaml:"gaps"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// PolygonConfig holds the paid market-data API settings.
type PolygonConfig struct {
	APIKey  string        `mapstructure:"api_key"  yaml:"api_key"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"  yaml:"timeout"`
}

// SourcesConfig holds upstream endpoints and scrape settings. Base URLs are
// configurable so tests and proxies can redirect them.
type SourcesConfig struct {
	YahooURL           string        `mapstructure:"yahoo_url"            yaml:"yahoo_url"`
	YahooRSSURL        string        `mapstructure:"yahoo_rss_url"        yaml:"yahoo_rss_url"`
	FinvizURL          string        `mapstructure:"finviz_url"           yaml:"finviz_url"`
	GoogleFinanceURL   string        `mapstructure:"google_finance_url"   yaml:"google_finance_url"`
	KnowTheFloatURL    string        `mapstructure:"knowthefloat_url"     yaml:"knowthefloat_url"`
	DilutionTrackerURL string        `mapstructure:"dilutiontracker_url"  yaml:"dilutiontracker_url"`
	UserAgent          string        `mapstructure:"user_agent"           yaml:"user_agent"`
	APITimeout         time.Duration `mapstructure:"api_timeout"          yaml:"api_timeout"`
	ScrapeTimeout      time.Duration `mapstructure:"scrape_timeout"       yaml:"scrape_timeout"`
}

// CacheTier sizes one cache instance.
type CacheTier struct {
	Capacity int           `mapstructure:"capacity" yaml:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"      yaml:"ttl"`
}

// CacheConfig holds the three cache instances.
type CacheConfig struct {
	Profile  CacheTier `mapstructure:"profile"  yaml:"profile"`
	Intraday CacheTier `mapstructure:"intraday" yaml:"intraday"`
	Daily    CacheTier `mapstructure:"daily"    yaml:"daily"`
}

// MarketConfig holds market calendar settings.
type MarketConfig struct {
	Timezone string `mapstructure:"timezone" yaml:"timezone"` // used for naive timestamps and day bounds
}

// NewsConfig holds news merge settings.
type NewsConfig struct {
	RecencyDays int `mapstructure:"recency_days" yaml:"recency_days"`
	MaxItems    int `mapstructure:"max_items"    yaml:"max_items"`
}

// GapsConfig holds gap statistics defaults.
type GapsConfig struct {
	DefaultMonths    int     `mapstructure:"default_months"    yaml:"default_months"`
	DefaultThreshold float64 `mapstructure:"default_threshold" yaml:"default_threshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.tickerlab/config.yaml (home directory)
//  3. /etc/tickerlab/config.yaml (system)
//
// .env and ../.env are loaded first without overriding the real environment.
// Environment variables override config file values.
// Format: TICKERLAB_<SECTION>_<KEY>, e.g., TICKERLAB_POLYGON_API_KEY
func Load() (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".tickerlab"))
	v.AddConfigPath("/etc/tickerlab")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TICKERLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Polygon defaults
	v.SetDefault("polygon.api_key", "")
	v.SetDefault("polygon.base_url", "https://api.polygon.io")
	v.SetDefault("polygon.timeout", 15*time.Second)

	// Upstream defaults
	v.SetDefault("sources.yahoo_url", "https://query1.finance.yahoo.com")
	v.SetDefault("sources.yahoo_rss_url", "https://feeds.finance.yahoo.com/rss/2.0/headline")
	v.SetDefault("sources.finviz_url", "https://finviz.com")
	v.SetDefault("sources.google_finance_url", "https://www.google.com/finance")
	v.SetDefault("sources.knowthefloat_url", "https://www.knowthefloat.com")
	v.SetDefault("sources.dilutiontracker_url", "https://dilutiontracker.com")
	v.SetDefault("sources.user_agent", "")
	v.SetDefault("sources.api_timeout", 15*time.Second)
	v.SetDefault("sources.scrape_timeout", 20*time.Second)

	// Cache defaults
	v.SetDefault("cache.profile.capacity", 512)
	v.SetDefault("cache.profile.ttl", time.Hour)
	v.SetDefault("cache.intraday.capacity", 512)
	v.SetDefault("cache.intraday.ttl", 2*time.Minute)
	v.SetDefault("cache.daily.capacity", 512)
	v.SetDefault("cache.daily.ttl", 6*time.Hour)

	// Market defaults
	v.SetDefault("market.timezone", "America/New_York")

	// News defaults
	v.SetDefault("news.recency_days", 3)
	v.SetDefault("news.max_items", 20)

	// Gap statistics defaults
	v.SetDefault("gaps.default_months", gaps.DefaultMonths)
	v.SetDefault("gaps.default_threshold", gaps.DefaultThreshold)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv reads the legacy unprefixed variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("TICKERLAB_POLYGON_API_KEY"); key != "" {
		cfg.Polygon.APIKey = key
	} else if key := os.Getenv("POLYGON_API_KEY"); key != "" {
		cfg.Polygon.APIKey = key
	}
	if tz := os.Getenv("TICKER_LAB_TZ"); tz != "" {
		cfg.Market.Timezone = tz
	}
	cfg.Polygon.APIKey = strings.TrimSpace(cfg.Polygon.APIKey)
}

// Validate checks ranges that would otherwise fail at request time.
func (c *Config) Validate() error {
	for name, tier := range map[string]CacheTier{
		"profile":  c.Cache.Profile,
		"intraday": c.Cache.Intraday,
		"daily":    c.Cache.Daily,
	} {
		if tier.Capacity < 1 {
			return fmt.Errorf("cache.%s.capacity must be positive, got %d", name, tier.Capacity)
		}
		if tier.TTL <= 0 {
			return fmt.Errorf("cache.%s.ttl must be positive, got %s", name, tier.TTL)
		}
	}
	if c.Gaps.DefaultMonths < 6 || c.Gaps.DefaultMonths > 12 {
		return fmt.Errorf("gaps.default_months must be in [6,12], got %d", c.Gaps.DefaultMonths)
	}
	if c.Gaps.DefaultThreshold < 0 || c.Gaps.DefaultThreshold > 200 {
		return fmt.Errorf("gaps.default_threshold must be in [0,200], got %g", c.Gaps.DefaultThreshold)
	}
	if c.News.MaxItems < 1 {
		return fmt.Errorf("news.max_items must be positive, got %d", c.News.MaxItems)
	}
	return nil
}

// Addr returns the host:port the API server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// loadDotEnv loads .env files if they exist.
func loadDotEnv() {
	for _, p := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
