package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ProviderConfig holds the settings of one market data provider.
type ProviderConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	Priority           int    `mapstructure:"priority"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the HTTP timeout for the provider.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Config holds all configuration for the marketbrain application.
type Config struct {
	EnableCaching         bool   `mapstructure:"enable_caching"`
	CacheTTLSeconds       int    `mapstructure:"cache_ttl_seconds"`
	LogLevel              string `mapstructure:"log_level"`
	HTTPAddr              string `mapstructure:"http_addr"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`

	// Symbols are quoted once when no HTTP address is configured.
	Symbols []string `mapstructure:"symbols"`

	// Providers is keyed by provider name, e.g. "alpha_vantage".
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// CacheTTL returns the result cache time to live.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RequestTimeout returns the outer deadline applied to one-shot runs and
// HTTP requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ProviderNames returns the configured provider names in sorted order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type providerDefaults struct {
	envPrefix string
	baseURL   string
	priority  int
	rpm       int
}

// Built-in providers. Priority 1 is tried first when results are ordered.
var builtinProviders = map[string]providerDefaults{
	"alpha_vantage": {envPrefix: "ALPHA_VANTAGE", baseURL: "https://www.alphavantage.co/query", priority: 3, rpm: 5},
	"finnhub":       {envPrefix: "FINNHUB", baseURL: "https://finnhub.io/api/v1", priority: 1, rpm: 60},
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Load reads configuration from environment variables, an optional .env
// file and an optional config file. Environment variables take precedence
// over config file values.
//
// Expected environment variables:
//   - ALPHA_VANTAGE_API_KEY, FINNHUB_API_KEY
//   - ALPHA_VANTAGE_BASE_URL, FINNHUB_BASE_URL (optional, defaults to production)
//   - ENABLE_CACHING, CACHE_TTL_SECONDS
//   - LOG_LEVEL, HTTP_ADDR, REQUEST_TIMEOUT_SECONDS
//   - SYMBOLS (comma separated)
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.marketbrain")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile reads configuration from the given YAML file plus the
// environment. It is used when the file location is explicit.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set up environment variable support
	v.SetEnvPrefix("") // No prefix, use full names
	v.AutomaticEnv()

	v.SetDefault("enable_caching", true)
	v.SetDefault("cache_ttl_seconds", 300)
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", "")
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("symbols", []string{})

	v.BindEnv("enable_caching", "ENABLE_CACHING")
	v.BindEnv("cache_ttl_seconds", "CACHE_TTL_SECONDS")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("http_addr", "HTTP_ADDR")
	v.BindEnv("request_timeout_seconds", "REQUEST_TIMEOUT_SECONDS")
	v.BindEnv("symbols", "SYMBOLS")

	for name, d := range builtinProviders {
		key := "providers." + name
		v.SetDefault(key+".enabled", true)
		v.SetDefault(key+".base_url", d.baseURL)
		v.SetDefault(key+".priority", d.priority)
		v.SetDefault(key+".rate_limit_per_minute", d.rpm)
		v.SetDefault(key+".timeout_seconds", 30)

		v.BindEnv(key+".api_key", d.envPrefix+"_API_KEY")
		v.BindEnv(key+".base_url", d.envPrefix+"_BASE_URL")
	}

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))
	config.Symbols = cleanSymbols(config.Symbols)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// cleanSymbols upper-cases symbols and drops blanks, which also covers a
// trailing comma in SYMBOLS.
func cleanSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.CacheTTLSeconds < 0 {
		problems = append(problems, "cache_ttl_seconds must not be negative")
	}
	if !logLevels[c.LogLevel] {
		problems = append(problems, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	if c.RequestTimeoutSeconds < 0 {
		problems = append(problems, "request_timeout_seconds must not be negative")
	}
	if c.HTTPAddr == "" && len(c.Symbols) == 0 {
		problems = append(problems, "SYMBOLS is required when HTTP_ADDR is not set")
	}

	for _, name := range c.ProviderNames() {
		p := c.Providers[name]
		if p.Priority < 1 || p.Priority > 3 {
			problems = append(problems, fmt.Sprintf("providers.%s.priority must be between 1 and 3", name))
		}
		if p.RateLimitPerMinute < 0 {
			problems = append(problems, fmt.Sprintf("providers.%s.rate_limit_per_minute must not be negative", name))
		}
		if p.TimeoutSeconds < 0 {
			problems = append(problems, fmt.Sprintf("providers.%s.timeout_seconds must not be negative", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
