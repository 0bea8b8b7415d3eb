package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Logging     LoggingConfig    `toml:"logging"`
	Storage     StorageConfig    `toml:"storage"`
	Providers   []ProviderConfig `toml:"providers"` // ordered: first entry is tried first
	Research    ResearchConfig   `toml:"research"`
	Cache       CacheConfig      `toml:"cache"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ProviderConfig describes one generation backend. The slice order in the
// config file is the fallback priority and is fixed for the process lifetime.
type ProviderConfig struct {
	Name        string  `toml:"name"`     // "claude", "gemini", or "openrouter"
	APIKey      string  `toml:"api_key"`  // Provider credential
	Model       string  `toml:"model"`    // Model identifier
	Endpoint    string  `toml:"endpoint"` // Base URL (openrouter only; SDK providers ignore it)
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// ResearchConfig contains research gateway settings
type ResearchConfig struct {
	URL          string `toml:"url"`           // Research service base URL
	PollInterval string `toml:"poll_interval"` // e.g. "1s"
	Timeout      string `toml:"timeout"`       // Poll ceiling, e.g. "120s"
	RateLimit    int    `toml:"rate_limit"`    // Requests per second against the service
}

// CacheConfig contains analysis result cache settings
type CacheConfig struct {
	TTL             string `toml:"ttl"`              // Entry lifetime, e.g. "24h"
	CleanupSchedule string `toml:"cleanup_schedule"` // Cron schedule for expired-entry sweeps
}

// PollInterval parses the research poll interval with a 1s default
func (r ResearchConfig) PollIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(r.PollInterval); err == nil && d > 0 {
		return d
	}
	return time.Second
}

// TimeoutDuration parses the research poll ceiling with a 120s default
func (r ResearchConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(r.Timeout); err == nil && d > 0 {
		return d
	}
	return 120 * time.Second
}

// TTLDuration parses the cache TTL with a 24h default
func (c CacheConfig) TTLDuration() time.Duration {
	if d, err := time.ParseDuration(c.TTL); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings are expected in consilium.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Providers: nil, // user must configure at least one backend
		Research: ResearchConfig{
			URL:          "http://localhost:9100",
			PollInterval: "1s",
			Timeout:      "120s",
			RateLimit:    10,
		},
		Cache: CacheConfig{
			TTL:             "24h",
			CleanupSchedule: "0 0 * * * *", // hourly sweep
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files; later files override
// earlier files. Priority: env vars > last config file > ... > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CONSILIUM_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("CONSILIUM_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CONSILIUM_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("CONSILIUM_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("CONSILIUM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("CONSILIUM_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("CONSILIUM_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if url := os.Getenv("CONSILIUM_RESEARCH_URL"); url != "" {
		config.Research.URL = url
	}
	if interval := os.Getenv("CONSILIUM_RESEARCH_POLL_INTERVAL"); interval != "" {
		config.Research.PollInterval = interval
	}
	if timeout := os.Getenv("CONSILIUM_RESEARCH_TIMEOUT"); timeout != "" {
		config.Research.Timeout = timeout
	}

	if ttl := os.Getenv("CONSILIUM_CACHE_TTL"); ttl != "" {
		config.Cache.TTL = ttl
	}

	// Provider credentials: env vars override the matching entry's api_key,
	// and append a provider when the config file carries none for that name.
	applyProviderEnv(config, "claude", os.Getenv("ANTHROPIC_API_KEY"), "claude-haiku-3-5-20241022")
	applyProviderEnv(config, "gemini", os.Getenv("GEMINI_API_KEY"), "gemini-2.0-flash-exp")
	applyProviderEnv(config, "openrouter", os.Getenv("OPENROUTER_API_KEY"), "google/gemini-2.0-flash-exp:free")
}

func applyProviderEnv(config *Config, name, key, defaultModel string) {
	if key == "" {
		return
	}
	for i := range config.Providers {
		if config.Providers[i].Name == name {
			config.Providers[i].APIKey = key
			return
		}
	}
	config.Providers = append(config.Providers, ProviderConfig{
		Name:   name,
		APIKey: key,
		Model:  defaultModel,
	})
}

// ApplyFlagOverrides applies command-line overrides on top of file and env
// configuration. Zero values leave the configured setting untouched.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that cannot be defaulted away
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no generation providers configured: set at least one [[providers]] entry or an API key env var")
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if p.APIKey == "" {
			return fmt.Errorf("provider %q: api_key is required", p.Name)
		}
	}
	return nil
}
