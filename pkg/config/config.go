// Package config provides configuration management for go-vod-cache.
// It uses koanf for flexible configuration loading from YAML files with validation.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete configuration for the go-vod-cache library.
// It represents the structure of config.yaml with validation rules for each section.
type Config struct {
	Catalog CatalogConfig `koanf:"catalog"`
	Fetch   FetchConfig   `koanf:"fetch"`
	Loader  LoaderConfig  `koanf:"loader"`
	Cache   CacheConfig   `koanf:"cache"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// CatalogConfig describes the remote catalog source and its page layout.
type CatalogConfig struct {
	BaseURL     string   `koanf:"base_url"`
	Categories  []string `koanf:"categories"`
	PageSize    int      `koanf:"page_size"`
	SearchLimit int      `koanf:"search_limit"`
}

// FetchConfig controls HTTP fetch behavior against the catalog source.
type FetchConfig struct {
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

// LoaderConfig controls the background deep-loader's pacing.
type LoaderConfig struct {
	PageDelay     time.Duration `koanf:"page_delay"`
	CategoryDelay time.Duration `koanf:"category_delay"`
	ShowProgress  bool          `koanf:"show_progress"`
}

// CacheConfig defines local persistence settings.
type CacheConfig struct {
	Directory string `koanf:"directory"`
}

// ServerConfig contains HTTP server settings for the query facade.
type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	EnableCompression bool          `koanf:"enable_compression"`
}

// LoggingConfig defines logging behavior and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads configuration from the specified YAML file and applies validation.
// Returns a validated Config struct or an error if loading/validation fails.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults sets sensible defaults for configuration values that weren't specified.
func applyDefaults(config *Config) {
	// Catalog defaults
	if config.Catalog.PageSize == 0 {
		config.Catalog.PageSize = 50
	}
	if config.Catalog.SearchLimit == 0 {
		config.Catalog.SearchLimit = 200
	}

	// Fetch defaults
	if config.Fetch.Timeout == 0 {
		config.Fetch.Timeout = 30 * time.Second
	}
	if config.Fetch.RequestsPerSecond == 0 {
		config.Fetch.RequestsPerSecond = 4
	}
	if config.Fetch.Burst == 0 {
		config.Fetch.Burst = 2
	}

	// Loader defaults
	if config.Loader.PageDelay == 0 {
		config.Loader.PageDelay = 500 * time.Millisecond
	}
	if config.Loader.CategoryDelay == 0 {
		config.Loader.CategoryDelay = 200 * time.Millisecond
	}

	// Cache defaults
	if config.Cache.Directory == "" {
		config.Cache.Directory = "./cache"
	}

	// Server defaults
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 15 * time.Second
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
}

// GetLogLevel converts the string log level to slog.Level.
// Returns slog.LevelInfo for invalid or unknown levels.
func (c *LoggingConfig) GetLogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
