package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// validate performs comprehensive validation of the configuration.
// Returns an error describing the first validation failure found.
func validate(config *Config) error {
	if err := validateCatalog(&config.Catalog); err != nil {
		return fmt.Errorf("catalog config: %w", err)
	}

	if err := validateFetch(&config.Fetch); err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}

	if err := validateLoader(&config.Loader); err != nil {
		return fmt.Errorf("loader config: %w", err)
	}

	if err := validateCache(&config.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := validateServer(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// validateCatalog validates the remote catalog source configuration.
func validateCatalog(config *CatalogConfig) error {
	if config.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if !strings.HasPrefix(config.BaseURL, "http://") && !strings.HasPrefix(config.BaseURL, "https://") {
		return fmt.Errorf("base_url must start with http:// or https://")
	}

	if len(config.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}

	for _, category := range config.Categories {
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("category ids cannot be blank")
		}
	}

	if config.PageSize <= 0 || config.PageSize > 1000 {
		return fmt.Errorf("page_size must be between 1 and 1000")
	}

	if config.SearchLimit <= 0 {
		return fmt.Errorf("search_limit must be positive")
	}

	return nil
}

// validateFetch validates HTTP fetch configuration.
func validateFetch(config *FetchConfig) error {
	if config.Timeout < time.Second || config.Timeout > 5*time.Minute {
		return fmt.Errorf("timeout must be between 1s and 5m")
	}

	if config.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}

	if config.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}

	return nil
}

// validateLoader validates deep-loader pacing configuration.
func validateLoader(config *LoaderConfig) error {
	if config.PageDelay < 50*time.Millisecond || config.PageDelay > 30*time.Second {
		return fmt.Errorf("page_delay must be between 50ms and 30s")
	}

	if config.CategoryDelay < 0 || config.CategoryDelay > 30*time.Second {
		return fmt.Errorf("category_delay must be between 0 and 30s")
	}

	return nil
}

// validateCache validates cache configuration and directory permissions.
func validateCache(config *CacheConfig) error {
	if config.Directory == "" {
		return fmt.Errorf("directory is required")
	}

	// Check if directory exists or can be created
	if err := os.MkdirAll(config.Directory, 0755); err != nil {
		return fmt.Errorf("cannot create cache directory %s: %w", config.Directory, err)
	}

	return nil
}

// validateServer validates HTTP server configuration.
func validateServer(config *ServerConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	return nil
}

// validateLogging validates logging configuration.
func validateLogging(config *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, config.Level) {
		return fmt.Errorf("level must be one of: %s", strings.Join(validLevels, ", "))
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, config.Format) {
		return fmt.Errorf("format must be one of: %s", strings.Join(validFormats, ", "))
	}

	return nil
}

// contains checks if a slice contains a specific string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
