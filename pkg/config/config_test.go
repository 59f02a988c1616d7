package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig writes a YAML config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
catalog:
  base_url: "https://catalog.example.com/feeds"
  categories: ["acao", "comedia", "series"]
  page_size: 50
  search_limit: 100

fetch:
  timeout: 20s
  requests_per_second: 2
  burst: 4

loader:
  page_delay: 750ms
  category_delay: 100ms
  show_progress: true

cache:
  directory: "`+dir+`"

server:
  port: 9090
  host: "127.0.0.1"
  read_timeout: 10s
  write_timeout: 10s
  enable_compression: true

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Catalog.BaseURL != "https://catalog.example.com/feeds" {
		t.Errorf("Unexpected base_url: %q", cfg.Catalog.BaseURL)
	}
	if len(cfg.Catalog.Categories) != 3 {
		t.Errorf("Expected 3 categories, got %d", len(cfg.Catalog.Categories))
	}
	if cfg.Catalog.SearchLimit != 100 {
		t.Errorf("Expected search_limit 100, got %d", cfg.Catalog.SearchLimit)
	}
	if cfg.Fetch.Timeout != 20*time.Second {
		t.Errorf("Expected timeout 20s, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.RequestsPerSecond != 2 {
		t.Errorf("Expected 2 requests per second, got %v", cfg.Fetch.RequestsPerSecond)
	}
	if cfg.Loader.PageDelay != 750*time.Millisecond {
		t.Errorf("Expected page_delay 750ms, got %v", cfg.Loader.PageDelay)
	}
	if !cfg.Loader.ShowProgress {
		t.Error("Expected show_progress true")
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Unexpected server config: %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  base_url: "https://catalog.example.com/feeds"
  categories: ["acao"]
cache:
  directory: "`+t.TempDir()+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Catalog.PageSize != 50 {
		t.Errorf("Expected default page_size 50, got %d", cfg.Catalog.PageSize)
	}
	if cfg.Catalog.SearchLimit != 200 {
		t.Errorf("Expected default search_limit 200, got %d", cfg.Catalog.SearchLimit)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.RequestsPerSecond != 4 || cfg.Fetch.Burst != 2 {
		t.Errorf("Unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.Loader.PageDelay != 500*time.Millisecond {
		t.Errorf("Expected default page_delay 500ms, got %v", cfg.Loader.PageDelay)
	}
	if cfg.Loader.CategoryDelay != 200*time.Millisecond {
		t.Errorf("Expected default category_delay 200ms, got %v", cfg.Loader.CategoryDelay)
	}
	if cfg.Server.Port != 8080 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Unexpected server defaults: %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "catalog: [unclosed")

	if _, err := Load(path); err == nil {
		t.Error("Load of malformed YAML should fail")
	}
}

func TestValidationFailures(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing base_url",
			yaml: `
catalog:
  categories: ["acao"]
cache:
  directory: "` + dir + `"
`,
		},
		{
			name: "base_url without scheme",
			yaml: `
catalog:
  base_url: "catalog.example.com/feeds"
  categories: ["acao"]
cache:
  directory: "` + dir + `"
`,
		},
		{
			name: "no categories",
			yaml: `
catalog:
  base_url: "https://catalog.example.com/feeds"
cache:
  directory: "` + dir + `"
`,
		},
		{
			name: "blank category id",
			yaml: `
catalog:
  base_url: "https://catalog.example.com/feeds"
  categories: ["acao", "  "]
cache:
  directory: "` + dir + `"
`,
		},
		{
			name: "page_size out of range",
			yaml: `
catalog:
  base_url: "https://catalog.example.com/feeds"
  categories: ["acao"]
  page_size: 5000
cache:
  directory: "` + dir + `"
`,
		},
		{
			name: "timeout too short",
			yaml: `
catalog:
  base_url: "https://catalog.example.com/feeds"
  categories: ["acao"]
fetch:
  timeout: 100ms
cache:
  directory: "` + dir + `"
`,
		},
		{
			name: "page_delay too short",
			yaml: `
catalog:
  base_url: "https://catalog.example.com/feeds"
  categories: ["acao"]
loader:
  page_delay: 10ms
cache:
  directory: "` + dir + `"
`,
		},
		{
			name: "port out of range",
			yaml: `
catalog:
  base_url: "https://catalog.example.com/feeds"
  categories: ["acao"]
cache:
  directory: "` + dir + `"
server:
  port: 99999
`,
		},
		{
			name: "unknown log level",
			yaml: `
catalog:
  base_url: "https://catalog.example.com/feeds"
  categories: ["acao"]
cache:
  directory: "` + dir + `"
logging:
  level: "verbose"
`,
		},
		{
			name: "unknown log format",
			yaml: `
catalog:
  base_url: "https://catalog.example.com/feeds"
  categories: ["acao"]
cache:
  directory: "` + dir + `"
logging:
  format: "xml"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("Expected validation to reject %s", tt.name)
			}
		})
	}
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := LoggingConfig{Level: tt.level}
		if got := cfg.GetLogLevel(); got != tt.expected {
			t.Errorf("GetLogLevel(%q) = %v, expected %v", tt.level, got, tt.expected)
		}
	}
}
