package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/streamnest/go-vod-cache/internal/catalog"
)

// CatalogExport is the on-disk shape of a full catalog snapshot export.
type CatalogExport struct {
	ExportedAt time.Time                      `json:"exported_at"`
	Categories map[string][]catalog.MediaItem `json:"categories"`
}

// ExportSnapshot writes the full merged catalog to a JSON file using an
// atomic rename, so a crash mid-write never leaves a truncated export behind.
func ExportSnapshot(path string, categories map[string][]catalog.MediaItem, logger *slog.Logger) error {
	export := CatalogExport{
		ExportedAt: time.Now(),
		Categories: categories,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog export: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("atomic write failed for %s: %w", path, err)
	}

	total := 0
	for _, items := range categories {
		total += len(items)
	}

	logger.Info("Catalog snapshot exported",
		"path", path,
		"categories", len(categories),
		"items", total,
		"size_bytes", len(data))

	return nil
}
