// Package cache wires the merge index, page fetcher, deep-loader and
// hydration store into the single query/load surface the UI layer consumes.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streamnest/go-vod-cache/internal/catalog"
	"github.com/streamnest/go-vod-cache/internal/fetch"
	"github.com/streamnest/go-vod-cache/internal/loader"
	"github.com/streamnest/go-vod-cache/internal/storage"
	"github.com/streamnest/go-vod-cache/pkg/config"
)

// Cache is the catalog cache facade. It is constructed once at application
// start and injected into consumers; all methods are safe for concurrent use.
//
// Failures at the fetch boundary degrade to "fewer items shown": load
// operations return whatever the index currently holds and never surface
// transient network errors to the caller.
type Cache struct {
	config  *config.Config
	index   *catalog.Index
	fetcher *fetch.Fetcher
	loader  *loader.Loader
	store   *storage.Store
	logger  *slog.Logger
}

// New builds the full cache stack from configuration. The returned cache is
// empty; call Hydrate to seed it from disk before issuing network fetches.
func New(cfg *config.Config, logger *slog.Logger) (*Cache, error) {
	store, err := storage.NewStore(&cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}

	index := catalog.NewIndex(cfg.Catalog.SearchLimit)
	fetcher := fetch.New(&cfg.Catalog, &cfg.Fetch, index, store, logger)
	deepLoader := loader.New(&cfg.Loader, cfg.Catalog.Categories, fetcher, index, store, logger)

	return &Cache{
		config:  cfg,
		index:   index,
		fetcher: fetcher,
		loader:  deepLoader,
		store:   store,
		logger:  logger,
	}, nil
}

// Hydrate seeds the index and cursor tracker from persisted snapshots.
// Returns true if any category was restored. Meant to run at startup,
// before any network activity; a relaunch then shows previously loaded data
// instantly.
func (c *Cache) Hydrate() bool {
	snapshots, err := c.store.LoadCategories()
	if err != nil {
		c.logger.Warn("Hydration failed, starting cold", "error", err)
		return false
	}

	restored := 0
	for _, snapshot := range snapshots {
		// An exhausted snapshot is restored even when empty: a category
		// that 404'd on page 1 stays terminal across sessions instead of
		// being re-fetched on every launch.
		if len(snapshot.Items) == 0 && snapshot.LastPage == 0 && !snapshot.Exhausted {
			continue
		}
		c.index.Seed(snapshot.Category, snapshot.Items, snapshot.LastPage, snapshot.Exhausted)
		restored++
	}

	if restored > 0 {
		c.logger.Info("Catalog hydrated from disk", "categories", restored)
	}

	return restored > 0
}

// LoadCategory returns the category's items, fetching page 1 first if
// nothing is cached yet. Hydrated data satisfies the request without any
// network call.
func (c *Cache) LoadCategory(ctx context.Context, category string) []catalog.MediaItem {
	if items := c.index.Get(category); len(items) > 0 {
		return items
	}

	if c.index.HasMore(category) {
		// Transient errors are logged at the fetch boundary and
		// swallowed here; the category simply renders empty until a
		// later attempt succeeds.
		c.fetcher.FetchPage(ctx, category, c.index.NextPage(category))
	}

	return c.index.Get(category)
}

// LoadMore fetches the category's next page and returns the full merged list
// along with whether further pages are believed to exist.
func (c *Cache) LoadMore(ctx context.Context, category string) ([]catalog.MediaItem, bool) {
	if c.index.HasMore(category) {
		c.fetcher.FetchPage(ctx, category, c.index.NextPage(category))
	}

	return c.index.Get(category), c.index.HasMore(category)
}

// HasMore reports whether further pages are believed to exist for the
// category.
func (c *Cache) HasMore(category string) bool {
	return c.index.HasMore(category)
}

// Search runs the substring scan synchronously. Callers on a render path
// should prefer SearchAsync.
func (c *Cache) Search(query string) []catalog.MediaItem {
	return c.index.Search(query)
}

// SearchAsync schedules the scan off the caller's path and delivers the
// result on the returned channel, which is closed after the single send.
// Large-catalog scans therefore never block the frame that issued them.
func (c *Cache) SearchAsync(query string) <-chan []catalog.MediaItem {
	results := make(chan []catalog.MediaItem, 1)

	go func() {
		results <- c.index.Search(query)
		close(results)
	}()

	return results
}

// GetAllLoaded returns every category's currently accumulated items.
func (c *Cache) GetAllLoaded() map[string][]catalog.MediaItem {
	return c.index.All()
}

// StartBackgroundLoad starts the deep-loader. onNewData fires after every
// page that lands; consumers re-pull state at their own pace. Returns an
// error if a deep-load is already running.
func (c *Cache) StartBackgroundLoad(ctx context.Context, onNewData func()) error {
	return c.loader.Start(ctx, onNewData)
}

// StopBackgroundLoad cancels the deep-loader and waits for it to exit.
func (c *Cache) StopBackgroundLoad() {
	c.loader.Stop()
}

// BackgroundLoading reports whether a deep-load is in flight.
func (c *Cache) BackgroundLoading() bool {
	return c.loader.Running()
}

// InitialPassComplete reports whether a full catalog pass finished in this
// or a prior session.
func (c *Cache) InitialPassComplete() bool {
	return c.store.InitialPassComplete()
}

// ClearAllCaches drops the in-memory index and the persisted snapshots.
// Exhausted categories become fetchable again from page 1.
func (c *Cache) ClearAllCaches() error {
	c.index.Reset()

	if err := c.store.Reset(); err != nil {
		return fmt.Errorf("failed to reset catalog store: %w", err)
	}

	c.logger.Info("All catalog caches cleared")
	return nil
}

// ExportSnapshot writes the full merged catalog to a JSON file atomically.
func (c *Cache) ExportSnapshot(path string) error {
	return storage.ExportSnapshot(path, c.index.All(), c.logger)
}

// Close stops any background load and closes the store.
func (c *Cache) Close() error {
	c.loader.Stop()
	return c.store.Close()
}
