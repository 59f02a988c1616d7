// Package fetch retrieves category pages from the remote catalog source,
// normalizes their records and folds them into the merge index, classifying
// each page as terminal or not along the way.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/streamnest/go-vod-cache/internal/catalog"
	"github.com/streamnest/go-vod-cache/internal/storage"
	"github.com/streamnest/go-vod-cache/pkg/config"
)

// Fetcher retrieves one page of one category at a time. Every successful
// fetch advances the category's cursor, merges the page into the index and
// writes the category snapshot through to the store. Outbound requests share
// a rate limiter so interactive and background fetches together never hammer
// the static file host.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	baseURL  string
	pageSize int
	index    *catalog.Index
	store    *storage.Store
	logger   *slog.Logger
}

// New creates a page fetcher. store may be nil, in which case fetched pages
// are merged in memory only.
func New(catalogCfg *config.CatalogConfig, fetchCfg *config.FetchConfig, index *catalog.Index, store *storage.Store, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: fetchCfg.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(fetchCfg.RequestsPerSecond), fetchCfg.Burst),
		baseURL:  strings.TrimSuffix(catalogCfg.BaseURL, "/"),
		pageSize: catalogCfg.PageSize,
		index:    index,
		store:    store,
		logger:   logger,
	}
}

// PageURL constructs the deterministic URL for one category page. The page
// number is part of the path; the source is a tree of static JSON files and
// takes no query parameters.
func (f *Fetcher) PageURL(category string, page int) string {
	return fmt.Sprintf("%s/%s-p%d.json", f.baseURL, category, page)
}

// FetchPage retrieves and ingests one page of one category.
//
// An HTTP 404 or an unparseable body is the category's normal end state: the
// category is marked exhausted and an empty page is returned with no error.
// Any other failure (timeout, DNS, 5xx) is returned as an error without
// touching the exhausted flag, so the next advance attempt retries it.
func (f *Fetcher) FetchPage(ctx context.Context, category string, page int) ([]catalog.MediaItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	url := f.PageURL(category, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("Page fetch failed, will retry on next advance",
			"category", category,
			"page", page,
			"error", err)
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		f.logger.Debug("Page not found, category exhausted",
			"category", category,
			"page", page)
		f.index.MarkExhausted(category)
		f.persist(category)
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("Unexpected status for page fetch",
			"category", category,
			"page", page,
			"status", resp.StatusCode)
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, url)
	}

	var items []catalog.MediaItem
	err = decodeRecords(resp.Body, func(raw catalog.RawItem) error {
		items = append(items, catalog.Normalize(raw, category))
		return nil
	})
	if err != nil {
		// A malformed body is a terminal signal, same as a missing page.
		// Partially decoded records are discarded rather than merged.
		f.logger.Warn("Page body unparseable, category exhausted",
			"category", category,
			"page", page,
			"error", err)
		f.index.MarkExhausted(category)
		f.persist(category)
		return nil, nil
	}

	// A short page is heuristically the tail page, saving one wasted
	// round-trip per category.
	if len(items) < f.pageSize {
		f.index.MarkExhausted(category)
	}

	f.index.RecordPage(category, page)
	f.index.Merge(category, items)
	f.persist(category)

	f.logger.Debug("Page fetched",
		"category", category,
		"page", page,
		"records", len(items),
		"has_more", f.index.HasMore(category))

	return items, nil
}

// persist writes the category's current merged state through to the store.
// A persistence failure only costs us the snapshot, never the fetch.
func (f *Fetcher) persist(category string) {
	if f.store == nil {
		return
	}

	items, lastPage, exhausted := f.index.Export(category)
	snapshot := &storage.CategorySnapshot{
		Category:  category,
		Items:     items,
		LastPage:  lastPage,
		Exhausted: exhausted,
	}

	if err := f.store.SaveCategory(snapshot); err != nil {
		f.logger.Warn("Failed to persist category snapshot",
			"category", category,
			"error", err)
	}
}
