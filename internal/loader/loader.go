// Package loader implements the background deep-loader: a single cancelable
// loop that walks every category's remaining pages, pacing itself between
// fetches so interactive work and the source server are never starved.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/streamnest/go-vod-cache/internal/catalog"
	"github.com/streamnest/go-vod-cache/internal/fetch"
	"github.com/streamnest/go-vod-cache/internal/storage"
	"github.com/streamnest/go-vod-cache/pkg/config"
)

// Loader walks the configured categories in order and fetches every page the
// cursor tracker still believes exists. At most one loop runs at a time:
// Start on a running loader is rejected, which guards against duplicate
// loops from repeated screen mounts in the consuming UI.
type Loader struct {
	fetcher    *fetch.Fetcher
	index      *catalog.Index
	store      *storage.Store
	categories []string
	config     *config.LoaderConfig
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a deep-loader over the given category list. store may be nil;
// the initial-pass flag is then simply not recorded.
func New(cfg *config.LoaderConfig, categories []string, fetcher *fetch.Fetcher, index *catalog.Index, store *storage.Store, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher:    fetcher,
		index:      index,
		store:      store,
		categories: categories,
		config:     cfg,
		logger:     logger,
	}
}

// Start launches the background loop. onNewData is a change notification,
// not a data payload: it fires after every non-empty fetch and consumers
// re-pull current state from the index. Returns an error if a loop is
// already running.
func (l *Loader) Start(ctx context.Context, onNewData func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("deep loader is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true

	l.logger.Info("Starting deep loader",
		"categories", len(l.categories),
		"page_delay", l.config.PageDelay,
		"category_delay", l.config.CategoryDelay)

	l.wg.Add(1)
	go l.run(runCtx, onNewData)

	return nil
}

// Stop cancels the running loop and waits for it to exit. Cancellation is
// cooperative: an in-flight fetch completes and its merge sticks, the loop
// observes the cancellation at its next iteration boundary. Stop on an idle
// loader is a no-op.
func (l *Loader) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	l.mu.Unlock()

	l.logger.Info("Stopping deep loader")
	cancel()
	l.wg.Wait()
}

// Running reports whether a deep-load loop is currently active.
func (l *Loader) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// run is the loop body. One category's persistent failure never halts the
// whole pass; the loop just moves on to the next category.
func (l *Loader) run(ctx context.Context, onNewData func()) {
	defer l.wg.Done()
	defer l.finish()

	var bar *progressbar.ProgressBar
	if l.config.ShowProgress {
		bar = progressbar.Default(int64(len(l.categories)), "deep load")
	}

	complete := true
	for _, category := range l.categories {
		if ctx.Err() != nil {
			complete = false
			break
		}

		l.loadCategory(ctx, category, onNewData)

		if bar != nil {
			bar.Add(1)
		}

		if !sleep(ctx, l.config.CategoryDelay) {
			complete = false
			break
		}
	}

	if complete && ctx.Err() == nil {
		if l.store != nil {
			if err := l.store.SetInitialPassComplete(true); err != nil {
				l.logger.Warn("Failed to record initial pass flag", "error", err)
			}
		}
		l.logger.Info("Deep load pass complete")
		return
	}

	l.logger.Info("Deep load cancelled")
}

// loadCategory advances one category until its cursor reports exhaustion,
// the context is cancelled, or a transient fetch error defers the category
// to a later pass.
func (l *Loader) loadCategory(ctx context.Context, category string, onNewData func()) {
	for l.index.HasMore(category) {
		if ctx.Err() != nil {
			return
		}

		page := l.index.NextPage(category)

		// An interactive request may have fetched this page between the
		// cursor read and now; duplicate fetches are harmless but wasted
		// bandwidth, so recheck and let the cursor advance.
		if l.index.PageFetched(category, page) {
			continue
		}

		items, err := l.fetcher.FetchPage(ctx, category, page)
		if err != nil {
			l.logger.Warn("Deep load fetch failed, moving to next category",
				"category", category,
				"page", page,
				"error", err)
			return
		}

		if len(items) == 0 {
			// Terminal page; the fetcher already marked the category.
			return
		}

		if onNewData != nil {
			onNewData()
		}

		if !sleep(ctx, l.config.PageDelay) {
			return
		}
	}
}

// finish clears the running state once the loop has fully exited, so a
// subsequent Start begins a fresh loop.
func (l *Loader) finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	l.cancel = nil
}

// sleep waits for d or until the context is cancelled. Returns false when
// cancelled so callers can exit their loop.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
