package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streamnest/go-vod-cache/internal/catalog"
	"github.com/streamnest/go-vod-cache/internal/fetch"
	"github.com/streamnest/go-vod-cache/internal/storage"
	"github.com/streamnest/go-vod-cache/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

var pagePath = regexp.MustCompile(`^/(.+)-p(\d+)\.json$`)

// testCatalog serves category pages generated from a map of category id to
// per-page item counts. A category mapped to a nil slice answers every page
// with a 500, which models a persistently failing upstream. Requested paths
// are recorded for assertions.
type testCatalog struct {
	server *httptest.Server

	mu        sync.Mutex
	requested []string
}

func newTestCatalog(t *testing.T, pages map[string][]int) *testCatalog {
	t.Helper()

	tc := &testCatalog{}
	tc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc.mu.Lock()
		tc.requested = append(tc.requested, r.URL.Path)
		tc.mu.Unlock()

		m := pagePath.FindStringSubmatch(r.URL.Path)
		if m == nil {
			http.NotFound(w, r)
			return
		}
		category := m[1]
		page, _ := strconv.Atoi(m[2])

		counts, ok := pages[category]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if counts == nil {
			http.Error(w, "upstream down", http.StatusInternalServerError)
			return
		}
		if page < 1 || page > len(counts) {
			http.NotFound(w, r)
			return
		}

		records := make([]catalog.RawItem, counts[page-1])
		for i := range records {
			records[i] = catalog.RawItem{
				ID:   fmt.Sprintf("%s-p%d-%d", category, page, i),
				Name: fmt.Sprintf("%s title %d.%d", category, page, i),
				Type: "movie",
			}
		}
		json.NewEncoder(w).Encode(records)
	}))
	t.Cleanup(tc.server.Close)

	return tc
}

func (tc *testCatalog) requestedPaths() []string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]string, len(tc.requested))
	copy(out, tc.requested)
	return out
}

func newTestLoader(baseURL string, categories []string, store *storage.Store) (*Loader, *catalog.Index) {
	index := catalog.NewIndex(200)

	catalogCfg := &config.CatalogConfig{
		BaseURL:     baseURL,
		Categories:  categories,
		PageSize:    2,
		SearchLimit: 200,
	}
	fetchCfg := &config.FetchConfig{
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	}
	loaderCfg := &config.LoaderConfig{
		PageDelay:     time.Millisecond,
		CategoryDelay: time.Millisecond,
	}

	fetcher := fetch.New(catalogCfg, fetchCfg, index, store, testLogger())
	return New(loaderCfg, categories, fetcher, index, store, testLogger()), index
}

// waitUntil polls cond until it holds or the timeout expires.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for: %s", msg)
}

func TestDeepLoadWalksAllCategories(t *testing.T) {
	tc := newTestCatalog(t, map[string][]int{
		"acao":    {2, 2, 1},
		"comedia": {2, 1},
	})

	loader, index := newTestLoader(tc.server.URL, []string{"acao", "comedia"}, nil)

	var notifications atomic.Int32
	err := loader.Start(context.Background(), func() {
		notifications.Add(1)
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitUntil(t, 5*time.Second, func() bool {
		return !loader.Running()
	}, "deep load to finish")

	if got := len(index.Get("acao")); got != 5 {
		t.Errorf("Expected 5 items in acao, got %d", got)
	}
	if got := len(index.Get("comedia")); got != 3 {
		t.Errorf("Expected 3 items in comedia, got %d", got)
	}
	if index.HasMore("acao") || index.HasMore("comedia") {
		t.Error("Both categories should be exhausted after a full pass")
	}

	// Every non-empty page fires the change notification: 3 + 2 pages.
	if got := notifications.Load(); got != 5 {
		t.Errorf("Expected 5 change notifications, got %d", got)
	}
}

func TestDeepLoadRecordsInitialPass(t *testing.T) {
	tc := newTestCatalog(t, map[string][]int{
		"acao": {1},
	})

	store, err := storage.NewStore(&config.CacheConfig{Directory: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	loader, _ := newTestLoader(tc.server.URL, []string{"acao"}, store)

	if err := loader.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitUntil(t, 5*time.Second, func() bool {
		return !loader.Running()
	}, "deep load to finish")

	if !store.InitialPassComplete() {
		t.Error("A completed pass should record the initial-pass flag")
	}
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	tc := newTestCatalog(t, map[string][]int{
		"acao": {2, 2, 2, 2, 2, 2, 2, 2, 1},
	})

	loader, _ := newTestLoader(tc.server.URL, []string{"acao"}, nil)
	loader.config.PageDelay = 50 * time.Millisecond
	defer loader.Stop()

	if err := loader.Start(context.Background(), nil); err != nil {
		t.Fatalf("First start failed: %v", err)
	}

	if err := loader.Start(context.Background(), nil); err == nil {
		t.Error("Second start while running should be rejected")
	}
}

func TestStopHaltsProgress(t *testing.T) {
	tc := newTestCatalog(t, map[string][]int{
		"acao": {2, 2, 2, 2, 2, 2, 2, 2, 2, 1},
	})

	loader, index := newTestLoader(tc.server.URL, []string{"acao"}, nil)
	loader.config.PageDelay = 20 * time.Millisecond

	if err := loader.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitUntil(t, 5*time.Second, func() bool {
		return len(index.Get("acao")) > 0
	}, "first page to land")

	loader.Stop()

	if loader.Running() {
		t.Error("Loader should report idle after Stop returns")
	}

	// Whatever was merged before the stop stays merged, and nothing
	// further lands once the loop has exited.
	count := len(index.Get("acao"))
	if count == 0 {
		t.Fatal("Pages merged before Stop must remain merged")
	}
	time.Sleep(100 * time.Millisecond)
	if got := len(index.Get("acao")); got != count {
		t.Errorf("Loader kept fetching after Stop: %d -> %d items", count, got)
	}
}

func TestStopThenStartBeginsFreshLoop(t *testing.T) {
	tc := newTestCatalog(t, map[string][]int{
		"acao": {2, 2, 1},
	})

	loader, index := newTestLoader(tc.server.URL, []string{"acao"}, nil)

	if err := loader.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	loader.Stop()

	if err := loader.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start after a stop should begin a fresh loop: %v", err)
	}

	waitUntil(t, 5*time.Second, func() bool {
		return !loader.Running()
	}, "second pass to finish")

	if got := len(index.Get("acao")); got != 5 {
		t.Errorf("Expected the resumed pass to finish the category, got %d items", got)
	}
}

func TestFailingCategoryDoesNotHaltPass(t *testing.T) {
	tc := newTestCatalog(t, map[string][]int{
		"bad":  nil,
		"good": {2, 1},
	})

	loader, index := newTestLoader(tc.server.URL, []string{"bad", "good"}, nil)

	if err := loader.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitUntil(t, 5*time.Second, func() bool {
		return !loader.Running()
	}, "deep load to finish")

	if got := len(index.Get("good")); got != 3 {
		t.Errorf("The failing category should not halt the pass; good has %d items", got)
	}
	if !index.HasMore("bad") {
		t.Error("A transient failure must leave the category retryable")
	}
}

func TestDeepLoadSkipsPagesFetchedInteractively(t *testing.T) {
	tc := newTestCatalog(t, map[string][]int{
		"acao": {2, 2, 1},
	})

	loader, index := newTestLoader(tc.server.URL, []string{"acao"}, nil)

	// As if an interactive request had already fetched page 1.
	index.Seed("acao", []catalog.MediaItem{
		{ID: "acao-p1-0", Name: "seed 0", Category: "acao"},
		{ID: "acao-p1-1", Name: "seed 1", Category: "acao"},
	}, 1, false)

	if err := loader.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitUntil(t, 5*time.Second, func() bool {
		return !loader.Running()
	}, "deep load to finish")

	for _, path := range tc.requestedPaths() {
		if path == "/acao-p1.json" {
			t.Error("Deep load re-fetched a page already cached")
		}
	}
	if got := len(index.Get("acao")); got != 5 {
		t.Errorf("Expected 5 items after resuming from page 2, got %d", got)
	}
}
