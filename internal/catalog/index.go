package catalog

import (
	"sort"
	"sync"
)

// Index is the in-memory merge index: per category it accumulates the
// deduplicated item list plus the pagination cursor state. It is the one
// shared structure touched by both the background deep-loader goroutine and
// interactive callers, so every operation takes the mutex.
//
// An Index is constructed explicitly and injected into its consumers; there
// is no package-level instance. Construct a fresh one per test.
type Index struct {
	mu          sync.RWMutex
	categories  map[string]*categoryRecord
	searchLimit int
}

// categoryRecord holds one category's accumulated state. byKey maps an
// item's effective key to its position in items so merges stay linear.
type categoryRecord struct {
	items     []MediaItem
	byKey     map[string]int
	lastPage  int
	exhausted bool
}

// NewIndex creates an empty merge index. searchLimit bounds the result set
// handed back by Search regardless of catalog size.
func NewIndex(searchLimit int) *Index {
	return &Index{
		categories:  make(map[string]*categoryRecord),
		searchLimit: searchLimit,
	}
}

// record returns the category's record, creating it lazily on first use.
// Callers must hold the write lock.
func (ix *Index) record(category string) *categoryRecord {
	rec, ok := ix.categories[category]
	if !ok {
		rec = &categoryRecord{byKey: make(map[string]int)}
		ix.categories[category] = rec
	}
	return rec
}

// Merge folds a fetched page into the category's accumulated list. For a key
// not yet present the item is inserted; for a key already present the
// first-seen item wins, except when both sides are series, in which case the
// per-season episode lists are unioned. Merging the same page twice is a
// no-op, which makes duplicate fetches across interactive and background
// callers harmless.
func (ix *Index) Merge(category string, items []MediaItem) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec := ix.record(category)
	for _, item := range items {
		key := item.Key()
		idx, ok := rec.byKey[key]
		if !ok {
			// The stored item owns its episode map outright; the caller's
			// page slice must not alias index-internal state.
			rec.items = append(rec.items, item.Clone())
			rec.byKey[key] = len(rec.items) - 1
			continue
		}

		existing := &rec.items[idx]
		if existing.IsSeries() && item.IsSeries() {
			mergeEpisodes(existing, &item)
		}
		// Otherwise keep the first-seen item: it carries the richer
		// metadata encountered first, a later partial page must not
		// overwrite it.
	}
}

// mergeEpisodes unions the incoming item's per-season episode lists into the
// existing item, deduplicating by episode number within a season and keeping
// each season sorted ascending. The merged map and its slices are built fresh
// and swapped in, never mutated in place, so clones handed out before the
// merge keep the episode state they were taken with.
func mergeEpisodes(existing, incoming *MediaItem) {
	merged := make(map[string][]Episode, len(existing.Episodes)+len(incoming.Episodes))
	for season, eps := range existing.Episodes {
		merged[season] = append([]Episode(nil), eps...)
	}

	for season, eps := range incoming.Episodes {
		have := merged[season]
		seen := make(map[int]bool, len(have))
		for _, ep := range have {
			seen[ep.Number] = true
		}

		for _, ep := range eps {
			if !seen[ep.Number] {
				have = append(have, ep)
				seen[ep.Number] = true
			}
		}

		sort.Slice(have, func(i, j int) bool {
			return have[i].Number < have[j].Number
		})
		merged[season] = have
	}

	existing.Episodes = merged
}

// cloneItems deep-copies an item slice, detaching it from index-owned state.
func cloneItems(items []MediaItem) []MediaItem {
	out := make([]MediaItem, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// Get returns a deep copy of the category's accumulated item list. Returns
// nil when the category has never been fetched or hydrated. The copy is a
// stable snapshot; later merges never show through it.
func (ix *Index) Get(category string) []MediaItem {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rec, ok := ix.categories[category]
	if !ok || len(rec.items) == 0 {
		return nil
	}

	return cloneItems(rec.items)
}

// All returns deep copies of every category's accumulated item list.
func (ix *Index) All() map[string][]MediaItem {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make(map[string][]MediaItem, len(ix.categories))
	for category, rec := range ix.categories {
		out[category] = cloneItems(rec.items)
	}
	return out
}

// NextPage returns the next page to fetch for the category: one past the
// last fetched page, or 1 when nothing has been fetched yet.
func (ix *Index) NextPage(category string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if rec, ok := ix.categories[category]; ok {
		return rec.lastPage + 1
	}
	return 1
}

// HasMore reports whether further pages are believed to exist for the
// category. It defaults to true until a terminal signal is recorded and
// stays false afterwards until a full reset.
func (ix *Index) HasMore(category string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if rec, ok := ix.categories[category]; ok {
		return !rec.exhausted
	}
	return true
}

// PageFetched reports whether the given page has already been fetched and
// merged, letting the deep-loader skip work an interactive request raced
// ahead on.
func (ix *Index) PageFetched(category string, page int) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if rec, ok := ix.categories[category]; ok {
		return page <= rec.lastPage
	}
	return false
}

// RecordPage advances the category's cursor. The cursor is monotonic: a
// stale or duplicate fetch of an earlier page never moves it backwards.
func (ix *Index) RecordPage(category string, page int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec := ix.record(category)
	if page > rec.lastPage {
		rec.lastPage = page
	}
}

// MarkExhausted records the terminal signal for a category. Sticky until
// Reset.
func (ix *Index) MarkExhausted(category string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.record(category).exhausted = true
}

// Seed installs a hydrated snapshot for a category, replacing whatever the
// index currently holds for it. Restored data is treated exactly as if it
// had been fetched, cursor state included.
func (ix *Index) Seed(category string, items []MediaItem, lastPage int, exhausted bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec := &categoryRecord{
		items:     cloneItems(items),
		byKey:     make(map[string]int, len(items)),
		lastPage:  lastPage,
		exhausted: exhausted,
	}
	for i := range rec.items {
		rec.byKey[rec.items[i].Key()] = i
	}
	ix.categories[category] = rec
}

// Export captures a category's current state for persistence. The returned
// items are deep copies, safe to marshal outside the index lock.
func (ix *Index) Export(category string) (items []MediaItem, lastPage int, exhausted bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rec, ok := ix.categories[category]
	if !ok {
		return nil, 0, false
	}

	return cloneItems(rec.items), rec.lastPage, rec.exhausted
}

// Reset clears every category record. This is the only way accumulated data
// is ever destroyed; nothing clears a record implicitly.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.categories = make(map[string]*categoryRecord)
}
