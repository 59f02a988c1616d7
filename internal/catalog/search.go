package catalog

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Search performs a case-insensitive substring scan over every accumulated
// item's display title. Results are deduplicated by normalized title, so one
// representative survives even when the same title appears in several
// categories, and truncated to the index's search limit.
//
// The scan is linear over data already resident in memory; callers are
// expected to invoke it off the interactive path (see cache.SearchAsync).
// An empty or whitespace-only query yields no results so callers can
// distinguish "no query" upstream.
func (ix *Index) Search(query string) []MediaItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	ix.mu.RLock()

	// Walk categories in sorted order so repeated searches over the same
	// snapshot return the same representatives.
	names := make([]string, 0, len(ix.categories))
	for name := range ix.categories {
		names = append(names, name)
	}
	sort.Strings(names)

	var matches []MediaItem
	for _, name := range names {
		for _, item := range ix.categories[name].items {
			if strings.Contains(strings.ToLower(item.DisplayTitle()), q) {
				matches = append(matches, item)
			}
		}
	}
	ix.mu.RUnlock()

	unique := lo.UniqBy(matches, func(item MediaItem) string {
		return normalizeTitle(item.DisplayTitle())
	})

	if len(unique) > ix.searchLimit {
		unique = unique[:ix.searchLimit]
	}
	return cloneItems(unique)
}

// normalizeTitle collapses a display title for dedup purposes.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
