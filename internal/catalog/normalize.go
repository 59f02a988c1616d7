package catalog

// Caps applied while normalizing raw records. Large metadata blocks are
// trimmed at ingest so the in-memory index stays bounded for catalogs with
// tens of thousands of entries.
const (
	maxOverviewChars = 300
	maxGenres        = 3
	maxCastMembers   = 10
)

// RawItem is the wire shape of one record on a category page. It mirrors the
// remote JSON layout and is only used at the fetch boundary; everything past
// normalization works with MediaItem.
type RawItem struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	URL      string               `json:"url"`
	Category string               `json:"category"`
	Type     string               `json:"type"`
	Adult    bool                 `json:"adult"`
	Episodes map[string][]Episode `json:"episodes"`
	Meta     *rawMetadata         `json:"tmdb"`
}

type rawMetadata struct {
	ID            int          `json:"id"`
	Title         string       `json:"title"`
	Overview      string       `json:"overview"`
	Year          int          `json:"year"`
	Rating        float64      `json:"rating"`
	Popularity    float64      `json:"popularity"`
	Certification string       `json:"certification"`
	Genres        []string     `json:"genres"`
	PosterURL     string       `json:"poster"`
	BackdropURL   string       `json:"backdrop"`
	Cast          []CastMember `json:"cast"`
}

// Normalize maps a raw record into the canonical MediaItem shape, applying
// the ingest caps and stamping the category the page was fetched for. The
// source records carry their own category field but pages are fetched per
// category, so the page's category is authoritative.
func Normalize(raw RawItem, category string) MediaItem {
	item := MediaItem{
		ID:       raw.ID,
		Name:     raw.Name,
		URL:      raw.URL,
		Category: category,
		Type:     MediaTypeMovie,
		IsAdult:  raw.Adult,
		Episodes: raw.Episodes,
	}

	if raw.Type == string(MediaTypeTV) {
		item.Type = MediaTypeTV
	}

	if raw.Meta != nil {
		item.Metadata = &Metadata{
			ID:            raw.Meta.ID,
			Title:         raw.Meta.Title,
			Overview:      truncate(raw.Meta.Overview, maxOverviewChars),
			Year:          raw.Meta.Year,
			Rating:        raw.Meta.Rating,
			Popularity:    raw.Meta.Popularity,
			Certification: raw.Meta.Certification,
			Genres:        capSlice(raw.Meta.Genres, maxGenres),
			PosterURL:     raw.Meta.PosterURL,
			BackdropURL:   raw.Meta.BackdropURL,
			Cast:          capSlice(raw.Meta.Cast, maxCastMembers),
		}
	}

	return item
}

// truncate cuts s to at most n runes. The overview cap counts characters,
// not bytes, so multi-byte titles are not split mid-rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func capSlice[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
