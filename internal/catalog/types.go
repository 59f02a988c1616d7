// Package catalog defines the media catalog data model and the in-memory
// merge index that accumulates category pages fetched from the remote source.
package catalog

import "strconv"

// MediaType distinguishes movie entries from tv entries.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Episode is a single playable episode inside a series container.
type Episode struct {
	ID     string `json:"id"`
	Number int    `json:"episode"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// CastMember is one credited cast entry from the external metadata block.
type CastMember struct {
	Name       string `json:"name"`
	Character  string `json:"character,omitempty"`
	ProfileURL string `json:"profile,omitempty"`
}

// Metadata is the optional external-metadata block attached to a catalog entry.
// Its numeric ID is the item's true identity when present.
type Metadata struct {
	ID            int          `json:"id"`
	Title         string       `json:"title"`
	Overview      string       `json:"overview,omitempty"`
	Year          int          `json:"year,omitempty"`
	Rating        float64      `json:"rating,omitempty"`
	Popularity    float64      `json:"popularity,omitempty"`
	Certification string       `json:"certification,omitempty"`
	Genres        []string     `json:"genres,omitempty"`
	PosterURL     string       `json:"poster,omitempty"`
	BackdropURL   string       `json:"backdrop,omitempty"`
	Cast          []CastMember `json:"cast,omitempty"`
}

// MediaItem is a single catalog entry. URL may be empty when the item is a
// series container rather than a directly playable stream; a non-empty
// Episodes map is the sole signal that an item is a series.
type MediaItem struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	URL      string               `json:"url,omitempty"`
	Category string               `json:"category"`
	Type     MediaType            `json:"type"`
	IsAdult  bool                 `json:"is_adult,omitempty"`
	Episodes map[string][]Episode `json:"episodes,omitempty"`
	Metadata *Metadata            `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the item. The episode map, its season slices
// and the metadata block are owned by the copy, so holders of a clone are
// isolated from later merges into the index.
func (m MediaItem) Clone() MediaItem {
	out := m

	if m.Episodes != nil {
		out.Episodes = make(map[string][]Episode, len(m.Episodes))
		for season, eps := range m.Episodes {
			out.Episodes[season] = append([]Episode(nil), eps...)
		}
	}

	if m.Metadata != nil {
		meta := *m.Metadata
		meta.Genres = append([]string(nil), m.Metadata.Genres...)
		meta.Cast = append([]CastMember(nil), m.Metadata.Cast...)
		out.Metadata = &meta
	}

	return out
}

// IsSeries reports whether the item carries episode sub-structure.
func (m *MediaItem) IsSeries() bool {
	for _, eps := range m.Episodes {
		if len(eps) > 0 {
			return true
		}
	}
	return false
}

// Key returns the identifier used for dedup: the external metadata id when
// present, otherwise the raw catalog id. Raw ids are only unique within a
// category page, so the metadata id wins whenever the source supplies one.
func (m *MediaItem) Key() string {
	if m.Metadata != nil && m.Metadata.ID != 0 {
		return "meta:" + strconv.Itoa(m.Metadata.ID)
	}
	return m.ID
}

// DisplayTitle returns the external metadata title when present, falling
// back to the raw catalog name.
func (m *MediaItem) DisplayTitle() string {
	if m.Metadata != nil && m.Metadata.Title != "" {
		return m.Metadata.Title
	}
	return m.Name
}
