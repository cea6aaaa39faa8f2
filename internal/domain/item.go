// Package domain contains the core entities of the Spotlight carousel.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// ItemType is the host's item kind.
type ItemType string

// Item types the carousel works with.
const (
	ItemMovie  ItemType = "Movie"
	ItemSeries ItemType = "Series"
	ItemBoxSet ItemType = "BoxSet"
)

// Provider id keys as they appear in the host's ProviderIds map.
const (
	ProviderIMDb    = "Imdb"
	ProviderTMDb    = "Tmdb"
	ProviderTVDb    = "Tvdb"
	ProviderAniList = "AniList"
)

// RemoteTrailer is a trailer hosted on a video platform.
type RemoteTrailer struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// MediaItem is a movie, show or collection from the host API.
// It is immutable for the lifetime of the slides that reference it.
type MediaItem struct {
	ID                 string            `json:"id"`
	ServerID           string            `json:"server_id,omitempty"`
	Name               string            `json:"name"`
	OriginalTitle      string            `json:"original_title,omitempty"`
	Type               ItemType          `json:"type"`
	ProductionYear     int               `json:"production_year,omitempty"`
	PremiereDate       time.Time         `json:"premiere_date,omitzero"`
	RunTimeTicks       int64             `json:"run_time_ticks,omitempty"`
	Genres             []string          `json:"genres,omitempty"`
	Overview           string            `json:"overview,omitempty"`
	Taglines           []string          `json:"taglines,omitempty"`
	OfficialRating     string            `json:"official_rating,omitempty"`
	CriticRating       *float64          `json:"critic_rating,omitempty"`
	CommunityRating    *float64          `json:"community_rating,omitempty"`
	ImageTags          map[string]string `json:"image_tags,omitempty"`
	BackdropImageTags  []string          `json:"backdrop_image_tags,omitempty"`
	ParentLogoItemID   string            `json:"parent_logo_item_id,omitempty"`
	ParentLogoImageTag string            `json:"parent_logo_image_tag,omitempty"`
	ProviderIDs        map[string]string `json:"provider_ids,omitempty"`
	RemoteTrailers     []RemoteTrailer   `json:"remote_trailers,omitempty"`
	LocalTrailerCount  int               `json:"local_trailer_count,omitempty"`
}

// ProviderID returns the provider id for key, matching case-insensitively.
func (m *MediaItem) ProviderID(key string) string {
	if v, ok := m.ProviderIDs[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range m.ProviderIDs {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// IMDbID returns the item's IMDb id ("tt…"), or "".
func (m *MediaItem) IMDbID() string {
	id := m.ProviderID(ProviderIMDb)
	if !strings.HasPrefix(id, "tt") {
		return ""
	}
	return id
}

// TMDbID returns the item's numeric TMDb id, or "".
func (m *MediaItem) TMDbID() string {
	id := m.ProviderID(ProviderTMDb)
	if _, err := strconv.Atoi(id); err != nil {
		return ""
	}
	return id
}

// HasExternalID reports whether any rating-provider id is known.
func (m *MediaItem) HasExternalID() bool {
	return m.IMDbID() != "" || m.TMDbID() != ""
}

// MediaType returns the provider-facing media type: "show" for series, "movie" otherwise.
func (m *MediaItem) MediaType() string {
	if m.Type == ItemSeries {
		return "show"
	}
	return "movie"
}

// Year returns the production year, falling back to the premiere date.
func (m *MediaItem) Year() int {
	if m.ProductionYear > 0 {
		return m.ProductionYear
	}
	if !m.PremiereDate.IsZero() {
		return m.PremiereDate.Year()
	}
	return 0
}

// RuntimeMinutes converts RunTimeTicks (100ns units) to whole minutes.
func (m *MediaItem) RuntimeMinutes() int {
	return int(m.RunTimeTicks / 600_000_000)
}

// IsCollection reports whether the item groups other items.
func (m *MediaItem) IsCollection() bool {
	return m.Type == ItemBoxSet
}
