package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SlideKey identifies one enrichable slide: the real index plus the item id.
// Sentinel clones share the key of the real slide they duplicate.
type SlideKey string

// NewSlideKey builds the key for the slide at real index realIndex.
func NewSlideKey(realIndex int, itemID string) SlideKey {
	return SlideKey(strconv.Itoa(realIndex) + ":" + itemID)
}

// Parse splits the key back into its real index and item id.
func (k SlideKey) Parse() (int, string, error) {
	idx, itemID, ok := strings.Cut(string(k), ":")
	if !ok {
		return 0, "", fmt.Errorf("malformed slide key %q", k)
	}
	n, err := strconv.Atoi(idx)
	if err != nil {
		return 0, "", fmt.Errorf("malformed slide key %q: %w", k, err)
	}
	return n, itemID, nil
}

// VideoSource says which player adapter a trailer needs.
type VideoSource string

// Trailer sources.
const (
	VideoNone    VideoSource = ""
	VideoYouTube VideoSource = "youtube"
	VideoNative  VideoSource = "native"
)

// VideoInfo is what the slide builder records so the video manager can act
// later without re-deriving it from the item.
type VideoInfo struct {
	Source  VideoSource `json:"source,omitempty"`
	VideoID string      `json:"video_id,omitempty"` // platform id, e.g. the YouTube id
	URL     string      `json:"url,omitempty"`
	Attempt bool        `json:"attempt"` // false when suppressed (mobile, disabled, no trailer)
}

// SlideNode is the typed view of one slide's subtree. Ratings and awards
// containers start empty and are filled by enrichment patches.
type SlideNode struct {
	ContainerID     string   `json:"container_id"`
	BackdropURL     string   `json:"backdrop_url"`
	LogoURL         string   `json:"logo_url,omitempty"`
	Title           string   `json:"title"`
	Tagline         string   `json:"tagline,omitempty"`
	Overview        string   `json:"overview,omitempty"`
	Genres          []string `json:"genres,omitempty"`
	Year            int      `json:"year,omitempty"`
	Runtime         string   `json:"runtime,omitempty"`
	OfficialRating  string   `json:"official_rating,omitempty"`
	AwardsRowID     string   `json:"awards_row_id"`
	RatingsID       string   `json:"ratings_id"`
	BackgroundColor string   `json:"background_color"`
	HighlightColor  string   `json:"highlight_color,omitempty"`
}

// Slide is one carousel entry. Position is its place in the ring (0..N+1);
// positions 0 and N+1 hold sentinel clones of the last and first items.
type Slide struct {
	Position  int        `json:"position"`
	RealIndex int        `json:"real_index"`
	Clone     bool       `json:"clone"`
	Item      *MediaItem `json:"-"`
	Node      *SlideNode `json:"node"`
	Video     VideoInfo  `json:"video"`

	HasVideo   bool `json:"has_video"`
	VideoSetup bool `json:"-"`
	Enriched   bool `json:"-"`
}

// Key returns the enrichment key of the slide.
func (s *Slide) Key() SlideKey {
	return NewSlideKey(s.RealIndex, s.Item.ID)
}

// PlayerKey returns the player identity for this slide; clones get their own.
func (s *Slide) PlayerKey() PlayerKey {
	return NewPlayerKey(s.Item.ID, s.Position, s.Clone)
}
