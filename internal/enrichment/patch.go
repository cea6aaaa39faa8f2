package enrichment

import (
	"github.com/spotlightapp/spotlight-server/internal/badge"
	"github.com/spotlightapp/spotlight-server/internal/domain"
)

// Flow names carried in RatingsPatch.Provider.
const (
	FlowPrimary   = "primary" // aggregator, scraper fallback or host fields
	FlowAniList   = "anilist"
	FlowKinopoisk = "kinopoisk"
	FlowAllocine  = "allocine"
)

// RatingsPatch appends records to a slide's ratings container.
type RatingsPatch struct {
	SlideKey domain.SlideKey       `json:"slide_key"`
	Provider string                `json:"provider"`
	Records  []domain.RatingRecord `json:"records"`
}

// BadgeUpgrade swaps the graphic of an already rendered badge in place.
type BadgeUpgrade struct {
	SlideKey domain.SlideKey `json:"slide_key"`
	Provider string          `json:"provider"`
	Badge    domain.BadgeKey `json:"badge"`
	Logo     string          `json:"logo"`
}

// AwardsPatch fills a slide's awards row.
type AwardsPatch struct {
	SlideKey domain.SlideKey `json:"slide_key"`
	Row      badge.AwardsRow `json:"row"`
}

// Patcher applies patches to rendered slides. Alive reports whether the
// target still exists; patches for dead slides are never sent.
type Patcher interface {
	Alive(key domain.SlideKey) bool
	PatchRatings(RatingsPatch)
	UpgradeBadge(BadgeUpgrade)
	PatchAwards(AwardsPatch)
}
