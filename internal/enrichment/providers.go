package enrichment

import (
	"context"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/ratings/allocine"
	"github.com/spotlightapp/spotlight-server/internal/ratings/anilist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/kinopoisk"
	"github.com/spotlightapp/spotlight-server/internal/ratings/mdblist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/rottentomatoes"
)

// Aggregator serves multi-source ratings; *mdblist.Client implements it.
type Aggregator interface {
	Enabled() bool
	ByTMDb(ctx context.Context, mediaType, tmdbID string) (*mdblist.Result, error)
	ByIMDb(ctx context.Context, mediaType, imdbID string) (*mdblist.Result, error)
}

// CrossRef resolves ids and awards from an IMDb id; *wikidata.Client
// implements it.
type CrossRef interface {
	AniListID(ctx context.Context, imdbID string) (int, bool, error)
	RottenTomatoesSlug(ctx context.Context, imdbID string) (string, bool, error)
	AllocineID(ctx context.Context, imdbID, mediaType string) (string, bool, error)
	Awards(ctx context.Context, imdbID string) (domain.AwardsSummary, error)
}

// Scraper reads Rotten Tomatoes pages; *rottentomatoes.Client implements it.
type Scraper interface {
	Enabled() bool
	PageURL(slug string) string
	Scores(ctx context.Context, slug string) (*rottentomatoes.Scores, error)
	Certification(ctx context.Context, slug string) (rottentomatoes.Certification, error)
}

// Anime looks anime up on AniList; *anilist.Client implements it.
type Anime interface {
	ByID(ctx context.Context, id int) (*anilist.Media, error)
	Search(ctx context.Context, title string) ([]anilist.Media, error)
}

// Kinopoisk searches by title and year; *kinopoisk.Client implements it.
type Kinopoisk interface {
	Enabled() bool
	Search(ctx context.Context, title string, year int) (kinopoisk.Rating, bool, error)
}

// Allocine reads AlloCiné pages; *allocine.Client implements it.
type Allocine interface {
	Enabled() bool
	Scores(ctx context.Context, id, mediaType string) (*allocine.Scores, error)
}

// Providers are the external collaborators. Nil members are skipped.
type Providers struct {
	Aggregator Aggregator
	CrossRef   CrossRef
	Scraper    Scraper
	Anime      Anime
	Kinopoisk  Kinopoisk
	Allocine   Allocine
}

// Toggles switch individual lookups on or off.
type Toggles struct {
	MDBList            bool
	RottenTomatoes     bool
	CertificationCheck bool
	AniList            bool
	Kinopoisk          bool
	Allocine           bool
	Awards             bool
}

// AllEnabled turns every lookup on.
func AllEnabled() Toggles {
	return Toggles{
		MDBList:            true,
		RottenTomatoes:     true,
		CertificationCheck: true,
		AniList:            true,
		Kinopoisk:          true,
		Allocine:           true,
		Awards:             true,
	}
}
