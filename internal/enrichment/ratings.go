package enrichment

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/httpx"
	"github.com/spotlightapp/spotlight-server/internal/normalize"
	"github.com/spotlightapp/spotlight-server/internal/ratings/allocine"
	"github.com/spotlightapp/spotlight-server/internal/ratings/anilist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/kinopoisk"
	"github.com/spotlightapp/spotlight-server/internal/ratings/mdblist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/rottentomatoes"
)

const rtHost = "rottentomatoes.com/"

// absent reports whether err means "the provider has nothing", which is
// cached as a no-data answer rather than a failure.
func absent(err error) bool {
	return errors.Is(err, httpx.ErrNotFound) ||
		errors.Is(err, rottentomatoes.ErrNoScores) ||
		errors.Is(err, rottentomatoes.ErrInvalidSlug) ||
		errors.Is(err, allocine.ErrNoRatings) ||
		errors.Is(err, allocine.ErrInvalidID)
}

func (p *Pipeline) ratings(ctx context.Context, key domain.SlideKey, item *domain.MediaItem) {
	imdb, tmdb := item.IMDbID(), item.TMDbID()
	if imdb == "" && tmdb == "" {
		p.patchRatings(ctx, key, FlowPrimary, hostRecords(item))
		return
	}

	p.parallel(key, map[string]func(){
		"primary":   func() { p.primary(ctx, key, item) },
		"anilist":   func() { p.patchRatings(ctx, key, FlowAniList, p.anime(ctx, item)) },
		"kinopoisk": func() { p.patchRatings(ctx, key, FlowKinopoisk, p.kinopoisk(ctx, item)) },
		"allocine":  func() { p.patchRatings(ctx, key, FlowAllocine, p.allocine(ctx, item)) },
	})
}

// primary resolves the aggregator ratings, the scraper fallback, and the
// certification upgrade, in that order.
func (p *Pipeline) primary(ctx context.Context, key domain.SlideKey, item *domain.MediaItem) {
	imdb := item.IMDbID()
	var (
		records []domain.RatingRecord
		slug    string
	)

	if res, ok := p.aggregated(ctx, item); ok {
		if imdb == "" && strings.HasPrefix(res.IMDbID, "tt") {
			imdb = res.IMDbID
		}
		if rt, ok := res.Find(domain.SourceRTCritics); ok {
			slug = slugFromURL(rt.URL)
		}
		records = mdblistRecords(&res, p.overrides, imdb, slug)
	}

	if !hasRTSignal(records) {
		if scraped := p.scrape(ctx, imdb); len(scraped) > 0 {
			records = append(records, scraped...)
		}
	}
	if len(records) == 0 {
		// Nothing from the external sources; show what the host knows.
		records = hostRecords(item)
	}
	p.patchRatings(ctx, key, FlowPrimary, records)

	if !p.toggles.CertificationCheck || !p.scraperEnabled() || !certifiable(records) {
		return
	}
	if slug == "" {
		slug = p.slug(ctx, imdb)
	}
	if slug == "" {
		return
	}
	cert, ok := p.memos.rtCert.Do(ctx, "rt-cert:"+slug, func(ctx context.Context) (rottentomatoes.Certification, bool, error) {
		c, err := p.providers.Scraper.Certification(ctx, slug)
		if absent(err) {
			return c, false, nil
		}
		return c, err == nil, err
	})
	if !ok {
		return
	}
	for _, up := range upgrades(records, cert) {
		if ctx.Err() != nil || !p.patcher.Alive(key) {
			return
		}
		up.SlideKey = key
		p.patcher.UpgradeBadge(up)
	}
}

func (p *Pipeline) aggregated(ctx context.Context, item *domain.MediaItem) (mdblist.Result, bool) {
	agg := p.providers.Aggregator
	if !p.toggles.MDBList || agg == nil || !agg.Enabled() {
		return mdblist.Result{}, false
	}
	mediaType, tmdb, imdb := item.MediaType(), item.TMDbID(), item.IMDbID()
	memoKey := "mdblist:" + mediaType + ":" + tmdb
	if tmdb == "" {
		memoKey = "mdblist:" + mediaType + ":imdb:" + imdb
	}
	return p.memos.mdblist.Do(ctx, memoKey, func(ctx context.Context) (mdblist.Result, bool, error) {
		var (
			res *mdblist.Result
			err error
		)
		if tmdb != "" {
			res, err = agg.ByTMDb(ctx, mediaType, tmdb)
		} else {
			res, err = agg.ByIMDb(ctx, mediaType, imdb)
		}
		if absent(err) {
			return mdblist.Result{}, false, nil
		}
		if err != nil {
			return mdblist.Result{}, false, err
		}
		return *res, true, nil
	})
}

func (p *Pipeline) scraperEnabled() bool {
	return p.toggles.RottenTomatoes && p.providers.Scraper != nil && p.providers.Scraper.Enabled()
}

// slug resolves the Rotten Tomatoes page of an IMDb id through the cross
// reference.
func (p *Pipeline) slug(ctx context.Context, imdb string) string {
	if imdb == "" || p.providers.CrossRef == nil {
		return ""
	}
	slug, _ := p.memos.rtSlug.Do(ctx, "rt-slug:"+imdb, func(ctx context.Context) (string, bool, error) {
		s, ok, err := p.providers.CrossRef.RottenTomatoesSlug(ctx, imdb)
		return rottentomatoes.NormalizeSlug(s), ok, err
	})
	return slug
}

// scrape is the fallback when the aggregator had no Rotten Tomatoes signal.
func (p *Pipeline) scrape(ctx context.Context, imdb string) []domain.RatingRecord {
	if !p.scraperEnabled() {
		return nil
	}
	slug := p.slug(ctx, imdb)
	if slug == "" {
		return nil
	}
	scores, ok := p.memos.rtScores.Do(ctx, "rt:"+slug, func(ctx context.Context) (rottentomatoes.Scores, bool, error) {
		s, err := p.providers.Scraper.Scores(ctx, slug)
		if absent(err) {
			return rottentomatoes.Scores{}, false, nil
		}
		if err != nil {
			return rottentomatoes.Scores{}, false, err
		}
		return *s, true, nil
	})
	if !ok {
		return nil
	}
	return rtRecords(&scores, p.providers.Scraper.PageURL(slug), p.overrides, imdb, slug)
}

func certifiable(records []domain.RatingRecord) bool {
	for _, r := range records {
		if r.Certifiable {
			return true
		}
	}
	return false
}

// slugFromURL extracts "m/…" or "tv/…" from a Rotten Tomatoes link.
func slugFromURL(u string) string {
	if i := strings.Index(u, rtHost); i >= 0 {
		u = u[i+len(rtHost):]
	}
	u, _, _ = strings.Cut(u, "?")
	slug := rottentomatoes.NormalizeSlug(u)
	if !strings.HasPrefix(slug, "m/") && !strings.HasPrefix(slug, "tv/") {
		return ""
	}
	return slug
}

// isAnimeCandidate gates the AniList title search, which would otherwise run
// for every live-action title.
func isAnimeCandidate(item *domain.MediaItem) bool {
	for _, g := range item.Genres {
		switch strings.ToLower(g) {
		case "anime", "animation":
			return true
		}
	}
	return false
}

// anime tries the AniList cross reference first, then a strict title search.
func (p *Pipeline) anime(ctx context.Context, item *domain.MediaItem) []domain.RatingRecord {
	if !p.toggles.AniList || p.providers.Anime == nil {
		return nil
	}
	imdb := item.IMDbID()

	id := 0
	if v := item.ProviderID(domain.ProviderAniList); v != "" {
		id, _ = strconv.Atoi(v)
	}
	if id == 0 && imdb != "" && p.providers.CrossRef != nil {
		id, _ = p.memos.anilistXref.Do(ctx, "anilist-xref:"+imdb, func(ctx context.Context) (int, bool, error) {
			return p.providers.CrossRef.AniListID(ctx, imdb)
		})
	}

	var (
		media anilist.Media
		ok    bool
	)
	switch {
	case id > 0:
		media, ok = p.memos.anilistMedia.Do(ctx, "anilist:"+strconv.Itoa(id), func(ctx context.Context) (anilist.Media, bool, error) {
			m, err := p.providers.Anime.ByID(ctx, id)
			if absent(err) {
				return anilist.Media{}, false, nil
			}
			if err != nil {
				return anilist.Media{}, false, err
			}
			return *m, true, nil
		})
	case isAnimeCandidate(item) && item.Year() > 0:
		title := item.Name
		year := item.Year()
		memoKey := "anilist-search:" + strconv.Itoa(year) + ":" + normalize.Title(title)
		media, ok = p.memos.anilistSearch.Do(ctx, memoKey, func(ctx context.Context) (anilist.Media, bool, error) {
			results, err := p.providers.Anime.Search(ctx, title)
			if err != nil {
				return anilist.Media{}, false, err
			}
			m, found := anilist.BestMatch(results, year, title, item.OriginalTitle)
			if !found {
				return anilist.Media{}, false, nil
			}
			return *m, true, nil
		})
	}
	if !ok {
		return nil
	}
	if rec, ok := anilistRecord(&media); ok {
		return []domain.RatingRecord{rec}
	}
	return nil
}

func (p *Pipeline) kinopoisk(ctx context.Context, item *domain.MediaItem) []domain.RatingRecord {
	kp := p.providers.Kinopoisk
	if !p.toggles.Kinopoisk || kp == nil || !kp.Enabled() || item.Year() == 0 {
		return nil
	}
	title := item.OriginalTitle
	if title == "" {
		title = item.Name
	}
	year := item.Year()
	memoKey := "kinopoisk:" + strconv.Itoa(year) + ":" + normalize.Title(title)
	rating, ok := p.memos.kinopoisk.Do(ctx, memoKey, func(ctx context.Context) (kinopoisk.Rating, bool, error) {
		return kp.Search(ctx, title, year)
	})
	if !ok {
		return nil
	}
	return []domain.RatingRecord{kinopoiskRecord(rating)}
}

func (p *Pipeline) allocine(ctx context.Context, item *domain.MediaItem) []domain.RatingRecord {
	ac := p.providers.Allocine
	imdb := item.IMDbID()
	if !p.toggles.Allocine || ac == nil || !ac.Enabled() || imdb == "" || p.providers.CrossRef == nil {
		return nil
	}
	mediaType := item.MediaType()
	id, ok := p.memos.allocineID.Do(ctx, "allocine-id:"+mediaType+":"+imdb, func(ctx context.Context) (string, bool, error) {
		return p.providers.CrossRef.AllocineID(ctx, imdb, mediaType)
	})
	if !ok {
		return nil
	}
	scores, ok := p.memos.allocine.Do(ctx, "allocine:"+mediaType+":"+id, func(ctx context.Context) (allocine.Scores, bool, error) {
		s, err := ac.Scores(ctx, id, mediaType)
		if absent(err) {
			return allocine.Scores{}, false, nil
		}
		if err != nil {
			return allocine.Scores{}, false, err
		}
		return *s, true, nil
	})
	if !ok {
		return nil
	}
	return allocineRecords(&scores)
}
