package enrichment

import (
	"math"
	"strconv"

	"github.com/spotlightapp/spotlight-server/internal/badge"
	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/ratings/allocine"
	"github.com/spotlightapp/spotlight-server/internal/ratings/anilist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/kinopoisk"
	"github.com/spotlightapp/spotlight-server/internal/ratings/mdblist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/rottentomatoes"
)

// mdblistSources is the render order of aggregated sources.
var mdblistSources = []string{
	domain.SourceIMDb,
	domain.SourceRTCritics,
	domain.SourceRTAudience,
	domain.SourceMetacritic,
	domain.SourceMetacriticUser,
	domain.SourceTMDb,
	domain.SourceTrakt,
	domain.SourceLetterboxd,
	domain.SourceRogerEbert,
	domain.SourceMyAnimeList,
}

// hostRecords builds the fallback records from the host's own fields.
func hostRecords(item *domain.MediaItem) []domain.RatingRecord {
	var records []domain.RatingRecord
	if item.CriticRating != nil && *item.CriticRating > 0 {
		records = append(records, badge.HostCritic(*item.CriticRating))
	}
	if item.CommunityRating != nil && *item.CommunityRating > 0 {
		records = append(records, badge.HostCommunity(*item.CommunityRating))
	}
	return records
}

// mdblistRecords classifies every usable entry of an aggregated response.
// ids are the override keys of the item (IMDb id, RT slug).
func mdblistRecords(res *mdblist.Result, overrides badge.Overrides, ids ...string) []domain.RatingRecord {
	var records []domain.RatingRecord
	for _, source := range mdblistSources {
		r, ok := res.Find(source)
		if !ok || r.Value == nil || *r.Value <= 0 {
			continue
		}
		value, votes := *r.Value, 0
		if r.Votes != nil {
			votes = int(*r.Votes)
		}

		rec := domain.RatingRecord{Provider: source, Score: value, Votes: votes, URL: r.URL}
		switch source {
		case domain.SourceRTCritics:
			rec.Value = badge.Percent(value)
			rec.Badge = badge.Critic(value, votes, overrides.Certified(ids...))
			rec.Certifiable = !badge.Elevated(rec.Badge) && value >= badge.FreshMin
		case domain.SourceRTAudience:
			rec.Value = badge.Percent(value)
			rec.Badge = badge.Audience(value, votes, overrides.Verified(ids...))
			rec.Certifiable = !badge.Elevated(rec.Badge) && value >= badge.FreshMin
		case domain.SourceMetacritic:
			rec.Value = strconv.Itoa(int(math.Round(value)))
			rec.Badge = badge.Metacritic(value, votes)
		case domain.SourceMetacriticUser:
			rec.Value = badge.Decimal(value)
			rec.Badge = domain.BadgeMetacriticUser
		case domain.SourceTMDb, domain.SourceTrakt:
			rec.Value = badge.Percent(value)
			rec.Badge = sourceBadge(source)
		default:
			rec.Value = badge.Decimal(value)
			rec.Badge = sourceBadge(source)
		}
		rec.Logo = badge.Logo(rec.Badge)
		records = append(records, rec)
	}
	return records
}

func sourceBadge(source string) domain.BadgeKey {
	switch source {
	case domain.SourceIMDb:
		return domain.BadgeIMDb
	case domain.SourceTMDb:
		return domain.BadgeTMDb
	case domain.SourceTrakt:
		return domain.BadgeTrakt
	case domain.SourceLetterboxd:
		return domain.BadgeLetterboxd
	case domain.SourceRogerEbert:
		return domain.BadgeRogerEbert
	case domain.SourceMyAnimeList:
		return domain.BadgeMyAnimeList
	}
	return domain.BadgeKey(source)
}

// hasRTSignal reports whether records already carry a Rotten Tomatoes score.
func hasRTSignal(records []domain.RatingRecord) bool {
	for _, r := range records {
		if r.Provider == domain.SourceRTCritics || r.Provider == domain.SourceRTAudience {
			return true
		}
	}
	return false
}

// rtRecords classifies a scraped scorecard. The page's own flags act as
// overrides, alongside the configured ones.
func rtRecords(s *rottentomatoes.Scores, pageURL string, overrides badge.Overrides, ids ...string) []domain.RatingRecord {
	var records []domain.RatingRecord
	if s.CriticsScore != nil {
		score := float64(*s.CriticsScore)
		key := badge.Critic(score, s.CriticsCount, s.CertifiedFresh || overrides.Certified(ids...))
		records = append(records, domain.RatingRecord{
			Provider: domain.SourceRTCritics,
			Value:    badge.Percent(score),
			Score:    score,
			Votes:    s.CriticsCount,
			Badge:    key,
			Logo:     badge.Logo(key),
			URL:      pageURL,
		})
	}
	if s.AudienceScore != nil {
		score := float64(*s.AudienceScore)
		key := badge.Audience(score, s.AudienceCount, s.VerifiedHot || overrides.Verified(ids...))
		records = append(records, domain.RatingRecord{
			Provider: domain.SourceRTAudience,
			Value:    badge.Percent(score),
			Score:    score,
			Votes:    s.AudienceCount,
			Badge:    key,
			Logo:     badge.Logo(key),
			URL:      pageURL,
		})
	}
	return records
}

// upgrades returns the badge changes a certification check implies for the
// certifiable records. Scores are never touched.
func upgrades(records []domain.RatingRecord, cert rottentomatoes.Certification) []BadgeUpgrade {
	var out []BadgeUpgrade
	for _, r := range records {
		if !r.Certifiable {
			continue
		}
		var key domain.BadgeKey
		switch {
		case r.Provider == domain.SourceRTCritics && cert.CertifiedFresh:
			key = badge.Critic(r.Score, r.Votes, true)
		case r.Provider == domain.SourceRTAudience && cert.VerifiedHot:
			key = badge.Audience(r.Score, r.Votes, true)
		default:
			continue
		}
		if key != r.Badge {
			out = append(out, BadgeUpgrade{Provider: r.Provider, Badge: key, Logo: badge.Logo(key)})
		}
	}
	return out
}

func anilistRecord(m *anilist.Media) (domain.RatingRecord, bool) {
	score, ok := m.Score()
	if !ok {
		return domain.RatingRecord{}, false
	}
	return domain.RatingRecord{
		Provider: domain.SourceAniList,
		Value:    strconv.Itoa(score) + "%",
		Score:    float64(score),
		Votes:    m.Popularity,
		Badge:    domain.BadgeAniList,
		Logo:     badge.Logo(domain.BadgeAniList),
		URL:      m.URL(),
	}, true
}

func kinopoiskRecord(r kinopoisk.Rating) domain.RatingRecord {
	return domain.RatingRecord{
		Provider: domain.SourceKinopoisk,
		Value:    badge.Decimal(r.Value),
		Score:    r.Value,
		Votes:    r.Votes,
		Badge:    domain.BadgeKinopoisk,
		Logo:     badge.Logo(domain.BadgeKinopoisk),
		URL:      r.URL(),
	}
}

func allocineRecords(s *allocine.Scores) []domain.RatingRecord {
	var records []domain.RatingRecord
	add := func(provider string, key domain.BadgeKey, v *float64) {
		if v == nil {
			return
		}
		records = append(records, domain.RatingRecord{
			Provider: provider,
			Value:    badge.Decimal(*v),
			Score:    *v,
			Badge:    key,
			Logo:     badge.Logo(key),
			URL:      s.URL,
		})
	}
	add(domain.SourceAllocinePress, domain.BadgeAllocinePress, s.Press)
	add(domain.SourceAllocineUsers, domain.BadgeAllocineSpectators, s.Spectators)
	return records
}
