// Package badge turns provider scores into badge keys. Everything here is a
// pure function of its inputs.
package badge

import (
	"strconv"

	"github.com/spotlightapp/spotlight-server/internal/domain"
)

// Thresholds for elevated badges.
const (
	FreshMin          = 60
	CertifiedMinScore = 75
	CertifiedMinVotes = 80
	VerifiedMinScore  = 90
	VerifiedMinVotes  = 500
	MustSeeScoreAbove = 81
	MustSeeVotesAbove = 14
	logoBase          = "/assets/badges/"
	logoExt           = ".svg"
)

// Critic classifies a Rotten Tomatoes critics score.
func Critic(score float64, votes int, certified bool) domain.BadgeKey {
	switch {
	case score < FreshMin:
		return domain.BadgeRTRotten
	case certified || (score >= CertifiedMinScore && votes >= CertifiedMinVotes):
		return domain.BadgeRTCertified
	default:
		return domain.BadgeRTFresh
	}
}

// Audience classifies a Rotten Tomatoes audience score.
func Audience(score float64, votes int, verified bool) domain.BadgeKey {
	switch {
	case score < FreshMin:
		return domain.BadgeAudienceNegative
	case verified || (score >= VerifiedMinScore && votes >= VerifiedMinVotes):
		return domain.BadgeAudienceVerified
	default:
		return domain.BadgeAudiencePositive
	}
}

// Metacritic classifies a Metacritic metascore.
func Metacritic(score float64, votes int) domain.BadgeKey {
	if score > MustSeeScoreAbove && votes > MustSeeVotesAbove {
		return domain.BadgeMetacriticMustSee
	}
	return domain.BadgeMetacritic
}

// Elevated reports whether key is a certified or verified variant.
func Elevated(key domain.BadgeKey) bool {
	return key == domain.BadgeRTCertified || key == domain.BadgeAudienceVerified
}

// Logo returns the static asset path for key.
func Logo(key domain.BadgeKey) string {
	return logoBase + string(key) + logoExt
}

// HostCritic builds the fallback record from the host's critic rating. The
// host carries no vote counts, so the badge is never elevated.
func HostCritic(rating float64) domain.RatingRecord {
	key := domain.BadgeRTFresh
	if rating < FreshMin {
		key = domain.BadgeRTRotten
	}
	return domain.RatingRecord{
		Provider: domain.SourceHostCritic,
		Value:    Percent(rating),
		Score:    rating,
		Badge:    key,
		Logo:     Logo(key),
	}
}

// HostCommunity builds the fallback record from the host's community rating.
func HostCommunity(rating float64) domain.RatingRecord {
	return domain.RatingRecord{
		Provider: domain.SourceHostCommunity,
		Value:    Decimal(rating),
		Score:    rating,
		Badge:    domain.BadgeCommunity,
		Logo:     Logo(domain.BadgeCommunity),
	}
}

// Percent formats a 0..100 score.
func Percent(score float64) string {
	return strconv.Itoa(int(score+0.5)) + "%"
}

// Decimal formats a score with one decimal place.
func Decimal(score float64) string {
	return strconv.FormatFloat(score, 'f', 1, 64)
}
