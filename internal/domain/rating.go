package domain

// Provider names used in rating records and patches.
const (
	SourceIMDb           = "imdb"
	SourceTMDb           = "tmdb"
	SourceTrakt          = "trakt"
	SourceLetterboxd     = "letterboxd"
	SourceMetacritic     = "metacritic"
	SourceMetacriticUser = "metacriticuser"
	SourceRogerEbert     = "rogerebert"
	SourceMyAnimeList    = "myanimelist"
	SourceRTCritics      = "tomatoes"
	SourceRTAudience     = "popcorn"
	SourceAniList        = "anilist"
	SourceKinopoisk      = "kinopoisk"
	SourceAllocinePress  = "allocine_press"
	SourceAllocineUsers  = "allocine_spectators"
	SourceHostCritic     = "host_critic"
	SourceHostCommunity  = "host_community"
)

// BadgeKey names the badge graphic a rating resolves to.
type BadgeKey string

// Badge keys.
const (
	BadgeRTRotten           BadgeKey = "rt-rotten"
	BadgeRTFresh            BadgeKey = "rt-fresh"
	BadgeRTCertified        BadgeKey = "rt-certified"
	BadgeAudienceNegative   BadgeKey = "rt-audience-negative"
	BadgeAudiencePositive   BadgeKey = "rt-audience-positive"
	BadgeAudienceVerified   BadgeKey = "rt-verified-hot"
	BadgeMetacritic         BadgeKey = "metacritic"
	BadgeMetacriticMustSee  BadgeKey = "metacritic-mustsee"
	BadgeMetacriticUser     BadgeKey = "metacritic-user"
	BadgeIMDb               BadgeKey = "imdb"
	BadgeTMDb               BadgeKey = "tmdb"
	BadgeTrakt              BadgeKey = "trakt"
	BadgeLetterboxd         BadgeKey = "letterboxd"
	BadgeRogerEbert         BadgeKey = "rogerebert"
	BadgeMyAnimeList        BadgeKey = "myanimelist"
	BadgeAniList            BadgeKey = "anilist"
	BadgeKinopoisk          BadgeKey = "kinopoisk"
	BadgeAllocinePress      BadgeKey = "allocine-press"
	BadgeAllocineSpectators BadgeKey = "allocine-spectators"
	BadgeCommunity          BadgeKey = "community"
)

// RatingRecord is one provider's verdict on an item.
type RatingRecord struct {
	Provider string   `json:"provider"`
	Value    string   `json:"value"`
	Score    float64  `json:"score"`
	Votes    int      `json:"votes,omitempty"`
	Badge    BadgeKey `json:"badge"`
	Logo     string   `json:"logo"`
	URL      string   `json:"url,omitempty"`
	// Certifiable is set on Rotten Tomatoes records whose source carried no
	// certification metadata; they may be upgraded in place later.
	Certifiable bool `json:"-"`
}
