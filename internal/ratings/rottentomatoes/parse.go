package rottentomatoes

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Scores is a parsed scorecard. Nil scores were absent on the page.
type Scores struct {
	CriticsScore   *int `json:"critics_score,omitempty"`
	CriticsCount   int  `json:"critics_count,omitempty"`
	AudienceScore  *int `json:"audience_score,omitempty"`
	AudienceCount  int  `json:"audience_count,omitempty"`
	CertifiedFresh bool `json:"certified_fresh,omitempty"`
	VerifiedHot    bool `json:"verified_hot,omitempty"`
}

// Certification holds the page's own badges.
type Certification struct {
	CertifiedFresh bool `json:"certified_fresh"`
	VerifiedHot    bool `json:"verified_hot"`
}

var digits = regexp.MustCompile(`\d[\d,.]*`)

// scorecardJSON mirrors the embedded media-scorecard JSON blob.
type scorecardJSON struct {
	CriticsScore struct {
		Certified     bool   `json:"certified"`
		Score         string `json:"score"`
		ScorePercent  string `json:"scorePercent"`
		ReviewCount   int    `json:"reviewCount"`
		RatingCount   int    `json:"ratingCount"`
		ScoreType     string `json:"scoreType"`
		Sentiment     string `json:"sentiment"`
		LikedCount    int    `json:"likedCount"`
		NotLikedCount int    `json:"notLikedCount"`
	} `json:"criticsScore"`
	AudienceScore struct {
		Certified    bool   `json:"certified"`
		Score        string `json:"score"`
		ScorePercent string `json:"scorePercent"`
		ReviewCount  int    `json:"reviewCount"`
		RatingCount  int    `json:"ratingCount"`
		ScoreType    string `json:"scoreType"`
	} `json:"audienceScore"`
}

// Parse extracts the scorecard from a title page. It tries the embedded
// JSON first, then the media-scorecard slots, then the legacy score-board
// attributes. It is a pure function of its input.
func Parse(html []byte) (*Scores, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	for _, parse := range []func(*goquery.Document) *Scores{parseJSON, parseScorecard, parseScoreBoard} {
		if s := parse(doc); s != nil && (s.CriticsScore != nil || s.AudienceScore != nil) {
			return s, nil
		}
	}
	return nil, ErrNoScores
}

func parseJSON(doc *goquery.Document) *Scores {
	raw := strings.TrimSpace(doc.Find(`script#media-scorecard-json`).First().Text())
	if raw == "" {
		return nil
	}
	var sc scorecardJSON
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return nil
	}

	s := &Scores{
		CriticsScore:   atoiPtr(firstNonEmpty(sc.CriticsScore.Score, sc.CriticsScore.ScorePercent)),
		CriticsCount:   max(sc.CriticsScore.ReviewCount, sc.CriticsScore.RatingCount, sc.CriticsScore.LikedCount+sc.CriticsScore.NotLikedCount),
		AudienceScore:  atoiPtr(firstNonEmpty(sc.AudienceScore.Score, sc.AudienceScore.ScorePercent)),
		AudienceCount:  max(sc.AudienceScore.ReviewCount, sc.AudienceScore.RatingCount),
		CertifiedFresh: sc.CriticsScore.Certified,
		VerifiedHot:    sc.AudienceScore.Certified,
	}
	return s
}

func parseScorecard(doc *goquery.Document) *Scores {
	card := doc.Find("media-scorecard").First()
	if card.Length() == 0 {
		return nil
	}

	s := &Scores{
		CriticsScore:  atoiPtr(card.Find(`[slot="criticsScore"]`).First().Text()),
		CriticsCount:  atoi(card.Find(`[slot="criticsReviews"]`).First().Text()),
		AudienceScore: atoiPtr(card.Find(`[slot="audienceScore"]`).First().Text()),
		AudienceCount: atoi(card.Find(`[slot="audienceReviews"]`).First().Text()),
	}

	s.CertifiedFresh = flagAttr(card.Find("score-icon-critics").First(), "certified")
	s.VerifiedHot = flagAttr(card.Find("score-icon-audience").First(), "certified")
	return s
}

func parseScoreBoard(doc *goquery.Document) *Scores {
	board := doc.Find("score-board, score-board-deprecated").First()
	if board.Length() == 0 {
		return nil
	}

	attr := func(name string) string {
		v, _ := board.Attr(name)
		return v
	}

	s := &Scores{
		CriticsScore:   atoiPtr(attr("tomatometerscore")),
		AudienceScore:  atoiPtr(attr("audiencescore")),
		CertifiedFresh: attr("tomatometerstate") == "certified-fresh",
		VerifiedHot:    attr("audiencestate") == "verified-hot",
	}
	s.CriticsCount = atoi(board.Find(`[slot="critics-count"]`).First().Text())
	s.AudienceCount = atoi(board.Find(`[slot="audience-count"]`).First().Text())
	return s
}

// flagAttr treats a present boolean attribute as true unless it reads "false".
func flagAttr(sel *goquery.Selection, name string) bool {
	v, ok := sel.Attr(name)
	return ok && v != "false"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// atoi pulls the first number out of text like "250,000+ Ratings".
func atoi(text string) int {
	m := digits.FindString(text)
	if m == "" {
		return 0
	}
	m = strings.ReplaceAll(m, ",", "")
	if i := strings.IndexByte(m, '.'); i >= 0 {
		m = m[:i]
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func atoiPtr(text string) *int {
	if digits.FindString(text) == "" {
		return nil
	}
	n := atoi(text)
	return &n
}
