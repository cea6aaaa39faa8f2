package badge

import (
	"strconv"
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/domain"
)

// AwardBadge is one entry of an awards row.
type AwardBadge struct {
	Key             string `json:"key"`
	Logo            string `json:"logo"`
	Separator       bool   `json:"separator"`
	WinIcons        int    `json:"win_icons"`
	NominationIcons int    `json:"nomination_icons"`
	Title           string `json:"title"`
}

// AwardsRow is the rendered awards region of a slide.
type AwardsRow struct {
	Badges []AwardBadge `json:"badges"`
}

// Empty reports whether the row has no badges.
func (r AwardsRow) Empty() bool {
	return len(r.Badges) == 0
}

var bodyNames = map[domain.AwardBody]string{
	domain.AwardAcademy:     "Academy Awards",
	domain.AwardEmmy:        "Emmy Awards",
	domain.AwardGoldenGlobe: "Golden Globes",
	domain.AwardBAFTA:       "BAFTA Awards",
	domain.AwardRazzie:      "Razzie Awards",
}

type festival struct {
	key   string
	title string
	set   func(domain.FestivalHonors) bool
}

// festivals are listed by prestige. Within a festival only the top tier shows.
var festivals = []festival{
	{"cannes-palme", "Palme d'Or", func(f domain.FestivalHonors) bool { return f.CannesPalme }},
	{"cannes", "Cannes Film Festival Award", func(f domain.FestivalHonors) bool { return f.CannesAward && !f.CannesPalme }},
	{"berlin-golden-bear", "Golden Bear", func(f domain.FestivalHonors) bool { return f.BerlinGoldenBear }},
	{"berlin-silver-bear", "Silver Bear", func(f domain.FestivalHonors) bool { return f.BerlinSilverBear && !f.BerlinGoldenBear }},
	{"venice-golden-lion", "Golden Lion", func(f domain.FestivalHonors) bool { return f.VeniceGoldenLion }},
	{"venice-silver-lion", "Silver Lion", func(f domain.FestivalHonors) bool { return f.VeniceSilverLion && !f.VeniceGoldenLion }},
}

// Row builds the awards row for summary: one badge per body with a nonzero
// count in fixed order, then festival honors.
func Row(summary domain.AwardsSummary) AwardsRow {
	var row AwardsRow
	add := func(b AwardBadge) {
		b.Separator = len(row.Badges) > 0
		b.Logo = logoBase + "awards/" + b.Key + logoExt
		row.Badges = append(row.Badges, b)
	}

	for _, body := range domain.AwardBodies {
		count := summary.Count(body)
		if count.IsZero() {
			continue
		}
		wins, noms := Icons(count)
		add(AwardBadge{
			Key:             string(body),
			WinIcons:        wins,
			NominationIcons: noms,
			Title:           bodyNames[body] + ": " + CountTitle(count),
		})
	}

	for _, f := range festivals {
		if f.set(summary.Festivals) {
			add(AwardBadge{Key: f.key, WinIcons: 1, Title: f.title})
		}
	}
	return row
}

// Icons returns how many win and nomination icons a body shows. Nominations
// include the ones that were won, so wins are deducted.
func Icons(c domain.AwardCount) (wins, nominations int) {
	wins = max(c.Wins, 0)
	nominations = max(c.Nominations-wins, 0)
	return wins, nominations
}

// CountTitle renders counts as "2 wins, 5 nominations".
func CountTitle(c domain.AwardCount) string {
	var parts []string
	if c.Wins > 0 {
		parts = append(parts, plural(c.Wins, "win"))
	}
	if c.Nominations > 0 {
		parts = append(parts, plural(c.Nominations, "nomination"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n != 1 {
		word += "s"
	}
	return strconv.Itoa(n) + " " + word
}
