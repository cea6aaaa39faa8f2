package domain

// AwardBody is an awarding organization tracked in the awards row.
type AwardBody string

// Award bodies, in display order.
const (
	AwardAcademy     AwardBody = "academy"
	AwardEmmy        AwardBody = "emmy"
	AwardGoldenGlobe AwardBody = "golden_globe"
	AwardBAFTA       AwardBody = "bafta"
	AwardRazzie      AwardBody = "razzie"
)

// AwardBodies lists the bodies in the order they are rendered.
var AwardBodies = []AwardBody{AwardAcademy, AwardEmmy, AwardGoldenGlobe, AwardBAFTA, AwardRazzie}

// AwardCount holds the counts for one body. Nominations include the
// nominations that were won.
type AwardCount struct {
	Wins        int `json:"wins"`
	Nominations int `json:"nominations"`
}

// IsZero reports whether the body has nothing to show.
func (c AwardCount) IsZero() bool {
	return c.Wins == 0 && c.Nominations == 0
}

// FestivalHonors flags top festival prizes by tier.
type FestivalHonors struct {
	CannesPalme      bool `json:"cannes_palme,omitempty"`
	CannesAward      bool `json:"cannes_award,omitempty"`
	BerlinGoldenBear bool `json:"berlin_golden_bear,omitempty"`
	BerlinSilverBear bool `json:"berlin_silver_bear,omitempty"`
	VeniceGoldenLion bool `json:"venice_golden_lion,omitempty"`
	VeniceSilverLion bool `json:"venice_silver_lion,omitempty"`
}

// Any reports whether any festival honor is set.
func (f FestivalHonors) Any() bool {
	return f.CannesPalme || f.CannesAward || f.BerlinGoldenBear || f.BerlinSilverBear ||
		f.VeniceGoldenLion || f.VeniceSilverLion
}

// AwardsSummary is derived once per item and never mutated afterwards.
type AwardsSummary struct {
	Bodies    map[AwardBody]AwardCount `json:"bodies,omitempty"`
	Festivals FestivalHonors           `json:"festivals"`
}

// Count returns the counts for body.
func (s AwardsSummary) Count(body AwardBody) AwardCount {
	return s.Bodies[body]
}

// Empty reports whether there is nothing to render.
func (s AwardsSummary) Empty() bool {
	for _, c := range s.Bodies {
		if !c.IsZero() {
			return false
		}
	}
	return !s.Festivals.Any()
}
