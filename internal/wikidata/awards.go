package wikidata

import (
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/domain"
)

// Statement is one award-received or nominated-for row. The OPTIONAL joins
// can repeat a statement once per parent or class.
type Statement struct {
	ID          string // statement node; empty when unknown
	Won         bool
	AwardID     string
	Label       string
	ParentLabel string
	ClassLabel  string
}

func (s Statement) key() string {
	if s.ID != "" {
		return s.ID
	}
	kind := "n"
	if s.Won {
		kind = "w"
	}
	return kind + "|" + s.AwardID + "|" + s.Label
}

func (s Statement) text() string {
	return strings.ToLower(s.Label + " | " + s.ParentLabel + " | " + s.ClassLabel)
}

// bodyRules are checked in order; BAFTA must precede the Academy since its
// labels contain "academy".
var bodyRules = []struct {
	body     domain.AwardBody
	keywords []string
}{
	{domain.AwardBAFTA, []string{"bafta", "british academy"}},
	{domain.AwardRazzie, []string{"golden raspberry", "razzie"}},
	{domain.AwardAcademy, []string{"academy award", "oscar"}},
	{domain.AwardEmmy, []string{"emmy"}},
	{domain.AwardGoldenGlobe, []string{"golden globe"}},
}

// ClassifyBody maps a statement to an award body by label.
func ClassifyBody(s Statement) (domain.AwardBody, bool) {
	text := s.text()
	for _, rule := range bodyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.body, true
			}
		}
	}
	return "", false
}

// applyFestival sets the festival honor a won statement stands for.
func applyFestival(f *domain.FestivalHonors, s Statement) {
	text := s.text()
	switch {
	case strings.Contains(text, "palme d'or") || strings.Contains(text, "palme d’or"):
		f.CannesPalme = true
	case strings.Contains(text, "golden bear"):
		f.BerlinGoldenBear = true
	case strings.Contains(text, "silver bear"):
		f.BerlinSilverBear = true
	case strings.Contains(text, "golden lion"):
		f.VeniceGoldenLion = true
	case strings.Contains(text, "silver lion"):
		f.VeniceSilverLion = true
	case strings.Contains(text, "cannes"):
		f.CannesAward = true
	}
}

// Classify folds statements into a summary. Wins count won statements;
// nominations count nominated statements plus wins of awards with no
// separate nomination, so nominations always include wins.
func Classify(statements []Statement) domain.AwardsSummary {
	index := make(map[string]int)
	nominated := make(map[string]bool)

	var unique []Statement
	for _, s := range statements {
		if s.AwardID == "" && s.Label == "" {
			continue
		}
		k := s.key()
		if i, ok := index[k]; ok {
			// Repeated OPTIONAL rows carry the other parent or class labels.
			if unique[i].ParentLabel == "" {
				unique[i].ParentLabel = s.ParentLabel
			}
			if unique[i].ClassLabel == "" {
				unique[i].ClassLabel = s.ClassLabel
			}
			continue
		}
		index[k] = len(unique)
		unique = append(unique, s)
		if !s.Won {
			nominated[s.AwardID] = true
		}
	}

	summary := domain.AwardsSummary{Bodies: make(map[domain.AwardBody]domain.AwardCount)}
	for _, s := range unique {
		if s.Won {
			applyFestival(&summary.Festivals, s)
		}

		body, ok := ClassifyBody(s)
		if !ok {
			continue
		}
		c := summary.Bodies[body]
		if s.Won {
			c.Wins++
			if !nominated[s.AwardID] {
				c.Nominations++
			}
		} else {
			c.Nominations++
		}
		summary.Bodies[body] = c
	}
	return summary
}
