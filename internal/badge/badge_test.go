package badge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlightapp/spotlight-server/internal/domain"
)

func TestCritic(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		votes     int
		certified bool
		want      domain.BadgeKey
	}{
		{"rotten", 55, 500, false, domain.BadgeRTRotten},
		{"rotten even with override", 55, 500, true, domain.BadgeRTRotten},
		{"certified by heuristic", 80, 100, false, domain.BadgeRTCertified},
		{"fresh with few votes", 65, 10, false, domain.BadgeRTFresh},
		{"fresh at boundary", 60, 0, false, domain.BadgeRTFresh},
		{"certified by override", 62, 3, true, domain.BadgeRTCertified},
		{"just below certified votes", 90, 79, false, domain.BadgeRTFresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Critic(tt.score, tt.votes, tt.certified))
		})
	}
}

func TestAudience(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		votes    int
		verified bool
		want     domain.BadgeKey
	}{
		{"negative", 40, 10000, false, domain.BadgeAudienceNegative},
		{"verified by heuristic", 95, 600, false, domain.BadgeAudienceVerified},
		{"positive with few votes", 95, 100, false, domain.BadgeAudiencePositive},
		{"verified by override", 70, 1, true, domain.BadgeAudienceVerified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Audience(tt.score, tt.votes, tt.verified))
		})
	}
}

func TestMetacritic(t *testing.T) {
	assert.Equal(t, domain.BadgeMetacriticMustSee, Metacritic(82, 15))
	assert.Equal(t, domain.BadgeMetacritic, Metacritic(81, 40))
	assert.Equal(t, domain.BadgeMetacritic, Metacritic(95, 14))
}

func TestHostFallback(t *testing.T) {
	fresh := HostCritic(73)
	assert.Equal(t, domain.BadgeRTFresh, fresh.Badge)
	assert.Equal(t, "73%", fresh.Value)
	assert.Equal(t, "/assets/badges/rt-fresh.svg", fresh.Logo)

	assert.Equal(t, domain.BadgeRTRotten, HostCritic(59.9).Badge)

	community := HostCommunity(7.26)
	assert.Equal(t, domain.BadgeCommunity, community.Badge)
	assert.Equal(t, "7.3", community.Value)
}

func TestOverrides(t *testing.T) {
	o, err := ParseOverrides([]byte(`
certified_fresh:
  - tt0133093
  - /m/Parasite_2019/
verified_hot: [tt1375666]
`))
	require.NoError(t, err)

	assert.True(t, o.Certified("", "tt0133093"))
	assert.True(t, o.Certified("m/parasite_2019"))
	assert.False(t, o.Certified("tt1375666"))
	assert.True(t, o.Verified("tt1375666"))
	assert.False(t, Overrides{}.Verified("tt1375666"))
}

func TestLoadOverrides(t *testing.T) {
	o, err := LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, o.CertifiedFresh)

	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("certified_fresh: [tt1]\n"), 0o600))
	o, err = LoadOverrides(path)
	require.NoError(t, err)
	assert.True(t, o.Certified("tt1"))

	require.NoError(t, os.WriteFile(path, []byte("certified_fresh: {nope"), 0o600))
	_, err = LoadOverrides(path)
	assert.Error(t, err)
}

func TestRow_Icons(t *testing.T) {
	row := Row(domain.AwardsSummary{Bodies: map[domain.AwardBody]domain.AwardCount{
		domain.AwardAcademy: {Wins: 2, Nominations: 5},
	}})

	require.Len(t, row.Badges, 1)
	b := row.Badges[0]
	assert.Equal(t, 2, b.WinIcons)
	assert.Equal(t, 3, b.NominationIcons)
	assert.Equal(t, "Academy Awards: 2 wins, 5 nominations", b.Title)
	assert.False(t, b.Separator)
}

func TestRow_OrderAndSeparators(t *testing.T) {
	row := Row(domain.AwardsSummary{
		Bodies: map[domain.AwardBody]domain.AwardCount{
			domain.AwardRazzie:      {Nominations: 1},
			domain.AwardGoldenGlobe: {Wins: 1, Nominations: 1},
			domain.AwardEmmy:        {},
			domain.AwardAcademy:     {Nominations: 3},
		},
		Festivals: domain.FestivalHonors{CannesPalme: true, CannesAward: true, VeniceSilverLion: true},
	})

	var keys []string
	for _, b := range row.Badges {
		keys = append(keys, b.Key)
	}
	assert.Equal(t, []string{"academy", "golden_globe", "razzie", "cannes-palme", "venice-silver-lion"}, keys)

	assert.False(t, row.Badges[0].Separator)
	for _, b := range row.Badges[1:] {
		assert.True(t, b.Separator)
	}

	academy := row.Badges[0]
	assert.Equal(t, 0, academy.WinIcons)
	assert.Equal(t, 3, academy.NominationIcons)
	assert.Equal(t, "Academy Awards: 3 nominations", academy.Title)

	globe := row.Badges[1]
	assert.Equal(t, 1, globe.WinIcons)
	assert.Equal(t, 0, globe.NominationIcons)
	assert.Equal(t, "Golden Globes: 1 win, 1 nomination", globe.Title)
}

func TestRow_Empty(t *testing.T) {
	assert.True(t, Row(domain.AwardsSummary{}).Empty())
}
