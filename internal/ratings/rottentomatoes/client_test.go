package rottentomatoes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

const scorecardJSONPage = `<html><body>
<script id="media-scorecard-json" data-json="mediaScorecard" type="application/json">
{"criticsScore":{"certified":true,"score":"83","reviewCount":160,"sentiment":"POSITIVE"},
 "audienceScore":{"certified":false,"score":"85","ratingCount":250000}}
</script></body></html>`

const scorecardSlotsPage = `<html><body>
<media-scorecard>
  <score-icon-critics certified sentiment="positive" slot="criticsScoreIcon"></score-icon-critics>
  <rt-text slot="criticsScore">94%</rt-text>
  <rt-link slot="criticsReviews">312 Reviews</rt-link>
  <score-icon-audience certified="false" sentiment="positive"></score-icon-audience>
  <rt-text slot="audienceScore">91%</rt-text>
  <rt-link slot="audienceReviews">10,000+ Verified Ratings</rt-link>
</media-scorecard>
</body></html>`

const scoreBoardPage = `<html><body>
<score-board audiencestate="verified-hot" audiencescore="95" tomatometerstate="fresh" tomatometerscore="72">
  <a slot="critics-count">58 Reviews</a>
  <a slot="audience-count">2,500+ Ratings</a>
</score-board></body></html>`

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		html string
		want Scores
	}{
		{
			name: "embedded json",
			html: scorecardJSONPage,
			want: Scores{CriticsScore: ptr(83), CriticsCount: 160, AudienceScore: ptr(85), AudienceCount: 250000, CertifiedFresh: true},
		},
		{
			name: "scorecard slots",
			html: scorecardSlotsPage,
			want: Scores{CriticsScore: ptr(94), CriticsCount: 312, AudienceScore: ptr(91), AudienceCount: 10000, CertifiedFresh: true},
		},
		{
			name: "legacy score board",
			html: scoreBoardPage,
			want: Scores{CriticsScore: ptr(72), CriticsCount: 58, AudienceScore: ptr(95), AudienceCount: 2500, VerifiedHot: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParse_NoScorecard(t *testing.T) {
	_, err := Parse([]byte(`<html><body><h1>Not found</h1></body></html>`))
	assert.ErrorIs(t, err, ErrNoScores)
}

func TestParse_MissingAudience(t *testing.T) {
	got, err := Parse([]byte(`<media-scorecard><rt-text slot="criticsScore">40%</rt-text></media-scorecard>`))
	require.NoError(t, err)
	assert.Equal(t, 40, *got.CriticsScore)
	assert.Nil(t, got.AudienceScore)
}

func TestClient_ScoresThroughProxy(t *testing.T) {
	var gotURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		_, _ = w.Write([]byte(scorecardJSONPage))
	}))
	t.Cleanup(server.Close)

	hc := httpx.New(httpx.Options{RequestsPerSecond: 1000, Burst: 100, RetryDelay: time.Millisecond}, nil)
	hc.SetHTTPClient(server.Client())
	t.Cleanup(hc.Close)

	client := New(hc, httpx.NewProxy(server.URL+"/?url="), "", nil)
	require.True(t, client.Enabled())

	scores, err := client.Scores(context.Background(), " M/The_Matrix/ ")
	require.NoError(t, err)
	assert.Equal(t, "https://www.rottentomatoes.com/m/the_matrix", gotURL)
	assert.Equal(t, 83, *scores.CriticsScore)

	cert, err := client.Certification(context.Background(), "m/the_matrix")
	require.NoError(t, err)
	assert.Equal(t, Certification{CertifiedFresh: true}, cert)
}

func TestClient_DisabledWithoutProxy(t *testing.T) {
	client := New(nil, httpx.Proxy{}, "", nil)
	assert.False(t, client.Enabled())

	_, err := client.Scores(context.Background(), "m/the_matrix")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestClient_InvalidSlug(t *testing.T) {
	client := New(nil, httpx.NewProxy("https://proxy.test/?url="), "", nil)
	_, err := client.Scores(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidSlug)
}

func ptr(n int) *int { return &n }
