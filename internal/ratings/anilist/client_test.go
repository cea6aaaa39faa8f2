package anilist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	hc := httpx.New(httpx.Options{RequestsPerSecond: 1000, Burst: 100, RetryDelay: time.Millisecond}, nil)
	hc.SetHTTPClient(server.Client())
	t.Cleanup(hc.Close)
	return New(hc, server.URL, nil)
}

func TestClient_ByID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "Media(id: $id")
		assert.InDelta(t, 1, req.Variables["id"], 0)

		_, _ = w.Write([]byte(`{"data":{"Media":{"id":1,"averageScore":86,"popularity":400000,
			"seasonYear":1998,"title":{"romaji":"Cowboy Bebop","english":"Cowboy Bebop","native":"カウボーイビバップ"}}}}`))
	})

	m, err := client.ByID(context.Background(), 1)
	require.NoError(t, err)
	score, ok := m.Score()
	assert.True(t, ok)
	assert.Equal(t, 86, score)
	assert.Equal(t, 1998, m.Year())
	assert.Equal(t, "https://anilist.co/anime/1", m.URL())
}

func TestClient_ByID_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"Media":null},"errors":[{"message":"Not Found.","status":404}]}`))
	})

	_, err := client.ByID(context.Background(), 999999)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestClient_Search(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Your Name", req.Variables["search"])
		_, _ = w.Write([]byte(`{"data":{"Page":{"media":[
			{"id":21519,"averageScore":85,"startDate":{"year":2016},"title":{"romaji":"Kimi no Na wa.","english":"Your Name."}},
			{"id":2,"averageScore":50,"seasonYear":2016,"title":{"romaji":"Other"}}
		]}}}`))
	})

	results, err := client.Search(context.Background(), "Your Name")
	require.NoError(t, err)
	require.Len(t, results, 2)

	m, ok := BestMatch(results, 2016, "Your Name", "Kimi no Na wa")
	require.True(t, ok)
	assert.Equal(t, 21519, m.ID)
}

func TestBestMatch(t *testing.T) {
	results := []Media{
		{ID: 1, SeasonYear: 2013, Synonyms: []string{"AoT"}},
		{ID: 2, SeasonYear: 2014},
	}
	results[0].Title.Romaji = "Shingeki no Kyojin"
	results[0].Title.English = "Attack on Titan"
	results[1].Title.English = "Attack on Titan"

	tests := []struct {
		name   string
		year   int
		titles []string
		wantID int
		wantOK bool
	}{
		{"exact year and title", 2013, []string{"Attack on Titan"}, 1, true},
		{"synonym", 2013, []string{"aot"}, 1, true},
		{"year picks the second", 2014, []string{"ATTACK ON TITAN!"}, 2, true},
		{"year mismatch", 2015, []string{"Attack on Titan"}, 0, false},
		{"title mismatch", 2013, []string{"Attack on Titan 2"}, 0, false},
		{"no year", 0, []string{"Attack on Titan"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := BestMatch(results, tt.year, tt.titles...)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantID, m.ID)
			}
		})
	}
}

func TestMedia_ScoreFallsBackToMean(t *testing.T) {
	mean := 71
	m := Media{MeanScore: &mean}
	score, ok := m.Score()
	assert.True(t, ok)
	assert.Equal(t, 71, score)

	_, ok = (&Media{}).Score()
	assert.False(t, ok)
}
