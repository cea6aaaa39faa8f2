package mdblist

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

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	hc := httpx.New(httpx.Options{RequestsPerSecond: 1000, Burst: 100, RetryDelay: time.Millisecond}, nil)
	hc.SetHTTPClient(server.Client())
	t.Cleanup(hc.Close)
	return New(hc, apiKey, server.URL, nil)
}

func TestClient_ByTMDb(t *testing.T) {
	client := newTestClient(t, "k3y", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tmdb/movie/603", r.URL.Path)
		assert.Equal(t, "k3y", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`{
			"imdbid":"tt0133093","tmdbid":603,"title":"The Matrix","year":1999,
			"ratings":[
				{"source":"imdb","value":8.7,"score":87,"votes":2100000},
				{"source":"tomatoes","value":83,"score":83,"votes":160},
				{"source":"popcorn","value":85,"score":85,"votes":250000},
				{"source":"letterboxd","value":null,"score":null,"votes":null}
			]}`))
	})

	res, err := client.ByTMDb(context.Background(), "movie", "603")
	require.NoError(t, err)
	assert.Equal(t, "tt0133093", res.IMDbID)
	require.Len(t, res.Ratings, 4)

	rt, ok := res.Find("Tomatoes")
	require.True(t, ok)
	assert.InDelta(t, 83, *rt.Value, 0.01)
	assert.InDelta(t, 160, *rt.Votes, 0.01)

	lb, ok := res.Find("letterboxd")
	require.True(t, ok)
	assert.Nil(t, lb.Value)

	_, ok = res.Find("metacritic")
	assert.False(t, ok)
}

func TestClient_ByIMDb(t *testing.T) {
	client := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/imdb/show/tt0944947", r.URL.Path)
		_, _ = w.Write([]byte(`{"imdbid":"tt0944947","ratings":[]}`))
	})

	res, err := client.ByIMDb(context.Background(), "show", "tt0944947")
	require.NoError(t, err)
	assert.Empty(t, res.Ratings)
}

func TestClient_NoKey(t *testing.T) {
	client := newTestClient(t, "", func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected without a key")
	})

	assert.False(t, client.Enabled())
	_, err := client.ByTMDb(context.Background(), "movie", "603")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestClient_ErrorsAreWrapped(t *testing.T) {
	client := newTestClient(t, "k", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.ByTMDb(context.Background(), "movie", "1")
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	var mErr *Error
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "movie/1", mErr.Key)
}
