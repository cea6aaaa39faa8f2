package allocine

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

const page = `<html><body><div class="rating-holder">
  <div class="rating-item"><span class="rating-title"> Presse </span>
    <div class="stareval"><span class="stareval-note">3,9</span></div></div>
  <div class="rating-item"><span class="rating-title">Spectateurs</span>
    <div class="stareval"><span class="stareval-note">4,5</span></div></div>
</div></body></html>`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(page))
	require.NoError(t, err)
	require.NotNil(t, s.Press)
	require.NotNil(t, s.Spectators)
	assert.InDelta(t, 3.9, *s.Press, 0.001)
	assert.InDelta(t, 4.5, *s.Spectators, 0.001)
}

func TestParse_MissingPress(t *testing.T) {
	s, err := Parse([]byte(`<div class="rating-item"><span class="rating-title">Presse</span><span class="stareval-note">--</span></div>
<div class="rating-item"><span class="rating-title">Spectateurs</span><span class="stareval-note">2,1</span></div>`))
	require.NoError(t, err)
	assert.Nil(t, s.Press)
	assert.InDelta(t, 2.1, *s.Spectators, 0.001)
}

func TestParse_NoRatings(t *testing.T) {
	_, err := Parse([]byte(`<html></html>`))
	assert.ErrorIs(t, err, ErrNoRatings)
}

func TestClient_Scores(t *testing.T) {
	var target string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target = r.URL.Query().Get("url")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)

	hc := httpx.New(httpx.Options{RequestsPerSecond: 1000, Burst: 100, RetryDelay: time.Millisecond}, nil)
	hc.SetHTTPClient(server.Client())
	t.Cleanup(hc.Close)

	client := New(hc, httpx.NewProxy(server.URL+"/?url="), "", nil)
	s, err := client.Scores(context.Background(), "19776", "movie")
	require.NoError(t, err)
	assert.Equal(t, "https://www.allocine.fr/film/fichefilm_gen_cfilm=19776.html", target)
	assert.Equal(t, target, s.URL)

	_, err = client.Scores(context.Background(), "7157", "show")
	require.NoError(t, err)
	assert.Equal(t, "https://www.allocine.fr/series/ficheserie_gen_cserie=7157.html", target)
}

func TestClient_InertWithoutProxy(t *testing.T) {
	client := New(nil, httpx.Proxy{}, "", nil)
	assert.False(t, client.Enabled())

	_, err := client.Scores(context.Background(), "19776", "movie")
	assert.ErrorIs(t, err, ErrDisabled)
}
