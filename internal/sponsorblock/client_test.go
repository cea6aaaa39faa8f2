package sponsorblock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlightapp/spotlight-server/internal/domain"
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

func TestClient_Segments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/skipSegments", r.URL.Path)
		assert.Equal(t, "abc123", r.URL.Query().Get("videoID"))
		assert.Equal(t, `["intro","outro"]`, r.URL.Query().Get("categories"))
		_, _ = w.Write([]byte(`[
			{"category":"intro","actionType":"skip","segment":[0,4.5]},
			{"category":"outro","actionType":"mute","segment":[100,110]},
			{"category":"outro","segment":[120,119]},
			{"category":"outro","segment":[130,140]}
		]`))
	})

	segments, err := client.Segments(context.Background(), "abc123", []string{"intro", "outro"})
	require.NoError(t, err)
	assert.Equal(t, []domain.SkipSegment{
		{Category: "intro", Start: 0, End: 4.5},
		{Category: "outro", Start: 130, End: 140},
	}, segments)
}

func TestClient_NotFoundIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	segments, err := client.Segments(context.Background(), "none", nil)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestClient_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.Segments(context.Background(), "v", nil)
	var sbErr *Error
	require.ErrorAs(t, err, &sbErr)
	assert.Equal(t, "v", sbErr.VideoID)
}
