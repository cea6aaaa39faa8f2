package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlightapp/spotlight-server/internal/navigation"
	"github.com/spotlightapp/spotlight-server/internal/session"
	"github.com/spotlightapp/spotlight-server/internal/video"
)

func TestCreateSession(t *testing.T) {
	ts := setupTestServer(t)

	created := ts.createSession(t)

	assert.True(t, strings.HasPrefix(created.SessionID, "spot-"))
	assert.True(t, created.Rendered)
	assert.Len(t, created.Slides, 7, "five slides plus two sentinels")
	assert.True(t, created.Slides[0].Clone)
	assert.Equal(t, 5, created.Slides[0].RealIndex)
	assert.Contains(t, string(created.Container), `class="spotlight-dot active" data-index="1"`)
	assert.Equal(t, int64(8000), created.Config.AutoplayIntervalMs)
	assert.Equal(t, 1, ts.sessions.Count())
}

func TestCreateSession_EmptyHost(t *testing.T) {
	ts := setupTestServerWith(t, 0, Options{})

	created := ts.createSession(t)

	assert.False(t, created.Rendered)
	assert.Empty(t, created.Slides)
	assert.Empty(t, created.Container)
}

func TestGetSession(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createSession(t)

	resp := ts.api.Get("/api/v1/spotlight/sessions/" + created.SessionID)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[session.State]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, created.SessionID, envelope.Data.ID)
	assert.Equal(t, 1, envelope.Data.CurrentIndex)
	assert.Equal(t, 5, envelope.Data.Count)
	assert.Equal(t, "app_router", envelope.Data.Navigator)
}

func TestSession_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		do   func() *httptest.ResponseRecorder
	}{
		{"get", func() *httptest.ResponseRecorder { return ts.api.Get("/api/v1/spotlight/sessions/spot-missing") }},
		{"delete", func() *httptest.ResponseRecorder { return ts.api.Delete("/api/v1/spotlight/sessions/spot-missing") }},
		{"refresh", func() *httptest.ResponseRecorder {
			return ts.api.Post("/api/v1/spotlight/sessions/spot-missing/refresh")
		}},
		{"input", func() *httptest.ResponseRecorder {
			return ts.api.Post("/api/v1/spotlight/sessions/spot-missing/input", map[string]any{"action": "next"})
		}},
		{"navigate", func() *httptest.ResponseRecorder {
			return ts.api.Get("/api/v1/spotlight/sessions/spot-missing/navigate/item-1")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.do()
			assert.Equal(t, http.StatusNotFound, resp.Code)

			var envelope APIErrorEnvelope
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
			assert.Equal(t, "NOT_FOUND", envelope.Code)
			assert.False(t, envelope.Success)
		})
	}
}

func TestInput(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createSession(t)
	path := "/api/v1/spotlight/sessions/" + created.SessionID + "/input"

	resp := ts.api.Post(path, map[string]any{"action": "goto", "index": 3})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	require.Eventually(t, func() bool {
		sess, err := ts.sessions.Get(created.SessionID)
		return err == nil && sess.State().CurrentIndex == 3
	}, 2*time.Second, 5*time.Millisecond)

	resp = ts.api.Post(path, map[string]any{"action": "hover_enter"})
	require.Equal(t, http.StatusOK, resp.Code)
	var envelope testEnvelope[session.State]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Hovered)
	assert.False(t, envelope.Data.AutoplayRunning)
}

func TestInput_Invalid(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createSession(t)
	path := "/api/v1/spotlight/sessions/" + created.SessionID + "/input"

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"unknown action", map[string]any{"action": "spin"}, http.StatusUnprocessableEntity},
		{"goto without index", map[string]any{"action": "goto"}, http.StatusBadRequest},
		{"goto out of range", map[string]any{"action": "goto", "index": 6}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post(path, tt.body)
			assert.Equal(t, tt.status, resp.Code, resp.Body.String())

			var envelope APIErrorEnvelope
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
			assert.Equal(t, "VALIDATION", envelope.Code)
		})
	}
}

func TestPlayerReportAndVideo(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createSession(t)
	base := "/api/v1/spotlight/sessions/" + created.SessionID

	resp := ts.api.Post(base+"/players/item-1", map[string]any{"state": "position", "position": 4.5})
	assert.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Post(base+"/players/item-1", map[string]any{"state": "paused"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = ts.api.Post(base+"/video", map[string]any{"muted": false, "paused": true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var envelope testEnvelope[video.PlaybackState]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.Muted)
	assert.True(t, envelope.Data.Paused)
}

func TestNavigate(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createSession(t)
	base := "/api/v1/spotlight/sessions/" + created.SessionID + "/navigate/item-2"

	resp := ts.api.Get(base)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var envelope testEnvelope[navigation.Directive]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "appRouter.showItem", envelope.Data.Call)
	assert.Equal(t, navigation.ActionShow, envelope.Data.Action)
	assert.Equal(t, "srv-1", envelope.Data.ServerID)

	resp = ts.api.Get(base + "?action=play")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, navigation.ActionPlay, envelope.Data.Action)

	resp = ts.api.Get(base + "?action=dance")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestRefreshAndDelete(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createSession(t)
	base := "/api/v1/spotlight/sessions/" + created.SessionID

	resp := ts.api.Post(base + "/refresh")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var envelope testEnvelope[SessionResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, created.SessionID, envelope.Data.SessionID)
	assert.Len(t, envelope.Data.Slides, 7)

	resp = ts.api.Delete(base)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Zero(t, ts.sessions.Count())

	resp = ts.api.Get(base)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStream(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createSession(t)

	server := httptest.NewServer(ts.Server)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/spotlight/sessions/spot-missing/stream")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/v1/spotlight/sessions/" + created.SessionID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
				events <- name
			}
		}
	}()

	// Host ratings for the current slide and its neighbours arrive either
	// from the backlog or live.
	deadline := time.After(2 * time.Second)
	var names []string
	for len(names) < 4 {
		select {
		case name := <-events:
			if name == "connected" || name == "slide.ratings" {
				names = append(names, name)
			}
		case <-deadline:
			t.Fatalf("stream stalled after %v", names)
		}
	}
	assert.Equal(t, "connected", names[0])
	assert.Equal(t, []string{"slide.ratings", "slide.ratings", "slide.ratings"}, names[1:])
}
