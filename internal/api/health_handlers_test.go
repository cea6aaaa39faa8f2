package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)
	ts.createSession(t)

	resp := ts.api.Get("/health")

	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[HealthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.Equal(t, "healthy", envelope.Data.Status)
	assert.Equal(t, "dev", envelope.Data.Version)
	assert.Equal(t, "1 live session", envelope.Data.Components["sessions"].Message)
	assert.Equal(t, "no connected clients", envelope.Data.Components["sse"].Message)
}
