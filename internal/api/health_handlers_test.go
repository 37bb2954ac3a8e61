package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	seedCatalog(t, env)

	resp := env.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "up", body.Status)
	assert.Equal(t, "up", body.Components["database"].Status)
	assert.Equal(t, "up", body.Components["search"].Status)
	assert.NotEmpty(t, body.Components["database"].Latency)
}

func TestHealthCheckDegradedWithEmptyIndex(t *testing.T) {
	env := newTestEnv(t)

	resp := env.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "up", body.Components["database"].Status)
	assert.Equal(t, "degraded", body.Components["search"].Status)
}

func TestHealthCheckDegradedWithoutIndex(t *testing.T) {
	env := newTestEnv(t)
	env.server.suggest = nil

	resp := env.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}
