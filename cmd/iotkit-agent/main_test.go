package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-iot-service-platform/go-iotkit/iotkit"
)

func newCollector(t *testing.T, apiURL string) *iotkit.DeviceCollector {
	t.Helper()
	client, err := iotkit.NewClient(iotkit.Config{BaseURL: apiURL})
	require.NoError(t, err)
	client.SetToken("test-token")
	return iotkit.NewDeviceCollector(client.Account("acc-1", "testaccount"))
}

func TestHealthHandler(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"deviceId":"dev-1","name":"a","status":"active"}]`)
	}))
	defer api.Close()

	collector := newCollector(t, api.URL)

	rec := httptest.NewRecorder()
	healthHandler(collector)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "healthy before the first scrape")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	_, err := registry.Gather()
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	healthHandler(collector)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthHandlerDegraded(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()

	collector := newCollector(t, api.URL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	_, err := registry.Gather()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	healthHandler(collector)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", rec.Body.String())
}
