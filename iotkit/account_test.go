package iotkit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/accounts", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "testaccount", payload["name"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"acc-9","name":"testaccount"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	account, err := client.CreateAccount(context.Background(), "testaccount")
	require.NoError(t, err)
	assert.Equal(t, "acc-9", account.AccountID)
	assert.Equal(t, "testaccount", account.Name)
}

func TestActivationCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/accounts/acc-1/activationcode", r.URL.Path)
		_, _ = io.WriteString(w, `{"activationCode":"CODE123","timeLeft":3600}`)
	}))
	defer server.Close()

	account := newTestAccount(t, server.URL)
	code, err := account.ActivationCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CODE123", code)
}

func TestRefreshActivationCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/accounts/acc-1/activationcode/refresh", r.URL.Path)
		_, _ = io.WriteString(w, `{"activationCode":"FRESH"}`)
	}))
	defer server.Close()

	account := newTestAccount(t, server.URL)
	code, err := account.RefreshActivationCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FRESH", code)
}

func TestCreateDeviceDefaultsGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/accounts/acc-1/devices", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "dev-1", payload["deviceId"])
		require.Equal(t, "dev-1", payload["gatewayId"], "gateway defaults to the device id")

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"deviceId":"dev-1","name":"thermostat","status":"created","gatewayId":"dev-1","created":1700000000000}`)
	}))
	defer server.Close()

	account := newTestAccount(t, server.URL)
	device, err := account.CreateDevice(context.Background(), "dev-1", "thermostat", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, device.Status)
	assert.Equal(t, "/accounts/acc-1/devices/dev-1", device.ResourcePath())
}

func TestDevices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/acc-1/devices", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"deviceId":"dev-1","name":"thermostat","status":"active","created":1700000000000},
			{"deviceId":"dev-2","name":"meter","status":"created"}
		]`)
	}))
	defer server.Close()

	account := newTestAccount(t, server.URL)
	devices, err := account.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, StatusActive, devices[0].Status)
	assert.Equal(t, "dev-2", devices[1].DeviceID)
	assert.True(t, devices[1].CreatedOn.IsZero())
}
