//go:build integration

package iotkit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-iot-service-platform/go-iotkit/internal/testenv"
	"github.com/open-iot-service-platform/go-iotkit/iotkit"
)

// Exercises the full device lifecycle against a live stack. Run with
//
//	IOTKIT_TEST_URL=... go test -tags integration ./iotkit
//
// The harness resets the backing database when the test finishes.
func TestDeviceLifecycle(t *testing.T) {
	h := testenv.Start(t)
	account := h.NewAccount(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	deviceID := "it-" + uuid.NewString()[:13]
	device, err := account.CreateDevice(ctx, deviceID, "integration-device", "")
	require.NoError(t, err)
	assert.Equal(t, iotkit.StatusCreated, device.Status)

	devices, err := account.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	same, comparable := device.Equal(devices[0])
	require.True(t, comparable)
	assert.True(t, same)

	deviceToken, err := device.Activate(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, deviceToken)

	devices, err = account.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, iotkit.StatusActive, devices[0].Status)

	require.NoError(t, device.SetProperties(ctx, iotkit.PropertyUpdate{
		Name: "integration-device-renamed",
		Tags: []string{"integration"},
	}))
	assert.Equal(t, "integration-device-renamed", device.Name)

	component, err := device.AddComponent(ctx, "temp", "temperature.v1.0", "")
	require.NoError(t, err)
	cid, _ := component["cid"].(string)
	require.NotEmpty(t, cid)

	require.NoError(t, device.SubmitData(ctx, deviceToken, iotkit.Observation{
		ComponentID: cid,
		On:          time.Now().UnixMilli(),
		Value:       "21.4",
	}))

	require.NoError(t, device.DeleteComponent(ctx, cid))
	require.NoError(t, device.Delete(ctx))

	devices, err = account.Devices(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)
}
