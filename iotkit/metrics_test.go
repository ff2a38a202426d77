package iotkit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceCollector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			{"deviceId":"dev-1","name":"a","status":"active"},
			{"deviceId":"dev-2","name":"b","status":"active"},
			{"deviceId":"dev-3","name":"c","status":"created"}
		]`)
	}))
	defer server.Close()

	account := newTestAccount(t, server.URL)
	collector := NewDeviceCollector(account)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.True(t, collector.Healthy())

	counts := map[string]float64{}
	var scrapeSuccess float64
	for _, family := range families {
		switch family.GetName() {
		case "iotkit_devices":
			for _, metric := range family.GetMetric() {
				for _, label := range metric.GetLabel() {
					if label.GetName() == "status" {
						counts[label.GetValue()] = metric.GetGauge().GetValue()
					}
				}
			}
		case "iotkit_devices_scrape_success":
			scrapeSuccess = family.GetMetric()[0].GetGauge().GetValue()
		}
	}

	assert.Equal(t, float64(2), counts[StatusActive])
	assert.Equal(t, float64(1), counts[StatusCreated])
	assert.Equal(t, float64(1), scrapeSuccess)
}

func TestDeviceCollectorConcurrentScrapes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			{"deviceId":"dev-1","name":"a","status":"active"},
			{"deviceId":"dev-2","name":"b","status":"active"},
			{"deviceId":"dev-3","name":"c","status":"created"}
		]`)
	}))
	defer server.Close()

	account := newTestAccount(t, server.URL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewDeviceCollector(account))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			families, err := registry.Gather()
			assert.NoError(t, err)
			for _, family := range families {
				if family.GetName() != "iotkit_devices" {
					continue
				}
				// Scrapes are serialized, so every gather sees a
				// complete inventory, never a half-reset one.
				for _, metric := range family.GetMetric() {
					value := metric.GetGauge().GetValue()
					for _, label := range metric.GetLabel() {
						switch label.GetValue() {
						case StatusActive:
							assert.Equal(t, float64(2), value)
						case StatusCreated:
							assert.Equal(t, float64(1), value)
						}
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestDeviceCollectorScrapeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	account := newTestAccount(t, server.URL)
	collector := NewDeviceCollector(account)
	assert.True(t, collector.Healthy(), "healthy until a scrape fails")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.False(t, collector.Healthy())

	for _, family := range families {
		if family.GetName() == "iotkit_devices_scrape_success" {
			assert.Equal(t, float64(0), family.GetMetric()[0].GetGauge().GetValue())
			return
		}
	}
	t.Fatal("iotkit_devices_scrape_success not reported")
}
