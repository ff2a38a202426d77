package iotkit

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const metricTopicFormat = "server/metric/%s/%s"

// MQTTConfig configures the observation submitter. The broker
// authenticates devices with their id and security token.
type MQTTConfig struct {
	Host        string
	Port        int
	TLS         bool
	DeviceID    string
	DeviceToken string
}

// MQTTSubmitter publishes observations over the platform's MQTT ingress
// instead of the REST data endpoint. Useful for devices that stream
// readings continuously.
type MQTTSubmitter struct {
	client mqtt.Client
}

func NewMQTTSubmitter(cfg MQTTConfig) (*MQTTSubmitter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("broker host is required")
	}
	if cfg.DeviceID == "" || cfg.DeviceToken == "" {
		return nil, fmt.Errorf("device id and token are required")
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{})
	}
	port := cfg.Port
	if port == 0 {
		port = 1883
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, port))
	opts.SetUsername(cfg.DeviceID)
	opts.SetPassword(cfg.DeviceToken)
	opts.SetClientID(cfg.DeviceID + "-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return &MQTTSubmitter{client: client}, nil
}

// Submit publishes observations to the account's metric topic for the
// device. Blocks until the broker acknowledges the publish.
func (s *MQTTSubmitter) Submit(accountID, deviceID string, observations ...Observation) error {
	if len(observations) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"on":        time.Now().UnixMilli(),
		"accountId": accountID,
		"data":      observations,
	})
	if err != nil {
		return fmt.Errorf("marshal observations: %w", err)
	}

	topic := fmt.Sprintf(metricTopicFormat, accountID, deviceID)
	if token := s.client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (s *MQTTSubmitter) Close() {
	s.client.Disconnect(250)
}
