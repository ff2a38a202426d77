package iotkit

import (
	"os"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Config defines runtime configuration for the API client.
type Config struct {
	// BaseURL is the API root, e.g. "https://dashboard.example.com/v1/api".
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// ConfigFromEnv reads IOTKIT_URL, IOTKIT_USERNAME and IOTKIT_PASSWORD.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:  os.Getenv("IOTKIT_URL"),
		Username: os.Getenv("IOTKIT_USERNAME"),
		Password: os.Getenv("IOTKIT_PASSWORD"),
	}
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return c
}
