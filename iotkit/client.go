// Package iotkit is a client for the IoT analytics platform REST API.
// It covers account and device lifecycle management, device activation,
// component management, and observation submission.
package iotkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client talks to the platform REST API. All resource objects
// (Account, Device) route their calls through a shared Client.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Authenticate exchanges the credentials for a bearer token and stores it
// for subsequent calls.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	payload := map[string]string{
		"username": username,
		"password": password,
	}

	body, err := c.Post(ctx, "/auth/token", payload, http.StatusOK)
	if err != nil {
		return err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("token response missing token")
	}

	c.token = resp.Token
	return nil
}

// Token returns the current bearer token, empty if not authenticated.
func (c *Client) Token() string {
	return c.token
}

// SetToken installs a previously issued bearer token, bypassing
// Authenticate. Used when a cached token is available.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) Get(ctx context.Context, path string, expect int) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, expect, c.token)
}

func (c *Client) Post(ctx context.Context, path string, payload any, expect int) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, payload, expect, c.token)
}

func (c *Client) Put(ctx context.Context, path string, payload any, expect int) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, payload, expect, c.token)
}

func (c *Client) Delete(ctx context.Context, path string, expect int) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, nil, expect, c.token)
}

// do issues a single request and enforces the expected status code. A
// response with any other status is the sole failure signal of the API
// and surfaces as UnexpectedResponseError. There are no retries.
func (c *Client) do(ctx context.Context, method, path string, payload any, expect int, token string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		requestErrors.WithLabelValues(method).Inc()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestErrors.WithLabelValues(method).Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	requests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if resp.StatusCode != expect {
		return nil, UnexpectedResponseError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	return body, nil
}
