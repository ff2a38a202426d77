package iotkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Account is a handle on a platform account. Devices created under it
// keep a back-reference to resolve the authenticated client; the account
// does not own or track them.
type Account struct {
	client *Client

	Name      string
	AccountID string
}

// CreateAccount creates a new account on the platform. The caller must
// re-authenticate afterwards for the token to carry the new account's
// role grants.
func (c *Client) CreateAccount(ctx context.Context, name string) (*Account, error) {
	body, err := c.Post(ctx, "/accounts", map[string]string{"name": name}, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode account response: %w", err)
	}

	return &Account{client: c, Name: resp.Name, AccountID: resp.ID}, nil
}

// Account returns a local handle for an existing account. No network call.
func (c *Client) Account(accountID, name string) *Account {
	return &Account{client: c, Name: name, AccountID: accountID}
}

// ActivationCode fetches the account's current activation code.
func (a *Account) ActivationCode(ctx context.Context) (string, error) {
	return a.activationCode(ctx, http.MethodGet, fmt.Sprintf("/accounts/%s/activationcode", a.AccountID))
}

// RefreshActivationCode invalidates the current activation code and
// returns a fresh one.
func (a *Account) RefreshActivationCode(ctx context.Context) (string, error) {
	return a.activationCode(ctx, http.MethodPut, fmt.Sprintf("/accounts/%s/activationcode/refresh", a.AccountID))
}

func (a *Account) activationCode(ctx context.Context, method, path string) (string, error) {
	var (
		body []byte
		err  error
	)
	if method == http.MethodPut {
		body, err = a.client.Put(ctx, path, nil, http.StatusOK)
	} else {
		body, err = a.client.Get(ctx, path, http.StatusOK)
	}
	if err != nil {
		return "", err
	}

	var resp struct {
		ActivationCode string `json:"activationCode"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode activation code response: %w", err)
	}
	if resp.ActivationCode == "" {
		return "", fmt.Errorf("activation code response missing activationCode")
	}
	return resp.ActivationCode, nil
}

// CreateDevice registers a device under the account on the platform and
// returns its proxy. gatewayID may be empty, in which case the device id
// doubles as its own gateway.
func (a *Account) CreateDevice(ctx context.Context, deviceID, name, gatewayID string) (*Device, error) {
	if gatewayID == "" {
		gatewayID = deviceID
	}
	payload := map[string]string{
		"deviceId":  deviceID,
		"name":      name,
		"gatewayId": gatewayID,
	}

	body, err := a.client.Post(ctx, fmt.Sprintf("/accounts/%s/devices", a.AccountID), payload, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return DeviceFromJSON(a, body)
}

// Devices lists all devices registered under the account.
func (a *Account) Devices(ctx context.Context) ([]*Device, error) {
	body, err := a.client.Get(ctx, fmt.Sprintf("/accounts/%s/devices", a.AccountID), http.StatusOK)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}

	devices := make([]*Device, 0, len(raw))
	for _, entry := range raw {
		device, err := DeviceFromJSON(a, entry)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, nil
}
