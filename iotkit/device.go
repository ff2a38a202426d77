package iotkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Device lifecycle states as reported by the platform. A successful
// activation moves a device from "created" to "active"; the transition is
// not enforced client-side.
const (
	StatusCreated = "created"
	StatusActive  = "active"
)

// Device is a client-side proxy for a remote device record. Methods
// translate into REST calls under the device's resource path and keep the
// local fields loosely in sync with the last known server response.
//
// NewDevice does not create anything on the platform; see
// Account.CreateDevice for that.
type Device struct {
	account *Account
	client  *Client

	DeviceID   string
	Name       string
	Status     string
	GatewayID  string
	DomainID   string
	CreatedOn  time.Time
	Loc        []float64
	Tags       []string
	Attributes map[string]string

	// resourcePath is fixed at construction; identity fields must not be
	// mutated afterwards.
	resourcePath string
}

// NewDevice builds a device proxy from caller-supplied fields. Purely
// local, no network call.
func NewDevice(account *Account, deviceID, name, status, gatewayID, domainID string, createdOn time.Time) *Device {
	return &Device{
		account:      account,
		client:       account.client,
		DeviceID:     deviceID,
		Name:         name,
		Status:       status,
		GatewayID:    gatewayID,
		DomainID:     domainID,
		CreatedOn:    createdOn,
		resourcePath: fmt.Sprintf("/accounts/%s/devices/%s", account.AccountID, deviceID),
	}
}

// DeviceFromJSON decodes the platform's JSON representation of a device.
// Missing keys yield empty fields, not an error. The "created" field is
// epoch milliseconds.
func DeviceFromJSON(account *Account, data []byte) (*Device, error) {
	var raw struct {
		DeviceID  string `json:"deviceId"`
		Name      string `json:"name"`
		Status    string `json:"status"`
		GatewayID string `json:"gatewayId"`
		DomainID  string `json:"domainId"`
		Created   int64  `json:"created"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode device: %w", err)
	}

	var createdOn time.Time
	if raw.Created != 0 {
		createdOn = time.UnixMilli(raw.Created)
	}

	return NewDevice(account, raw.DeviceID, raw.Name, raw.Status, raw.GatewayID, raw.DomainID, createdOn), nil
}

// ResourcePath is the REST path identifying this device under its owning
// account: /accounts/{accountId}/devices/{deviceId}.
func (d *Device) ResourcePath() string {
	return d.resourcePath
}

// Equal reports whether v describes the same device, comparing name,
// account id and device id. Status, gateway and timestamps are excluded.
// comparable is false when v is not a Device.
func (d *Device) Equal(v any) (same bool, comparable bool) {
	var other *Device
	switch typed := v.(type) {
	case *Device:
		other = typed
	case Device:
		other = &typed
	default:
		return false, false
	}
	// A device without an account back-reference (a hand-built zero
	// value) has no identity to compare against.
	if other == nil || other.account == nil || d.account == nil {
		return false, false
	}
	return d.Name == other.Name &&
		d.account.AccountID == other.account.AccountID &&
		d.DeviceID == other.DeviceID, true
}

// Delete removes the device on the platform. The proxy is stale after a
// successful delete; further calls surface whatever the server answers.
func (d *Device) Delete(ctx context.Context) error {
	_, err := d.client.Delete(ctx, d.resourcePath, http.StatusNoContent)
	return err
}

// Activate activates the device and returns its security token. With an
// empty activationCode, a code is first fetched from the owning account;
// the fetch-then-use pair is not atomic, so a concurrently refreshed code
// surfaces as the activation call failing. A response without a
// deviceToken yields an empty token, not an error.
func (d *Device) Activate(ctx context.Context, activationCode string) (string, error) {
	if activationCode == "" {
		code, err := d.account.ActivationCode(ctx)
		if err != nil {
			return "", err
		}
		activationCode = code
	}

	payload := map[string]string{"activationCode": activationCode}
	body, err := d.client.Put(ctx, d.resourcePath+"/activation", payload, http.StatusOK)
	if err != nil {
		return "", err
	}

	var resp struct {
		DeviceToken string `json:"deviceToken"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode activation response: %w", err)
	}
	return resp.DeviceToken, nil
}

// PropertyUpdate is the whitelist of device fields SetProperties can
// change. Zero-valued fields are omitted from the update entirely, so a
// field cannot be cleared to empty through this call; the platform treats
// omission and clearing identically and the ambiguity is kept.
type PropertyUpdate struct {
	GatewayID  string
	Name       string
	Loc        []float64
	Tags       []string
	Attributes map[string]string
}

func (u PropertyUpdate) payload() map[string]any {
	payload := make(map[string]any)
	if u.GatewayID != "" {
		payload["gatewayId"] = u.GatewayID
	}
	if u.Name != "" {
		payload["name"] = u.Name
	}
	if len(u.Loc) > 0 {
		payload["loc"] = u.Loc
	}
	if len(u.Tags) > 0 {
		payload["tags"] = u.Tags
	}
	if len(u.Attributes) > 0 {
		payload["attributes"] = u.Attributes
	}
	return payload
}

// SetProperties sends a partial update containing only the fields set in
// update, then merges those same fields into the proxy so it reflects the
// last known values without a re-fetch.
func (d *Device) SetProperties(ctx context.Context, update PropertyUpdate) error {
	if _, err := d.client.Put(ctx, d.resourcePath, update.payload(), http.StatusOK); err != nil {
		return err
	}

	if update.GatewayID != "" {
		d.GatewayID = update.GatewayID
	}
	if update.Name != "" {
		d.Name = update.Name
	}
	if len(update.Loc) > 0 {
		d.Loc = update.Loc
	}
	if len(update.Tags) > 0 {
		d.Tags = update.Tags
	}
	if len(update.Attributes) > 0 {
		d.Attributes = update.Attributes
	}
	return nil
}

// AddComponent attaches a new component to the device. componentType must
// name an entry in the platform's component catalog; this is not checked
// locally. An empty cid gets a generated UUID. The decoded server
// response is returned as-is since the server may enrich the record; the
// proxy does not track its component list.
func (d *Device) AddComponent(ctx context.Context, name, componentType, cid string) (map[string]any, error) {
	if cid == "" {
		cid = uuid.NewString()
	}
	payload := map[string]string{
		"cid":  cid,
		"name": name,
		"type": componentType,
	}

	body, err := d.client.Post(ctx, d.resourcePath+"/components", payload, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode component response: %w", err)
	}
	return resp, nil
}

// DeleteComponent removes the component with the given id.
func (d *Device) DeleteComponent(ctx context.Context, componentID string) error {
	_, err := d.client.Delete(ctx, fmt.Sprintf("%s/components/%s", d.resourcePath, componentID), http.StatusNoContent)
	return err
}
