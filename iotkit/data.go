package iotkit

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Observation is a single component reading. On is epoch milliseconds;
// values travel as strings regardless of the component's data type.
type Observation struct {
	ComponentID string    `json:"componentId"`
	On          int64     `json:"on"`
	Value       string    `json:"value"`
	Loc         []float64 `json:"loc,omitempty"`
}

// SubmitData posts observations for this device. The call authenticates
// with the device security token obtained from Activate, not the user
// token held by the client.
func (d *Device) SubmitData(ctx context.Context, deviceToken string, observations ...Observation) error {
	if deviceToken == "" {
		return fmt.Errorf("device token is required")
	}
	if len(observations) == 0 {
		return nil
	}

	payload := map[string]any{
		"on":        time.Now().UnixMilli(),
		"accountId": d.account.AccountID,
		"data":      observations,
	}

	_, err := d.client.do(ctx, http.MethodPost, "/data/"+d.DeviceID, payload, http.StatusCreated, deviceToken)
	return err
}
