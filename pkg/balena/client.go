// Package balena talks to the balena device supervisor, which owns the
// container lifecycle on the appliance.
package balena

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

// ErrUnavailable is returned by NewSupervisorClient outside a balena
// container.
var ErrUnavailable = errors.New("balena supervisor not available")

type SupervisorClient struct {
	Address string
	APIKey  string
	Client  *http.Client
}

type DeviceState struct {
	Status           string  `json:"status"`
	AppState         string  `json:"appState"`
	UpdatePending    bool    `json:"update_pending"`
	DownloadProgress float64 `json:"download_progress"`
	OSVersion        string  `json:"os_version"`
	MacAddress       string  `json:"mac_address"`
}

// NewSupervisorClient uses addr and key, falling back to the variables the
// supervisor injects into every container.
func NewSupervisorClient(addr, key string) (*SupervisorClient, error) {
	if addr == "" {
		addr = os.Getenv("BALENA_SUPERVISOR_ADDRESS")
	}
	if key == "" {
		key = os.Getenv("BALENA_SUPERVISOR_API_KEY")
	}
	if addr == "" || key == "" {
		return nil, fmt.Errorf("%w: BALENA_SUPERVISOR_ADDRESS and BALENA_SUPERVISOR_API_KEY must be set", ErrUnavailable)
	}

	return &SupervisorClient{
		Address: addr,
		APIKey:  key,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (c *SupervisorClient) endpoint(path string) string {
	return fmt.Sprintf("%s%s?apikey=%s", c.Address, path, url.QueryEscape(c.APIKey))
}

func (c *SupervisorClient) GetState(ctx context.Context) (*DeviceState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/v2/state/status"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get supervisor state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supervisor returned status %d", resp.StatusCode)
	}

	var state DeviceState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode supervisor response: %w", err)
	}

	return &state, nil
}

// Reboot asks the supervisor to reboot the device. With force set, update
// locks are overridden.
func (c *SupervisorClient) Reboot(ctx context.Context, force bool) error {
	body, err := json.Marshal(map[string]bool{"force": force})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/v1/reboot"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request reboot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("supervisor refused reboot with status %d", resp.StatusCode)
	}
	return nil
}
