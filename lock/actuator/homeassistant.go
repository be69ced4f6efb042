package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HomeAssistant calls a Home Assistant instance's lock/unlock service API.
type HomeAssistant struct {
	BaseURL    string // e.g. "http://homeassistant.local:8123"
	APIKey     string // long-lived access token, sent as a bearer token
	HTTPClient *http.Client
}

// NewHomeAssistant returns a HomeAssistant actuator with a default client.
func NewHomeAssistant(baseURL, apiKey string) *HomeAssistant {
	return &HomeAssistant{BaseURL: baseURL, APIKey: apiKey, HTTPClient: http.DefaultClient}
}

type haServiceRequest struct {
	EntityID string `json:"entity_id"`
}

// Actuate calls POST /api/services/lock/{lock,unlock} with the given
// Home Assistant entity id.
func (h *HomeAssistant) Actuate(ctx context.Context, haEntity string, unlocked bool) error {
	service := "lock"
	if unlocked {
		service = "unlock"
	}

	body, err := json.Marshal(haServiceRequest{EntityID: haEntity})
	if err != nil {
		return fmt.Errorf("actuator: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/services/lock/%s", h.BaseURL, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("actuator: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := h.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("actuator: call lock service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("actuator: lock service returned %d", resp.StatusCode)
	}
	return nil
}
