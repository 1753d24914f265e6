package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TikHub reads the account balance from the TikHub user info endpoint.
// Depending on API version the balance lives under "user_data" or "data".
type TikHub struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

// NewTikHub creates a TikHub adapter.
func NewTikHub(credential string) (Provider, error) {
	if credential == "" {
		return nil, fmt.Errorf("tikhub: api token is required")
	}
	return &TikHub{
		BaseURL: "https://api.tikhub.dev",
		apiKey:  credential,
		client:  newClient(),
	}, nil
}

func (p *TikHub) Name() string { return "tikhub" }

func (p *TikHub) Fetch(ctx context.Context) CheckResult {
	url := p.BaseURL + "/api/v1/tikhub/user/get_user_info"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Fail("create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return Fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Fail("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		UserData struct {
			Balance *float64 `json:"balance"`
		} `json:"user_data"`
		Data struct {
			Balance *float64 `json:"balance"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Fail("decode response: %v", err)
	}

	balance := body.UserData.Balance
	if balance == nil {
		balance = body.Data.Balance
	}
	if balance == nil {
		return Fail("response missing balance")
	}

	return Ok(*balance, "USD")
}
