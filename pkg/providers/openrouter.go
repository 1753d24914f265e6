package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenRouter queries the OpenRouter credits endpoint. The available
// balance is total_credits minus total_usage.
type OpenRouter struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenRouter creates an OpenRouter adapter.
func NewOpenRouter(credential string) (Provider, error) {
	if credential == "" {
		return nil, fmt.Errorf("openrouter: api key is required")
	}
	return &OpenRouter{
		BaseURL: "https://openrouter.ai",
		apiKey:  credential,
		client:  newClient(),
	}, nil
}

func (p *OpenRouter) Name() string { return "openrouter" }

func (p *OpenRouter) Fetch(ctx context.Context) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/api/v1/credits", nil)
	if err != nil {
		return Fail("create request: %v", err)
	}
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
		Data struct {
			TotalCredits *float64 `json:"total_credits"`
			TotalUsage   *float64 `json:"total_usage"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Fail("decode response: %v", err)
	}
	if body.Data.TotalCredits == nil {
		return Fail("response missing total_credits")
	}
	if body.Data.TotalUsage == nil {
		return Fail("response missing total_usage")
	}

	return Ok(*body.Data.TotalCredits-*body.Data.TotalUsage, "USD")
}
