package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// UniAPI queries the UniAPI billing usage endpoint for remaining credits.
type UniAPI struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

// NewUniAPI creates a UniAPI adapter.
func NewUniAPI(credential string) (Provider, error) {
	if credential == "" {
		return nil, fmt.Errorf("uniapi: api key is required")
	}
	return &UniAPI{
		BaseURL: "https://api.uniapi.io",
		apiKey:  credential,
		client:  newClient(),
	}, nil
}

func (p *UniAPI) Name() string { return "uniapi" }

func (p *UniAPI) Fetch(ctx context.Context) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/v1/billing/usage?unit=usd", nil)
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
		Success bool `json:"success"`
		Data    struct {
			Balance *float64 `json:"balance"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Fail("decode response: %v", err)
	}
	if !body.Success {
		return Fail("api returned success=false")
	}
	if body.Data.Balance == nil {
		return Fail("response missing balance")
	}

	return Ok(*body.Data.Balance, "USD")
}
