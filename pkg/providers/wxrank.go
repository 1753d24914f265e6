package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
)

// WxRank reads the remaining credits from the WxRank score endpoint.
// The API keys the request with a query parameter and reports the
// count inside the human readable "msg" text ("剩余263419积分");
// some responses carry it as a numeric field instead.
type WxRank struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

var wxrankDigits = regexp.MustCompile(`\d+`)

// NewWxRank creates a WxRank adapter.
func NewWxRank(credential string) (Provider, error) {
	if credential == "" {
		return nil, fmt.Errorf("wxrank: api key is required")
	}
	return &WxRank{
		BaseURL: "http://data.wxrank.com",
		apiKey:  credential,
		client:  newClient(),
	}, nil
}

func (p *WxRank) Name() string { return "wxrank" }

func (p *WxRank) Fetch(ctx context.Context) CheckResult {
	endpoint := p.BaseURL + "/weixin/score?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Fail("create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Fail("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Code  int    `json:"code"`
		Msg   string `json:"msg"`
		Data  any    `json:"data"`
		Score any    `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Fail("decode response: %v", err)
	}
	if body.Code != 0 {
		return Fail("api error %d: %s", body.Code, body.Msg)
	}

	if credits, ok := wxrankCredits(body.Msg, body.Data, body.Score); ok {
		return Ok(credits, "")
	}
	return Fail("response missing credits: %q", body.Msg)
}

// wxrankCredits tries the digits embedded in msg first, then the
// numeric fallbacks.
func wxrankCredits(msg string, data, score any) (float64, bool) {
	if digits := wxrankDigits.FindString(msg); digits != "" {
		if v, ok := toNumber(digits); ok {
			return v, true
		}
	}
	if v, ok := toNumber(data); ok {
		return v, true
	}
	if m, ok := data.(map[string]any); ok {
		if v, ok := toNumber(m["score"]); ok {
			return v, true
		}
		if v, ok := toNumber(m["credits"]); ok {
			return v, true
		}
	}
	return toNumber(score)
}
