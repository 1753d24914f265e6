package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Aliyun queries the Alibaba Cloud BSS OpenAPI account balance. Requests
// use the RPC-style signature: sorted percent-encoded parameters signed
// with HMAC-SHA1.
type Aliyun struct {
	BaseURL string

	accessKeyID     string
	accessKeySecret string
	client          *http.Client

	now   func() time.Time
	nonce func() string
}

// NewAliyun creates an Alibaba Cloud adapter. The credential is
// "AccessKeyId:AccessKeySecret".
func NewAliyun(credential string) (Provider, error) {
	id, secret, ok := strings.Cut(credential, ":")
	if !ok || id == "" || secret == "" {
		return nil, fmt.Errorf("aliyun: credential must be \"AccessKeyId:AccessKeySecret\"")
	}
	return &Aliyun{
		BaseURL:         "https://business.aliyuncs.com",
		accessKeyID:     id,
		accessKeySecret: secret,
		client:          newClient(),
		now:             time.Now,
		nonce:           func() string { return uuid.New().String() },
	}, nil
}

func (p *Aliyun) Name() string { return "aliyun" }

func (p *Aliyun) Fetch(ctx context.Context) CheckResult {
	params := map[string]string{
		"Action":           "QueryAccountBalance",
		"Version":          "2017-12-14",
		"AccessKeyId":      p.accessKeyID,
		"SignatureMethod":  "HMAC-SHA1",
		"Timestamp":        p.now().UTC().Format("2006-01-02T15:04:05Z"),
		"SignatureVersion": "1.0",
		"SignatureNonce":   p.nonce(),
		"Format":           "JSON",
	}
	params["Signature"] = p.signature(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/?"+encodeQuery(params), nil)
	if err != nil {
		return Fail("create request: %v", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Code    *json.RawMessage `json:"Code"`
		Message string           `json:"Message"`
		Data    struct {
			AvailableAmount string `json:"AvailableAmount"`
		} `json:"Data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Fail("decode response: %v", err)
	}

	if body.Code != nil {
		code := strings.Trim(string(*body.Code), `"`)
		if code != "Success" && code != "200" {
			return Fail("api error: %s (Code: %s)", body.Message, code)
		}
	}
	if body.Data.AvailableAmount == "" {
		return Fail("response missing Data.AvailableAmount")
	}

	// Aliyun formats amounts with thousands separators.
	var value float64
	cleaned := strings.ReplaceAll(body.Data.AvailableAmount, ",", "")
	if _, err := fmt.Sscanf(cleaned, "%f", &value); err != nil {
		return Fail("parse AvailableAmount %q: %v", body.Data.AvailableAmount, err)
	}

	return Ok(value, "CNY")
}

// signature computes the RPC signature over the sorted request parameters.
func (p *Aliyun) signature(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params[k]))
	}
	canonical := strings.Join(pairs, "&")
	stringToSign := "GET&" + percentEncode("/") + "&" + percentEncode(canonical)

	mac := hmac.New(sha1.New, []byte(p.accessKeySecret+"&"))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// percentEncode applies the Aliyun variant of RFC 3986 escaping.
func percentEncode(s string) string {
	encoded := url.QueryEscape(s)
	encoded = strings.ReplaceAll(encoded, "+", "%20")
	encoded = strings.ReplaceAll(encoded, "*", "%2A")
	encoded = strings.ReplaceAll(encoded, "%7E", "~")
	return encoded
}

func encodeQuery(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}
