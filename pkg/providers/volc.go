package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Volc queries the Volcengine billing API for the available account
// balance. Requests carry the platform's HMAC-SHA256 signature over a
// canonical request, scoped to region/service/date.
type Volc struct {
	BaseURL string
	Host    string

	accessKey string
	secretKey string
	region    string
	service   string
	client    *http.Client

	// now is swappable so signature construction is testable.
	now func() time.Time
}

const (
	volcAction  = "QueryBalanceAcct"
	volcVersion = "2022-01-01"
)

// NewVolc creates a Volcengine adapter. The credential is
// "AccessKey:SecretKey".
func NewVolc(credential string) (Provider, error) {
	ak, sk, ok := strings.Cut(credential, ":")
	if !ok || ak == "" || sk == "" {
		return nil, fmt.Errorf("volc: credential must be \"AccessKey:SecretKey\"")
	}
	return &Volc{
		BaseURL:   "https://open.volcengineapi.com",
		Host:      "open.volcengineapi.com",
		accessKey: ak,
		secretKey: sk,
		region:    "cn-shanghai",
		service:   "billing",
		client:    newClient(),
		now:       time.Now,
	}, nil
}

func (p *Volc) Name() string { return "volc" }

func (p *Volc) Fetch(ctx context.Context) CheckResult {
	query := volcQuery()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/?"+query, nil)
	if err != nil {
		return Fail("create request: %v", err)
	}
	p.sign(req, query)

	resp, err := p.client.Do(req)
	if err != nil {
		return Fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Fail("unexpected status %d", resp.StatusCode)
	}

	// AvailableBalance arrives as a string on current API versions and
	// as a bare number on older ones.
	var body struct {
		Result struct {
			AvailableBalance any `json:"AvailableBalance"`
		} `json:"Result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Fail("decode response: %v", err)
	}
	if body.Result.AvailableBalance == nil {
		return Fail("response missing Result.AvailableBalance")
	}
	value, ok := toNumber(body.Result.AvailableBalance)
	if !ok {
		return Fail("parse AvailableBalance %v", body.Result.AvailableBalance)
	}

	return Ok(value, "CNY")
}

// sign adds the X-Date, X-Content-Sha256 and Authorization headers
// required by the Volcengine signing scheme.
func (p *Volc) sign(req *http.Request, query string) {
	xDate := p.now().UTC().Format("20060102T150405Z")
	shortDate := xDate[:8]
	contentSha := hashSHA256("")
	contentType := "application/json"

	req.Header.Set("Host", p.Host)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Content-Sha256", contentSha)
	req.Header.Set("X-Date", xDate)
	req.Host = p.Host

	signedHeaders := "content-type;host;x-content-sha256;x-date"
	canonical := strings.Join([]string{
		http.MethodGet,
		"/",
		query,
		"content-type:" + contentType,
		"host:" + p.Host,
		"x-content-sha256:" + contentSha,
		"x-date:" + xDate,
		"",
		signedHeaders,
		contentSha,
	}, "\n")

	scope := shortDate + "/" + p.region + "/" + p.service + "/request"
	stringToSign := strings.Join([]string{
		"HMAC-SHA256",
		xDate,
		scope,
		hashSHA256(canonical),
	}, "\n")

	kDate := hmacSHA256([]byte(p.secretKey), shortDate)
	kRegion := hmacSHA256(kDate, p.region)
	kService := hmacSHA256(kRegion, p.service)
	kSigning := hmacSHA256(kService, "request")
	signature := hex.EncodeToString(hmacSHA256(kSigning, stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		p.accessKey, scope, signedHeaders, signature,
	))
}

// volcQuery returns the canonical (sorted, escaped) query string.
func volcQuery() string {
	keys := []string{"Action", "Version"}
	values := map[string]string{"Action": volcAction, "Version": volcVersion}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(values[k]))
	}
	return strings.ReplaceAll(strings.Join(parts, "&"), "+", "%20")
}

func hashSHA256(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, content string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(content))
	return mac.Sum(nil)
}
