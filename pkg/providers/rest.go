package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RestDescriptor declares a simple bearer-token REST balance source so a
// new provider can be added without writing code. Descriptors are loaded
// from YAML files.
type RestDescriptor struct {
	Name        string   `yaml:"name"`
	URL         string   `yaml:"url"`
	Method      string   `yaml:"method"`
	AuthHeader  string   `yaml:"auth_header"`
	AuthScheme  string   `yaml:"auth_scheme"`
	Currency    string   `yaml:"currency"`
	SuccessPath string   `yaml:"success_path"`
	ValuePaths  []string `yaml:"value_paths"`
}

// Rest is a provider driven entirely by a RestDescriptor.
type Rest struct {
	desc   RestDescriptor
	apiKey string
	client *http.Client
}

// LoadRestDescriptor reads and validates a descriptor file.
func LoadRestDescriptor(path string) (RestDescriptor, error) {
	var desc RestDescriptor

	data, err := os.ReadFile(path)
	if err != nil {
		return desc, fmt.Errorf("read descriptor: %w", err)
	}
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return desc, fmt.Errorf("parse descriptor %s: %w", path, err)
	}

	if desc.Name == "" {
		return desc, fmt.Errorf("descriptor %s: name is required", path)
	}
	if desc.URL == "" {
		return desc, fmt.Errorf("descriptor %s: url is required", path)
	}
	if len(desc.ValuePaths) == 0 {
		return desc, fmt.Errorf("descriptor %s: value_paths is required", path)
	}
	if desc.Method == "" {
		desc.Method = http.MethodGet
	}
	if desc.AuthHeader == "" {
		desc.AuthHeader = "Authorization"
	}
	if desc.AuthScheme == "" {
		desc.AuthScheme = "Bearer"
	}
	return desc, nil
}

// NewRestFactory returns a Factory bound to the given descriptor.
func NewRestFactory(desc RestDescriptor) Factory {
	return func(credential string) (Provider, error) {
		if credential == "" {
			return nil, fmt.Errorf("%s: api key is required", desc.Name)
		}
		return &Rest{desc: desc, apiKey: credential, client: newClient()}, nil
	}
}

func (p *Rest) Name() string { return p.desc.Name }

func (p *Rest) Fetch(ctx context.Context) CheckResult {
	req, err := http.NewRequestWithContext(ctx, p.desc.Method, p.desc.URL, nil)
	if err != nil {
		return Fail("create request: %v", err)
	}
	value := p.apiKey
	if p.desc.AuthScheme != "" {
		value = p.desc.AuthScheme + " " + p.apiKey
	}
	req.Header.Set(p.desc.AuthHeader, value)

	resp, err := p.client.Do(req)
	if err != nil {
		return Fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Fail("unexpected status %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Fail("decode response: %v", err)
	}

	if p.desc.SuccessPath != "" {
		ok, found := lookupPath(body, p.desc.SuccessPath)
		if !found {
			return Fail("response missing %s", p.desc.SuccessPath)
		}
		if b, isBool := ok.(bool); !isBool || !b {
			return Fail("api reported failure at %s", p.desc.SuccessPath)
		}
	}

	for _, path := range p.desc.ValuePaths {
		raw, found := lookupPath(body, path)
		if !found {
			continue
		}
		if v, ok := toNumber(raw); ok {
			return Ok(v, p.desc.Currency)
		}
	}
	return Fail("no value found at %v", p.desc.ValuePaths)
}

// lookupPath walks a decoded JSON object by dot-separated keys.
func lookupPath(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// toNumber coerces JSON numbers and formatted numeric strings.
func toNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		cleaned := strings.NewReplacer(",", "", "¥", "", "$", "").Replace(strings.TrimSpace(v))
		f, err := strconv.ParseFloat(cleaned, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
