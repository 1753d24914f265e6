package providers_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itswl/balance-alert/pkg/providers"
)

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRestDescriptor(t *testing.T) {
	path := writeDescriptor(t, `
name: siliconflow
url: https://api.siliconflow.cn/v1/user/info
currency: CNY
success_path: status
value_paths:
  - data.balance
`)

	desc, err := providers.LoadRestDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "siliconflow", desc.Name)
	assert.Equal(t, http.MethodGet, desc.Method)
	assert.Equal(t, "Authorization", desc.AuthHeader)
	assert.Equal(t, "Bearer", desc.AuthScheme)
}

func TestLoadRestDescriptor_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "url: https://x\nvalue_paths: [a]"},
		{"missing url", "name: x\nvalue_paths: [a]"},
		{"missing paths", "name: x\nurl: https://x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := providers.LoadRestDescriptor(writeDescriptor(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestRest_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"status":true,"data":{"balance":"1,024.50"}}`)
	}))
	defer server.Close()

	factory := providers.NewRestFactory(providers.RestDescriptor{
		Name:        "siliconflow",
		URL:         server.URL + "/v1/user/info",
		Method:      http.MethodGet,
		AuthHeader:  "Authorization",
		AuthScheme:  "Bearer",
		Currency:    "CNY",
		SuccessPath: "status",
		ValuePaths:  []string{"data.balance"},
	})

	p, err := factory("sk-test")
	require.NoError(t, err)
	assert.Equal(t, "siliconflow", p.Name())

	result := p.Fetch(context.Background())
	require.True(t, result.Success, result.Err)
	assert.InDelta(t, 1024.50, result.Value, 1e-9)
	assert.Equal(t, "CNY", result.Currency)
}

func TestRest_Fetch_FallbackPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"balance":7.25}`)
	}))
	defer server.Close()

	factory := providers.NewRestFactory(providers.RestDescriptor{
		Name:       "generic",
		URL:        server.URL,
		Method:     http.MethodGet,
		AuthHeader: "X-API-Key",
		ValuePaths: []string{"data.balance", "balance"},
	})

	p, err := factory("key")
	require.NoError(t, err)

	result := p.Fetch(context.Background())
	require.True(t, result.Success, result.Err)
	assert.InDelta(t, 7.25, result.Value, 1e-9)
}

func TestRest_Fetch_BusinessFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":false,"data":{"balance":1}}`)
	}))
	defer server.Close()

	factory := providers.NewRestFactory(providers.RestDescriptor{
		Name:        "generic",
		URL:         server.URL,
		Method:      http.MethodGet,
		SuccessPath: "status",
		ValuePaths:  []string{"data.balance"},
	})
	p, err := factory("key")
	require.NoError(t, err)

	result := p.Fetch(context.Background())
	assert.False(t, result.Success)
}
