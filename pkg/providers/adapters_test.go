package providers_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itswl/balance-alert/pkg/providers"
)

func TestUniAPI_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/billing/usage", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("unit"))
		assert.Equal(t, "Bearer uk-test", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"success":true,"data":{"balance":10446.054266,"used":48280.241632}}`)
	}))
	defer server.Close()

	p, err := providers.NewUniAPI("uk-test")
	require.NoError(t, err)
	p.(*providers.UniAPI).BaseURL = server.URL

	result := p.Fetch(context.Background())
	require.True(t, result.Success, result.Err)
	assert.InDelta(t, 10446.054266, result.Value, 1e-9)
}

func TestUniAPI_Fetch_BusinessFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer server.Close()

	p, err := providers.NewUniAPI("uk-test")
	require.NoError(t, err)
	p.(*providers.UniAPI).BaseURL = server.URL

	result := p.Fetch(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "success=false")
}

func TestTikHub_Fetch_UserDataField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tikhub/user/get_user_info", r.URL.Path)
		fmt.Fprint(w, `{"code":200,"user_data":{"balance":100.0}}`)
	}))
	defer server.Close()

	p, err := providers.NewTikHub("tk-test")
	require.NoError(t, err)
	p.(*providers.TikHub).BaseURL = server.URL

	result := p.Fetch(context.Background())
	require.True(t, result.Success, result.Err)
	assert.InDelta(t, 100.0, result.Value, 1e-9)
}

func TestTikHub_Fetch_DataField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"balance":42.5}}`)
	}))
	defer server.Close()

	p, err := providers.NewTikHub("tk-test")
	require.NoError(t, err)
	p.(*providers.TikHub).BaseURL = server.URL

	result := p.Fetch(context.Background())
	require.True(t, result.Success, result.Err)
	assert.InDelta(t, 42.5, result.Value, 1e-9)
}

func TestVolc_Fetch_SignsRequest(t *testing.T) {
	var auth, xDate, contentSha string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "QueryBalanceAcct", r.URL.Query().Get("Action"))
		assert.Equal(t, "2022-01-01", r.URL.Query().Get("Version"))
		auth = r.Header.Get("Authorization")
		xDate = r.Header.Get("X-Date")
		contentSha = r.Header.Get("X-Content-Sha256")
		fmt.Fprint(w, `{"Result":{"AvailableBalance":"1275.50"}}`)
	}))
	defer server.Close()

	p, err := providers.NewVolc("ak-test:sk-test")
	require.NoError(t, err)
	volc := p.(*providers.Volc)
	volc.BaseURL = server.URL

	result := p.Fetch(context.Background())
	require.True(t, result.Success, result.Err)
	assert.InDelta(t, 1275.50, result.Value, 1e-9)
	assert.Equal(t, "CNY", result.Currency)

	assert.Contains(t, auth, "HMAC-SHA256 Credential=ak-test/")
	assert.Contains(t, auth, "SignedHeaders=content-type;host;x-content-sha256;x-date")
	assert.Contains(t, auth, "Signature=")
	assert.Len(t, xDate, 16)
	assert.Len(t, contentSha, 64)
}

func TestAliyun_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "QueryAccountBalance", q.Get("Action"))
		assert.Equal(t, "2017-12-14", q.Get("Version"))
		assert.Equal(t, "ak-id", q.Get("AccessKeyId"))
		assert.Equal(t, "HMAC-SHA1", q.Get("SignatureMethod"))
		assert.NotEmpty(t, q.Get("Signature"))
		assert.NotEmpty(t, q.Get("SignatureNonce"))
		fmt.Fprint(w, `{"Code":"Success","Data":{"AvailableAmount":"12,345.67"}}`)
	}))
	defer server.Close()

	p, err := providers.NewAliyun("ak-id:ak-secret")
	require.NoError(t, err)
	p.(*providers.Aliyun).BaseURL = server.URL

	result := p.Fetch(context.Background())
	require.True(t, result.Success, result.Err)
	assert.InDelta(t, 12345.67, result.Value, 1e-9)
	assert.Equal(t, "CNY", result.Currency)
}

func TestAliyun_Fetch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Code":"InvalidAccessKeyId.NotFound","Message":"Specified access key is not found."}`)
	}))
	defer server.Close()

	p, err := providers.NewAliyun("ak-id:ak-secret")
	require.NoError(t, err)
	p.(*providers.Aliyun).BaseURL = server.URL

	result := p.Fetch(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "InvalidAccessKeyId.NotFound")
}

func TestWxRank_Fetch_CreditsFromMsg(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weixin/score", r.URL.Path)
		assert.Equal(t, "wx-test", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"code":0,"msg":"剩余263419积分"}`)
	}))
	defer server.Close()

	p, err := providers.NewWxRank("wx-test")
	require.NoError(t, err)
	p.(*providers.WxRank).BaseURL = server.URL

	result := p.Fetch(context.Background())
	require.True(t, result.Success, result.Err)
	assert.InDelta(t, 263419, result.Value, 1e-9)
}

func TestWxRank_Fetch_CreditsFromDataField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":0,"msg":"ok","data":{"score":1200}}`)
	}))
	defer server.Close()

	p, err := providers.NewWxRank("wx-test")
	require.NoError(t, err)
	p.(*providers.WxRank).BaseURL = server.URL

	result := p.Fetch(context.Background())
	require.True(t, result.Success, result.Err)
	assert.InDelta(t, 1200, result.Value, 1e-9)
}

func TestWxRank_Fetch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":1001,"msg":"key无效"}`)
	}))
	defer server.Close()

	p, err := providers.NewWxRank("wx-test")
	require.NoError(t, err)
	p.(*providers.WxRank).BaseURL = server.URL

	result := p.Fetch(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "api error 1001")
}
