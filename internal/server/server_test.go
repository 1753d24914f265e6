package server_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itswl/balance-alert/internal/server"
	"github.com/itswl/balance-alert/pkg/metrics"
	"github.com/itswl/balance-alert/pkg/monitor"
	"github.com/itswl/balance-alert/pkg/providers"
)

type stubProvider struct {
	fetch func(ctx context.Context) providers.CheckResult
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Fetch(ctx context.Context) providers.CheckResult {
	return s.fetch(ctx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupServer(t *testing.T, fetch func(ctx context.Context) providers.CheckResult) (*server.Server, *monitor.Orchestrator) {
	t.Helper()

	registry := providers.NewRegistry()
	require.NoError(t, registry.Register("stub", func(credential string) (providers.Provider, error) {
		return stubProvider{fetch: fetch}, nil
	}))

	project := monitor.Project{
		ID:         monitor.ProjectID("stub", "prod-api"),
		Name:       "prod-api",
		Provider:   "stub",
		Credential: "key",
		Threshold:  100,
		Kind:       monitor.KindBalance,
		Enabled:    true,
	}

	reg := prometheus.NewRegistry()
	o := monitor.NewOrchestrator(monitor.Options{
		Registry: registry,
		Metrics:  metrics.New(reg),
		Logger:   testLogger(),
		Projects: func() []monitor.Project { return []monitor.Project{project} },
	})

	return server.NewServer(context.Background(), o, reg, testLogger()), o
}

func okFetch(ctx context.Context) providers.CheckResult {
	return providers.Ok(250, "USD")
}

func get(t *testing.T, srv *server.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func post(t *testing.T, srv *server.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv, _ := setupServer(t, okFetch)

	w := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_Balances(t *testing.T) {
	srv, o := setupServer(t, okFetch)

	_, err := o.RunCycle(context.Background(), monitor.TriggerScheduled)
	require.NoError(t, err)

	w := get(t, srv, "/api/v1/balances")
	assert.Equal(t, http.StatusOK, w.Code)

	var results []monitor.ProjectResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "prod-api", results[0].Project.Name)
	assert.InDelta(t, 250, results[0].Result.Value, 0.001)
}

func TestServer_Summary(t *testing.T) {
	srv, o := setupServer(t, okFetch)

	// Before any cycle there is no summary, just a status message.
	w := get(t, srv, "/api/v1/summary")
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := o.RunCycle(context.Background(), monitor.TriggerScheduled)
	require.NoError(t, err)

	w = get(t, srv, "/api/v1/summary")
	assert.Equal(t, http.StatusOK, w.Code)

	var summary monitor.CycleSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestServer_Refresh(t *testing.T) {
	srv, o := setupServer(t, okFetch)

	w := post(t, srv, "/api/v1/refresh")
	assert.Equal(t, http.StatusAccepted, w.Code)

	// Wait for the background cycle to land, then hit the cooldown.
	require.Eventually(t, func() bool {
		_, ok := o.State().Summary()
		return ok
	}, time.Second, 5*time.Millisecond)

	w = post(t, srv, "/api/v1/refresh")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestServer_RefreshWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv, _ := setupServer(t, func(ctx context.Context) providers.CheckResult {
		close(started)
		<-release
		return providers.Ok(250, "USD")
	})
	defer close(release)

	w := post(t, srv, "/api/v1/refresh")
	require.Equal(t, http.StatusAccepted, w.Code)

	<-started
	w = post(t, srv, "/api/v1/refresh")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestServer_RefreshStopsWithLifetimeContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := providers.NewRegistry()
	require.NoError(t, registry.Register("stub", func(credential string) (providers.Provider, error) {
		return stubProvider{fetch: func(ctx context.Context) providers.CheckResult {
			<-ctx.Done()
			return providers.Fail("%v", ctx.Err())
		}}, nil
	}))

	project := monitor.Project{
		ID:         monitor.ProjectID("stub", "prod-api"),
		Name:       "prod-api",
		Provider:   "stub",
		Credential: "key",
		Threshold:  100,
		Kind:       monitor.KindBalance,
		Enabled:    true,
	}
	o := monitor.NewOrchestrator(monitor.Options{
		Registry: registry,
		Logger:   testLogger(),
		Projects: func() []monitor.Project { return []monitor.Project{project} },
	})
	srv := server.NewServer(ctx, o, nil, testLogger())

	w := post(t, srv, "/api/v1/refresh")
	require.Equal(t, http.StatusAccepted, w.Code)

	// Cancelling the lifetime context unblocks the detached cycle so
	// shutdown does not leave it running.
	cancel()
	o.Wait()

	result, ok := o.State().Get(project.ID)
	require.True(t, ok)
	assert.False(t, result.Result.Success)
}

func TestServer_Metrics(t *testing.T) {
	srv, o := setupServer(t, okFetch)

	_, err := o.RunCycle(context.Background(), monitor.TriggerScheduled)
	require.NoError(t, err)

	w := get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "balance_alert_cycles_total")
	assert.Contains(t, w.Body.String(), "balance_alert_project_balance")
}
