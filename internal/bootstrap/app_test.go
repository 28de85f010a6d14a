package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lca-companion/internal/jobs"
	"lca-companion/internal/router"
	"lca-companion/internal/shared/config"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		StoreType:       "memory",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		Poll:            config.PollConfig{BaseInterval: time.Millisecond, Multiplier: 1, MaxExponent: 1, MaxAttempts: 5},
		BackendTimeout:  time.Second,
	}
}

func postMessage(t *testing.T, app *App, body string) router.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body))
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp router.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBuildMemoryAppEndToEnd(t *testing.T) {
	ctx := context.Background()
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/lca/submit":
			_, _ = w.Write([]byte(`{"job_id":"job-123","status":"accepted"}`))
		case r.URL.Path == "/lca/status/job-123":
			_, _ = w.Write([]byte(`{"status":"done","progress":100}`))
		case r.URL.Path == "/lca/result/job-123":
			_, _ = w.Write([]byte(`{"material":"Aluminium","co2_kg":2.5,"circularity_score":80,"recycled_percent":60,"recommendations":["reuse"]}`))
		case r.URL.Path == "/lca/ping":
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer backendSrv.Close()

	cfg := memoryConfig(t)
	cfg.SeedBackendURL = backendSrv.URL
	cfg.SeedAPIKey = "test-key"

	app, err := Build(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	require.NoError(t, app.Start(ctx))

	resp := postMessage(t, app, `{"action":"pingBackend"}`)
	require.True(t, resp.Success)
	assert.True(t, *resp.OK)

	resp = postMessage(t, app, `{"action":"submitJob","payload":{"url":"https://example.com","raw_text":"hello"},"mockMode":false}`)
	require.True(t, resp.Success, resp.Error)
	jobID := resp.JobID
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		rec, err := app.Coordinator.Get(ctx, jobID)
		return err == nil && rec.Status == jobs.StatusDone
	}, 2*time.Second, 5*time.Millisecond)

	rec, err := app.Coordinator.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "job-123", rec.BackendJobID)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "Aluminium", rec.Result.Material)

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/result", nil))
		return w.Code == http.StatusOK && strings.Contains(w.Body.String(), "Aluminium")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBuildMockModeWithoutBackend(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)
	cfg.ObjectStoreType = "none"

	app, err := Build(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	require.NoError(t, app.Start(ctx))

	resp := postMessage(t, app, `{"action":"submitJob","payload":{"url":"https://example.com"}}`)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "must be configured")

	resp = postMessage(t, app, `{"action":"saveSettings","settings":{"mockMode":true}}`)
	require.True(t, resp.Success, resp.Error)

	resp = postMessage(t, app, `{"action":"submitJob","payload":{"url":"https://example.com"}}`)
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "PET plastic", resp.Result.Material)

	resp = postMessage(t, app, `{"action":"listJobs"}`)
	require.True(t, resp.Success)
	assert.Len(t, resp.Jobs, 1)

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"ok"`)
}

func TestBuildRejectsPostgresWithoutURL(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.StoreType = "postgres"

	_, err := Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "DATABASE_URL")
}
