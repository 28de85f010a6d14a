package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lca-companion/internal/services/health"
	"lca-companion/internal/shared/config"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func healthWith(name string, err error) *health.Service {
	svc := health.NewService()
	svc.Register(name, func(context.Context) error { return err })
	return svc
}

func testConfig() config.Config {
	return config.Config{Env: "dev", LocalToken: "tok", CORSAllowOrigin: []string{"chrome-extension://*"}}
}

func TestHealthIsPublic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testConfig(), RouterDeps{
		Health: healthWith("store", nil),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"checks":{"store":"ok"}}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestHealthReportsFailingCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testConfig(), RouterDeps{
		Health: healthWith("store", errors.New("closed")),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "closed")
}

func TestRegisteredHandlersRequireToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testConfig(), RouterDeps{Handlers: []RouteRegistrar{pingRoutes{}, nil}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-LCA-Token", "tok")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(config.Config{}, RouterDeps{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lca_jobs_submitted_total")
}

func TestAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "127.0.0.1:8787"},
		{in: "9000", want: "127.0.0.1:9000"},
		{in: ":9000", want: "127.0.0.1:9000"},
		{in: "0.0.0.0:9000", want: "0.0.0.0:9000"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Addr(tt.in))
		})
	}
}
