package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lca-companion/internal/shared/storage/object"
)

func newTestRouter(t *testing.T, h *harness) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(h.c, h.archive).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHandlerListAndGet(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, 60)
	h.seed(t, pendingRecord("a"))
	r := newTestRouter(t, h)

	w := serve(r, http.MethodGet, "/api/v1/jobs")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Jobs []Record `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, "a", list.Jobs[0].ID)

	w = serve(r, http.MethodGet, "/api/v1/jobs/a")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"backendJobId":"remote-a"`)

	w = serve(r, http.MethodGet, "/api/v1/jobs/zzz")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerDeleteAndClear(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, 60)
	h.seed(t, pendingRecord("a"))
	h.seed(t, pendingRecord("b"))
	r := newTestRouter(t, h)

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodDelete, "/api/v1/jobs/a").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodDelete, "/api/v1/jobs/a").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodDelete, "/api/v1/jobs").Code)

	records, err := h.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHandlerResult(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, 60)
	r := newTestRouter(t, h)

	h.seed(t, pendingRecord("running"))
	w := serve(r, http.MethodGet, "/api/v1/jobs/running/result")
	assert.Equal(t, http.StatusConflict, w.Code)

	done := pendingRecord("done")
	result := MockResult()
	done.Status = StatusDone
	done.Result = &result
	h.seed(t, done)
	w = serve(r, http.MethodGet, "/api/v1/jobs/done/result")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"circularity_score":67`)

	_, err := h.archive.Put(context.Background(), object.ResultKey("done"), "application/json", strings.NewReader(`{"archived":true}`))
	require.NoError(t, err)
	w = serve(r, http.MethodGet, "/api/v1/jobs/done/result")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"archived":true}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/v1/jobs/nope/result").Code)
}
