package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lca-companion/internal/jobs"
	"lca-companion/internal/settings"
)

func TestClientRoundTrip(t *testing.T) {
	coord := newFakeCoordinator()
	engine := newTestEngine(New(coord, &fakeSettings{}, nil))
	srv := httptest.NewServer(engine)
	defer srv.Close()

	client := NewClient(srv.URL+"/", "", time.Second)
	ctx := context.Background()

	resp, err := client.Send(ctx, SubmitJob{Payload: jobs.Payload{URL: "https://shop.example"}, MockMode: boolPtr(true)})
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, "job-1", resp.JobID)

	resp, err = client.Send(ctx, GetJobStatus{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusDone, resp.Status.Status)

	resp, err = client.Send(ctx, CancelJob{JobID: "missing"})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	resp, err = client.Send(ctx, SaveSettings{Settings: settings.Settings{MockMode: true}})
	require.NoError(t, err)
	assert.True(t, resp.Settings.MockMode)
}

func TestClientReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(newTestEngine(New(newFakeCoordinator(), &fakeSettings{}, nil)))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	_, err := client.Send(context.Background(), DeleteJob{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobId is required")
	assert.Contains(t, err.Error(), "400")
}

func TestClientSendsToken(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-LCA-Token")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok", time.Second).Send(context.Background(), ListJobs{})
	require.NoError(t, err)
	assert.Equal(t, "tok", seen)
}
