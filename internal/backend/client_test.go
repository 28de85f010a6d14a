package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lca-companion/internal/jobs"
	"lca-companion/internal/settings"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(settings.Settings{BaseURL: srv.URL + "/", APIKey: "secret"}, 5*time.Second)
	require.NoError(t, err)
	return c, srv
}

func TestNewRequiresConfiguration(t *testing.T) {
	_, err := New(settings.Settings{BaseURL: "https://lca.test"}, time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(settings.Settings{APIKey: "k"}, time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)

	b, err := Factory(time.Second)(settings.Settings{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, b)
}

func TestSubmitJob(t *testing.T) {
	var got jobs.Payload
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/lca/submit", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"job_id":"job-123","status":"accepted"}`)
	})

	id, err := c.SubmitJob(context.Background(), jobs.Payload{
		JobID:   "local-1",
		URL:     "https://example.com",
		RawText: "hello",
		Options: jobs.Options{RequireSelenium: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-123", id)
	assert.Equal(t, "local-1", got.JobID)
	assert.True(t, got.Options.RequireSelenium)
}

func TestSubmitJobSendsWireFieldNames(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{
			"job_id":"a","url":"u","raw_text":"t","title":"T",
			"user_inputs":{"material":"steel","recycled_percent":null,"energy_kwh":null,"transport_km":null},
			"options":{"require_selenium":false}
		}`, string(body))
		_, _ = io.WriteString(w, `{"status":"accepted"}`)
	})

	id, err := c.SubmitJob(context.Background(), jobs.Payload{
		JobID: "a", URL: "u", RawText: "t", Title: "T",
		UserInputs: jobs.UserInputs{Material: "steel"},
	})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestGetStatus(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     jobs.Status
		progress *int
		errMsg   string
	}{
		{name: "pending", body: `{"job_id":"x","status":"pending"}`, want: jobs.StatusPending},
		{name: "queued maps to pending", body: `{"status":"queued"}`, want: jobs.StatusPending},
		{name: "running with progress", body: `{"status":"running","progress":42}`, want: jobs.StatusRunning, progress: intPtr(42)},
		{name: "fractional progress rounds", body: `{"status":"running","progress":41.6}`, want: jobs.StatusRunning, progress: intPtr(42)},
		{name: "progress clamps", body: `{"status":"running","progress":140}`, want: jobs.StatusRunning, progress: intPtr(100)},
		{name: "done", body: `{"status":"done","progress":100}`, want: jobs.StatusDone, progress: intPtr(100)},
		{name: "completed maps to done", body: `{"status":"COMPLETED"}`, want: jobs.StatusDone},
		{name: "error with message", body: `{"status":"error","error":"bad material"}`, want: jobs.StatusError, errMsg: "bad material"},
		{name: "failed with message field", body: `{"status":"failed","message":"no text"}`, want: jobs.StatusError, errMsg: "no text"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/lca/status/job-123", r.URL.Path)
				_, _ = io.WriteString(w, tt.body)
			})
			st, err := c.GetStatus(context.Background(), "job-123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Status)
			assert.Equal(t, tt.progress, st.Progress)
			assert.Equal(t, tt.errMsg, st.Error)
		})
	}
}

func TestGetStatusEscapesID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lca/status/a%2Fb", r.URL.EscapedPath())
		_, _ = io.WriteString(w, `{"status":"running"}`)
	})
	_, err := c.GetStatus(context.Background(), "a/b")
	require.NoError(t, err)
}

func TestGetStatusUnknownStatusIsParseError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"sleeping"}`)
	})
	_, err := c.GetStatus(context.Background(), "x")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "status", perr.Op)
}

func TestGetResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lca/result/job-123", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"material":"PET","co2_kg":1.5,"circularity_score":60,"recycled_percent":20,"recommendations":["a","b"],"raw_json": {"k": "v", "n": 3}}`)
	})
	res, err := c.GetResult(context.Background(), "job-123")
	require.NoError(t, err)
	assert.Equal(t, jobs.Result{
		Material:         "PET",
		CO2Kg:            1.5,
		CircularityScore: 60,
		RecycledPercent:  20,
		Recommendations:  []string{"a", "b"},
		RawJSON:          json.RawMessage(`{"k":"v","n":3}`),
	}, res)
}

func TestNon2xxIsTransportError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	})
	_, err := c.GetResult(context.Background(), "x")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
	assert.Equal(t, "upstream down", terr.Body)
	assert.True(t, terr.Temporary())
	assert.Contains(t, err.Error(), "http status 502")
}

func TestMalformedBodyIsParseError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})
	_, err := c.SubmitJob(context.Background(), jobs.Payload{})

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	var terr *TransportError
	assert.False(t, errors.As(err, &terr))
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := New(settings.Settings{BaseURL: srv.URL, APIKey: "k"}, time.Second)
	require.NoError(t, err)
	srv.Close()

	_, err = c.GetStatus(context.Background(), "x")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Zero(t, terr.StatusCode)
	assert.Error(t, terr.Err)
}

func TestPingIsUnauthenticated(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lca/ping", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	ok, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPingNeedsOnlyBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false}`)
	}))
	defer srv.Close()

	ok, err := Ping(context.Background(), nil, srv.URL)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Ping(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClientCredentialsFlow(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"minted","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/lca/status/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer minted", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"status":"running"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(settings.Settings{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "id",
		ClientSecret: "shh",
	}, 5*time.Second)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		st, err := c.GetStatus(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusRunning, st.Status)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls), "token is cached between calls")
}

func TestTemporary(t *testing.T) {
	tests := []struct {
		name string
		err  *TransportError
		want bool
	}{
		{name: "500", err: &TransportError{StatusCode: 500}, want: true},
		{name: "429", err: &TransportError{StatusCode: 429}, want: true},
		{name: "404", err: &TransportError{StatusCode: 404}, want: false},
		{name: "refused", err: &TransportError{Err: errors.New("dial tcp: connection refused")}, want: true},
		{name: "deadline", err: &TransportError{Err: context.DeadlineExceeded}, want: true},
		{name: "other", err: &TransportError{Err: errors.New("bad url")}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Temporary())
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxErrorBody+10)
	assert.Len(t, truncate(long), maxErrorBody+3)
}

func intPtr(v int) *int { return &v }
