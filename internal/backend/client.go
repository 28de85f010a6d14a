package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"lca-companion/internal/jobs"
	"lca-companion/internal/settings"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 4 << 20
)

// Client calls the remote LCA analysis API.
type Client struct {
	baseURL string
	authed  *http.Client
	plain   *http.Client
}

// New builds a Client from s. Every call except Ping carries a bearer token:
// the static API key, or one minted by the client-credentials grant when
// s.TokenURL is set.
func New(s settings.Settings, timeout time.Duration) (*Client, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	plain := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, plain)

	var authed *http.Client
	if s.UsesClientCredentials() {
		cc := clientcredentials.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			TokenURL:     s.TokenURL,
		}
		authed = cc.Client(ctx)
	} else {
		authed = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: s.APIKey,
			TokenType:   "Bearer",
		}))
	}
	authed.Timeout = timeout

	return &Client{
		baseURL: strings.TrimRight(s.BaseURL, "/"),
		authed:  authed,
		plain:   plain,
	}, nil
}

// Factory adapts New to the coordinator's reload hook.
func Factory(timeout time.Duration) jobs.BackendFactory {
	return func(s settings.Settings) (jobs.Backend, error) {
		c, err := New(s, timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type statusResponse struct {
	JobID    string   `json:"job_id"`
	Status   string   `json:"status"`
	Progress *float64 `json:"progress"`
	Error    string   `json:"error"`
	Message  string   `json:"message"`
}

type pingResponse struct {
	OK bool `json:"ok"`
}

// SubmitJob posts payload and returns the backend-assigned job id, which may be empty.
func (c *Client) SubmitJob(ctx context.Context, payload jobs.Payload) (string, error) {
	var out submitResponse
	if err := c.do(ctx, c.authed, "submit", http.MethodPost, "/lca/submit", payload, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// GetStatus fetches the backend status of remoteID.
func (c *Client) GetStatus(ctx context.Context, remoteID string) (jobs.RemoteStatus, error) {
	var out statusResponse
	if err := c.do(ctx, c.authed, "status", http.MethodGet, "/lca/status/"+url.PathEscape(remoteID), nil, &out); err != nil {
		return jobs.RemoteStatus{}, err
	}
	status, ok := mapStatus(out.Status)
	if !ok {
		return jobs.RemoteStatus{}, &ParseError{Op: "status", Err: fmt.Errorf("unknown status %q", out.Status)}
	}
	rs := jobs.RemoteStatus{Status: status, Error: out.Error}
	if rs.Error == "" {
		rs.Error = out.Message
	}
	if out.Progress != nil {
		p := clampProgress(*out.Progress)
		rs.Progress = &p
	}
	return rs, nil
}

// GetResult fetches the analysis result of remoteID.
func (c *Client) GetResult(ctx context.Context, remoteID string) (jobs.Result, error) {
	var out jobs.Result
	if err := c.do(ctx, c.authed, "result", http.MethodGet, "/lca/result/"+url.PathEscape(remoteID), nil, &out); err != nil {
		return jobs.Result{}, err
	}
	if len(out.RawJSON) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, out.RawJSON); err != nil {
			return jobs.Result{}, &ParseError{Op: "result", Err: err}
		}
		out.RawJSON = compact.Bytes()
	}
	return out, nil
}

// Ping checks backend reachability without credentials.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	return Ping(ctx, c.plain, c.baseURL)
}

// PingFunc returns a check of the backend named by the given settings.
func PingFunc(timeout time.Duration) func(context.Context, settings.Settings) (bool, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := &http.Client{Timeout: timeout}
	return func(ctx context.Context, s settings.Settings) (bool, error) {
		return Ping(ctx, hc, s.BaseURL)
	}
}

// Ping checks reachability of the backend at baseURL. Only the base URL is required.
func Ping(ctx context.Context, hc *http.Client, baseURL string) (bool, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return false, ErrNotConfigured
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	c := &Client{baseURL: baseURL, plain: hc}
	var out pingResponse
	if err := c.do(ctx, hc, "ping", http.MethodGet, "/lca/ping", nil, &out); err != nil {
		return false, err
	}
	return out.OK, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("lca %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{Op: op, Err: err}
	}
	return nil
}

// mapStatus folds the backend's status vocabulary onto the four job states.
func mapStatus(raw string) (jobs.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "queued", "accepted", "submitted":
		return jobs.StatusPending, true
	case "running", "processing", "in_progress":
		return jobs.StatusRunning, true
	case "done", "completed", "complete", "succeeded":
		return jobs.StatusDone, true
	case "error", "failed", "failure":
		return jobs.StatusError, true
	}
	return "", false
}

func clampProgress(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	p := int(math.Round(v))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

var _ jobs.Backend = (*Client)(nil)
