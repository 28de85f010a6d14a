package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lca-companion/internal/shared/server/respond"
)

// Client sends messages to a running companion.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient builds a Client for the companion at baseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Send posts req and decodes the reply. A reply with Success=false is not an error.
func (c *Client) Send(ctx context.Context, req Request) (Response, error) {
	body, err := Encode(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode %s: %w", req.Action(), err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		httpReq.Header.Set("X-LCA-Token", c.Token)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", req.Action(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%s: read response: %w", req.Action(), err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr respond.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return Response{}, fmt.Errorf("%s: %s (%d)", req.Action(), apiErr.Error.Message, resp.StatusCode)
		}
		return Response{}, fmt.Errorf("%s: unexpected status %d", req.Action(), resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("%s: decode response: %w", req.Action(), err)
	}
	return out, nil
}
