package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"lca-companion/internal/settings"
)

// ErrNotConfigured is returned before any request when the base URL or credential is missing.
var ErrNotConfigured = settings.ErrNotConfigured

const maxErrorBody = 512

// TransportError is a network failure or a non-2xx response.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("lca %s: http status %d", e.Op, e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	return fmt.Sprintf("lca %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same request may succeed.
func (e *TransportError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return shouldRetry(e.Err)
	case e.StatusCode == 408 || e.StatusCode == 429:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// ParseError means the response body was not the expected shape.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("lca %s: parse response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof")
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
