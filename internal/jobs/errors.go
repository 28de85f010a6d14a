package jobs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound  = errors.New("job not found")
	ErrCancelled = errors.New(MessageCancelled)
)

// Messages persisted into Record.Error.
const (
	MessageCancelled       = "Cancelled by user"
	MessageBackendFallback = "Backend reported an error"
	MessageInterrupted     = "Submission interrupted before the backend acknowledged it"

	timeoutPrefix = "Polling timed out after "
)

func timeoutMessage(attempts int) string {
	return fmt.Sprintf("%s%d attempts", timeoutPrefix, attempts)
}

func isTimeoutMessage(msg string) bool {
	return strings.HasPrefix(msg, timeoutPrefix)
}

// BackendError is a failure reported by the backend itself, or a rejected submission.
type BackendError struct {
	JobID   string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("job %s: %s", e.JobID, e.Message)
}

// TimeoutError means the poll loop ran out of attempts.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string { return e.Message }
