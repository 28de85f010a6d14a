// Package workerproc records job status events pulled off the event queue.
package workerproc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"lca-companion/internal/queue"
	"lca-companion/internal/shared/storage/object"
	"lca-companion/internal/shared/util"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	return MessageMeta{BodyLen: len(body), BodySHA: util.SHA256Hex(body)}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingJobID indicates a message without a job id.
type ErrMissingJobID struct {
	Meta MessageMeta
}

func (e ErrMissingJobID) Error() string { return "missing job id" }

// ErrProcess indicates recording failed after successful parsing.
type ErrProcess struct {
	JobID string
	Err   error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "record event"
	}
	return "record event: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether retrying the message can never succeed.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingJobID
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return msg, meta, ErrMissingJobID{Meta: meta}
	}
	if _, err := util.SanitizeKeySegment(msg.JobID); err != nil {
		return msg, meta, ErrDecode{Meta: meta, Err: err}
	}
	return msg, meta, nil
}

// EventKey is where msg is stored: events/<jobID>/<occurredAt>-<status>.json.
// Redelivered messages map to the same key.
func EventKey(msg queue.Message) string {
	stamp := msg.OccurredAt
	if ts, err := time.Parse(time.RFC3339Nano, msg.OccurredAt); err == nil {
		stamp = ts.UTC().Format("20060102T150405.000000000Z")
	}
	stamp = strings.NewReplacer(":", "", "/", "_").Replace(stamp)
	status := msg.Status
	if status == "" {
		status = "unknown"
	}
	jobID, err := util.SanitizeKeySegment(msg.JobID)
	if err != nil {
		jobID = util.SHA256Hex(msg.JobID)
	}
	return "events/" + jobID + "/" + stamp + "-" + status + ".json"
}

// Recorder writes job events into an object store.
type Recorder struct {
	Store object.ObjectStore
}

// HandleMessage parses body and records it. Errors satisfying Unrecoverable
// mean the message should be dropped.
func (r Recorder) HandleMessage(ctx context.Context, body string) (queue.Message, error) {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return msg, err
	}
	if r.Store == nil {
		return msg, ErrProcess{JobID: msg.JobID, Err: errors.New("event store not configured")}
	}

	doc, err := json.Marshal(msg)
	if err != nil {
		return msg, ErrProcess{JobID: msg.JobID, Err: err}
	}
	if _, err := r.Store.Put(ctx, EventKey(msg), "application/json", strings.NewReader(string(doc))); err != nil {
		return msg, ErrProcess{JobID: msg.JobID, Err: err}
	}
	return msg, nil
}
