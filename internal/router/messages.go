// Package router dispatches UI messages to the job coordinator and settings.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lca-companion/internal/jobs"
	"lca-companion/internal/settings"
)

// Action names as sent by UI surfaces.
const (
	ActionSubmitJob       = "submitJob"
	ActionGetJobStatus    = "getJobStatus"
	ActionCancelJob       = "cancelJob"
	ActionGetMockResponse = "getMockResponse"
	ActionListJobs        = "listJobs"
	ActionDeleteJob       = "deleteJob"
	ActionClearJobs       = "clearJobs"
	ActionSaveSettings    = "saveSettings"
	ActionGetSettings     = "getSettings"
	ActionPingBackend     = "pingBackend"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrMissingJobID  = errors.New("jobId is required")
)

// Request is one of the message variants below.
type Request interface {
	Action() string
}

// SubmitJob asks for a new analysis. A nil MockMode falls back to the saved default.
type SubmitJob struct {
	Payload  jobs.Payload
	MockMode *bool
}

type GetJobStatus struct{ JobID string }

type CancelJob struct{ JobID string }

type GetMockResponse struct{}

type ListJobs struct{}

type DeleteJob struct{ JobID string }

type ClearJobs struct{}

type SaveSettings struct{ Settings settings.Settings }

type GetSettings struct{}

type PingBackend struct{}

func (SubmitJob) Action() string       { return ActionSubmitJob }
func (GetJobStatus) Action() string    { return ActionGetJobStatus }
func (CancelJob) Action() string       { return ActionCancelJob }
func (GetMockResponse) Action() string { return ActionGetMockResponse }
func (ListJobs) Action() string        { return ActionListJobs }
func (DeleteJob) Action() string       { return ActionDeleteJob }
func (ClearJobs) Action() string       { return ActionClearJobs }
func (SaveSettings) Action() string    { return ActionSaveSettings }
func (GetSettings) Action() string     { return ActionGetSettings }
func (PingBackend) Action() string     { return ActionPingBackend }

type envelope struct {
	Action   string             `json:"action"`
	Payload  *jobs.Payload      `json:"payload"`
	MockMode *bool              `json:"mockMode"`
	JobID    string             `json:"jobId"`
	Settings *settings.Settings `json:"settings"`
}

// Decode parses a wire message into its Request variant.
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	jobID := strings.TrimSpace(env.JobID)

	switch env.Action {
	case ActionSubmitJob:
		if env.Payload == nil {
			return nil, errors.New("payload is required")
		}
		return SubmitJob{Payload: *env.Payload, MockMode: env.MockMode}, nil
	case ActionGetJobStatus:
		if jobID == "" {
			return nil, ErrMissingJobID
		}
		return GetJobStatus{JobID: jobID}, nil
	case ActionCancelJob:
		if jobID == "" {
			return nil, ErrMissingJobID
		}
		return CancelJob{JobID: jobID}, nil
	case ActionGetMockResponse:
		return GetMockResponse{}, nil
	case ActionListJobs:
		return ListJobs{}, nil
	case ActionDeleteJob:
		if jobID == "" {
			return nil, ErrMissingJobID
		}
		return DeleteJob{JobID: jobID}, nil
	case ActionClearJobs:
		return ClearJobs{}, nil
	case ActionSaveSettings:
		if env.Settings == nil {
			return nil, errors.New("settings are required")
		}
		return SaveSettings{Settings: *env.Settings}, nil
	case ActionGetSettings:
		return GetSettings{}, nil
	case ActionPingBackend:
		return PingBackend{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
}

// Encode renders req as a wire message. Used by clients of the router.
func Encode(req Request) ([]byte, error) {
	env := envelope{Action: req.Action()}
	switch r := req.(type) {
	case SubmitJob:
		env.Payload = &r.Payload
		env.MockMode = r.MockMode
	case GetJobStatus:
		env.JobID = r.JobID
	case CancelJob:
		env.JobID = r.JobID
	case DeleteJob:
		env.JobID = r.JobID
	case SaveSettings:
		env.Settings = &r.Settings
	}
	return json.Marshal(env)
}

// Response mirrors the extension's sendMessage reply shape.
type Response struct {
	Success  bool               `json:"success"`
	Error    string             `json:"error,omitempty"`
	JobID    string             `json:"jobId,omitempty"`
	Job      *jobs.Record       `json:"job,omitempty"`
	Status   *jobs.StatusView   `json:"status,omitempty"`
	Jobs     []jobs.Record      `json:"jobs,omitempty"`
	Result   *jobs.Result       `json:"result,omitempty"`
	Settings *settings.Settings `json:"settings,omitempty"`
	OK       *bool              `json:"ok,omitempty"`
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}
