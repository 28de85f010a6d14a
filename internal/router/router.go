package router

import (
	"context"
	"errors"
	"fmt"

	"lca-companion/internal/jobs"
	"lca-companion/internal/settings"
	"lca-companion/internal/shared/telemetry"
)

// Coordinator is the subset of the job coordinator the router drives.
type Coordinator interface {
	Submit(ctx context.Context, payload jobs.Payload, mockMode bool) (jobs.Record, error)
	GetStatus(ctx context.Context, id string) (jobs.StatusView, error)
	Cancel(ctx context.Context, id string) (jobs.Record, error)
	GetMockResponse() jobs.Result
	List(ctx context.Context) ([]jobs.Record, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// SettingsStore reads and persists user settings.
type SettingsStore interface {
	Current() settings.Settings
	Save(ctx context.Context, in settings.Settings) (settings.Settings, error)
}

// Pinger checks whether the configured backend answers its health route.
type Pinger func(ctx context.Context, s settings.Settings) (bool, error)

// Router maps requests onto coordinator and settings operations.
type Router struct {
	Jobs     Coordinator
	Settings SettingsStore
	Ping     Pinger
}

// New constructs a Router. ping may be nil, in which case pingBackend reports not ok.
func New(coord Coordinator, store SettingsStore, ping Pinger) *Router {
	return &Router{Jobs: coord, Settings: store, Ping: ping}
}

// Dispatch runs req and always returns a response; failures set Success=false.
func (r *Router) Dispatch(ctx context.Context, req Request) Response {
	switch m := req.(type) {
	case SubmitJob:
		return r.submit(ctx, m)
	case GetJobStatus:
		view, err := r.Jobs.GetStatus(ctx, m.JobID)
		if err != nil {
			return failure(err)
		}
		return Response{Success: true, JobID: m.JobID, Status: &view}
	case CancelJob:
		rec, err := r.Jobs.Cancel(ctx, m.JobID)
		if err != nil {
			return failure(err)
		}
		return Response{Success: true, JobID: rec.ID, Job: &rec}
	case GetMockResponse:
		result := r.Jobs.GetMockResponse()
		return Response{Success: true, Result: &result}
	case ListJobs:
		records, err := r.Jobs.List(ctx)
		if err != nil {
			return failure(err)
		}
		return Response{Success: true, Jobs: records}
	case DeleteJob:
		if err := r.Jobs.Delete(ctx, m.JobID); err != nil {
			return failure(err)
		}
		return Response{Success: true, JobID: m.JobID}
	case ClearJobs:
		if err := r.Jobs.Clear(ctx); err != nil {
			return failure(err)
		}
		return Response{Success: true}
	case SaveSettings:
		saved, err := r.Settings.Save(ctx, m.Settings)
		if err != nil {
			return failure(err)
		}
		redacted := saved.Redacted()
		return Response{Success: true, Settings: &redacted}
	case GetSettings:
		redacted := r.Settings.Current().Redacted()
		return Response{Success: true, Settings: &redacted}
	case PingBackend:
		return r.ping(ctx)
	case nil:
		return failure(errors.New("empty request"))
	default:
		return failure(fmt.Errorf("%w: %T", ErrUnknownAction, req))
	}
}

func (r *Router) submit(ctx context.Context, m SubmitJob) Response {
	mock := r.Settings.Current().MockMode
	if m.MockMode != nil {
		mock = *m.MockMode
	}
	rec, err := r.Jobs.Submit(ctx, m.Payload, mock)
	if err != nil {
		resp := failure(err)
		resp.JobID = rec.ID
		if rec.ID != "" {
			resp.Job = &rec
		}
		return resp
	}
	resp := Response{Success: true, JobID: rec.ID, Job: &rec}
	if rec.Result != nil {
		resp.Result = rec.Result
	}
	return resp
}

func (r *Router) ping(ctx context.Context) Response {
	ok := false
	if r.Ping != nil {
		var err error
		ok, err = r.Ping(ctx, r.Settings.Current())
		if err != nil {
			telemetry.Warn("router.ping_failed", map[string]any{"error": err})
		}
	}
	return Response{Success: true, OK: &ok}
}
