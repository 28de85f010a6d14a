package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lca-companion/internal/queue"
	"lca-companion/internal/settings"
	"lca-companion/internal/shared/metrics"
	"lca-companion/internal/shared/storage/object"
	"lca-companion/internal/shared/telemetry"
)

const sideEffectTimeout = 10 * time.Second

// Backend is the remote analysis API.
type Backend interface {
	SubmitJob(ctx context.Context, payload Payload) (string, error)
	GetStatus(ctx context.Context, remoteID string) (RemoteStatus, error)
	GetResult(ctx context.Context, remoteID string) (Result, error)
}

// BackendFactory builds a Backend from the current settings.
type BackendFactory func(settings.Settings) (Backend, error)

// Deps are the collaborators of a Coordinator. Events and Archive are optional.
type Deps struct {
	Store   *Store
	Backend BackendFactory
	Events  queue.Client
	Archive object.ObjectStore
}

type pollTask struct {
	cancel context.CancelFunc
}

// Coordinator owns job state transitions and one poll loop per active job.
type Coordinator struct {
	store   *Store
	factory BackendFactory
	events  queue.Client
	archive object.ObjectStore
	cfg     Config

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	settings   settings.Settings
	backend    Backend
	backendErr error
	tasks      map[string]*pollTask
	closed     bool

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewCoordinator builds a Coordinator. Call Reload before submitting real jobs.
func NewCoordinator(deps Deps, cfg Config) *Coordinator {
	base, stop := context.WithCancel(context.Background())
	events := deps.Events
	if events == nil {
		events = queue.Nop{}
	}
	return &Coordinator{
		store:   deps.Store,
		factory: deps.Backend,
		events:  events,
		archive: deps.Archive,
		cfg:     cfg.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		sleep:   sleepContext,
		tasks:   make(map[string]*pollTask),
		base:    base,
		stop:    stop,
	}
}

// Reload swaps in new settings and rebuilds the backend client.
func (c *Coordinator) Reload(s settings.Settings) {
	var (
		backend Backend
		err     error
	)
	if s.Configured() && c.factory != nil {
		backend, err = c.factory(s)
	}

	c.mu.Lock()
	c.settings = s
	c.backend = backend
	c.backendErr = err
	c.mu.Unlock()

	fields := map[string]any{
		"base_url":   s.BaseURL,
		"configured": s.Configured(),
	}
	if err != nil {
		fields["err"] = err
		telemetry.Error("backend.reload_failed", fields)
		return
	}
	telemetry.Info("backend.reloaded", fields)
}

func (c *Coordinator) snapshot() (settings.Settings, Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings, c.backend, c.backendErr
}

// Submit creates a job and hands it to the backend, or answers from the canned
// result in mock mode. A failed submission is persisted as an error record and
// also returned.
func (c *Coordinator) Submit(ctx context.Context, payload Payload, mockMode bool) (Record, error) {
	if mockMode {
		return c.submitMock(ctx, payload)
	}

	cfg, backend, buildErr := c.snapshot()
	if !cfg.Configured() {
		return Record{}, settings.ErrNotConfigured
	}
	if buildErr != nil {
		return Record{}, fmt.Errorf("%w: %v", settings.ErrNotConfigured, buildErr)
	}
	if backend == nil {
		return Record{}, settings.ErrNotConfigured
	}

	id := c.newID()
	payload.JobID = id
	payload.Options.RequireSelenium = payload.Options.RequireSelenium || cfg.RequireSelenium

	now := c.now()
	rec := Record{
		ID:        id,
		URL:       payload.URL,
		Title:     payload.Title,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Upsert(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("create job: %w", err)
	}
	telemetry.Info("job.created", c.fields(ctx, rec, nil))

	remoteID, err := backend.SubmitJob(ctx, payload)
	// The outcome is committed even if the caller went away meanwhile.
	commitCtx := context.WithoutCancel(ctx)
	if err != nil {
		failed, _, commitErr := c.finish(commitCtx, id, func(r *Record) {
			r.Status = StatusError
			r.Error = err.Error()
		})
		if commitErr != nil {
			telemetry.Error("job.persist_failed", map[string]any{"job_id": id, "err": commitErr})
		}
		if failed.ID == "" {
			failed = rec
		}
		return failed, fmt.Errorf("submit job %s: %w", id, err)
	}
	if remoteID == "" {
		remoteID = id
	}

	rec, _, err = c.store.Update(commitCtx, id, func(r *Record) error {
		r.BackendJobID = remoteID
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("record backend id: %w", err)
	}
	metrics.IncJobsSubmitted()
	telemetry.Info("job.submitted", c.fields(commitCtx, rec, nil))

	if !rec.Status.Terminal() {
		c.startLoop(commitCtx, id, 0)
	}
	return rec, nil
}

func (c *Coordinator) submitMock(ctx context.Context, payload Payload) (Record, error) {
	id := c.newID()
	payload.JobID = id
	now := c.now()
	result := MockResult()
	rec := Record{
		ID:        id,
		URL:       payload.URL,
		Title:     payload.Title,
		Payload:   payload,
		Status:    StatusDone,
		Progress:  intPtr(100),
		Result:    &result,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Upsert(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("create mock job: %w", err)
	}
	metrics.IncMockJobs()
	telemetry.Info("job.mock", c.fields(ctx, rec, nil))
	return rec, nil
}

// PollOnce runs one status poll for id. again reports whether another attempt
// should follow after Backoff.Delay(attempt). Backend failures never surface as
// err; err is reserved for store failures.
func (c *Coordinator) PollOnce(ctx context.Context, id string, attempt int) (again bool, err error) {
	rec, err := c.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	if rec.Status.Terminal() {
		return false, nil
	}

	_, backend, buildErr := c.snapshot()
	if backend == nil {
		if buildErr == nil {
			buildErr = settings.ErrNotConfigured
		}
		return c.transient(ctx, rec, attempt, buildErr)
	}

	metrics.IncPollAttempts()
	remoteID := rec.BackendJobID
	if remoteID == "" {
		remoteID = rec.ID
	}

	st, err := backend.GetStatus(ctx, remoteID)
	if ctx.Err() != nil {
		return false, nil
	}
	if err != nil {
		return c.transient(ctx, rec, attempt, err)
	}

	switch st.Status {
	case StatusDone:
		result, err := backend.GetResult(ctx, remoteID)
		if ctx.Err() != nil {
			return false, nil
		}
		if err != nil {
			return c.transient(ctx, rec, attempt, fmt.Errorf("fetch result: %w", err))
		}
		_, _, err = c.finish(ctx, id, func(r *Record) {
			r.Status = StatusDone
			r.Result = &result
			r.Error = ""
			r.Progress = intPtr(100)
			if st.Progress != nil {
				r.Progress = st.Progress
			}
		})
		return false, err

	case StatusError:
		msg := st.Error
		if msg == "" {
			msg = MessageBackendFallback
		}
		_, _, err = c.finish(ctx, id, func(r *Record) {
			r.Status = StatusError
			r.Error = msg
		})
		return false, err
	}

	updated, changed, err := c.store.Update(ctx, id, func(r *Record) error {
		if r.Status.Terminal() {
			return errNoChange
		}
		r.Status = st.Status
		if st.Progress != nil {
			r.Progress = st.Progress
		}
		return nil
	})
	if err != nil {
		return true, err
	}
	if !changed {
		return false, nil
	}
	if updated.Status != rec.Status {
		telemetry.Info("job.status", c.fields(ctx, updated, map[string]any{
			"status_transition": string(rec.Status) + "->" + string(updated.Status),
			"attempt":           attempt,
		}))
	}
	return c.next(ctx, id, attempt)
}

// transient records a failed poll and reschedules within the attempt budget.
func (c *Coordinator) transient(ctx context.Context, rec Record, attempt int, cause error) (bool, error) {
	metrics.IncPollTransientErrors()
	fields := c.fields(ctx, rec, map[string]any{
		"attempt": attempt,
		"err":     cause,
	})
	// Retried either way; the tag only separates outages from hard failures in the logs.
	var temp interface{ Temporary() bool }
	if errors.As(cause, &temp) {
		fields["temporary"] = temp.Temporary()
	}
	telemetry.Warn("job.poll_failed", fields)
	_, changed, err := c.store.Update(ctx, rec.ID, func(r *Record) error {
		if r.Status.Terminal() {
			return errNoChange
		}
		r.Retries++
		return nil
	})
	if err != nil {
		return true, err
	}
	if !changed {
		return false, nil
	}
	return c.next(ctx, rec.ID, attempt)
}

// next times the job out when the following attempt would exceed the budget.
func (c *Coordinator) next(ctx context.Context, id string, attempt int) (bool, error) {
	if attempt+1 < c.cfg.MaxAttempts {
		return true, nil
	}
	_, _, err := c.finish(ctx, id, func(r *Record) {
		r.Status = StatusError
		r.Error = timeoutMessage(c.cfg.MaxAttempts)
	})
	return false, err
}

// finish commits a terminal transition unless the record is already terminal.
func (c *Coordinator) finish(ctx context.Context, id string, apply func(*Record)) (Record, bool, error) {
	var from Status
	rec, changed, err := c.store.Update(ctx, id, func(r *Record) error {
		if r.Status.Terminal() {
			return errNoChange
		}
		from = r.Status
		apply(r)
		return nil
	})
	if err != nil || !changed {
		return rec, changed, err
	}
	c.onTerminal(ctx, from, rec)
	return rec, true, nil
}

func (c *Coordinator) onTerminal(ctx context.Context, from Status, rec Record) {
	fields := c.fields(ctx, rec, map[string]any{
		"status_transition": string(from) + "->" + string(rec.Status),
	})
	switch {
	case rec.Status == StatusDone:
		metrics.IncJobsCompleted()
		telemetry.Info("job.completed", fields)
	case rec.Error == MessageCancelled:
		metrics.IncJobsCancelled()
		telemetry.Info("job.cancelled", fields)
	case isTimeoutMessage(rec.Error):
		metrics.IncJobsTimedOut()
		fields["error"] = rec.Error
		telemetry.Warn("job.timed_out", fields)
	default:
		metrics.IncJobsFailed()
		fields["error"] = rec.Error
		telemetry.Warn("job.failed", fields)
	}
	metrics.ObserveJobDurationMs(float64(rec.UpdatedAt.Sub(rec.CreatedAt).Milliseconds()))

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	c.publish(sideCtx, rec)
	if rec.Status == StatusDone {
		c.archiveResult(sideCtx, rec)
	}
}

func (c *Coordinator) publish(ctx context.Context, rec Record) {
	err := c.events.Send(ctx, queue.Message{
		JobID:        rec.ID,
		BackendJobID: rec.BackendJobID,
		Status:       string(rec.Status),
		Error:        rec.Error,
		OccurredAt:   rec.UpdatedAt.Format(time.RFC3339),
		Version:      queue.MessageVersion,
	})
	if err != nil {
		telemetry.Error("job.event_failed", c.fields(ctx, rec, map[string]any{"err": err}))
	}
}

func (c *Coordinator) archiveResult(ctx context.Context, rec Record) {
	if c.archive == nil || rec.Result == nil {
		return
	}
	raw, err := json.Marshal(rec.Result)
	if err == nil {
		_, err = c.archive.Put(ctx, object.ResultKey(rec.ID), "application/json", bytes.NewReader(raw))
	}
	if err != nil {
		telemetry.Error("job.archive_failed", c.fields(ctx, rec, map[string]any{"err": err}))
	}
}

// GetStatus returns the current status projection for id.
func (c *Coordinator) GetStatus(ctx context.Context, id string) (StatusView, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return StatusView{}, err
	}
	return rec.View(), nil
}

// Get returns the full record for id.
func (c *Coordinator) Get(ctx context.Context, id string) (Record, error) {
	return c.store.Get(ctx, id)
}

// Cancel marks id as cancelled whatever its current state and stops its poll loop.
// Any result already attached is kept.
func (c *Coordinator) Cancel(ctx context.Context, id string) (Record, error) {
	var (
		from        Status
		wasCanceled bool
	)
	rec, _, err := c.store.Update(ctx, id, func(r *Record) error {
		from = r.Status
		wasCanceled = r.Status == StatusError && r.Error == MessageCancelled
		r.Status = StatusError
		r.Error = MessageCancelled
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	c.stopTask(id)
	if !wasCanceled {
		c.onTerminal(ctx, from, rec)
	}
	return rec, nil
}

// GetMockResponse returns the canned result without touching any job.
func (c *Coordinator) GetMockResponse() Result {
	return MockResult()
}

// List returns every job, newest first.
func (c *Coordinator) List(ctx context.Context) ([]Record, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Delete removes id from the store and stops its poll loop.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	c.stopTask(id)
	n, err := c.store.RemoveWhere(ctx, func(r Record) bool { return r.ID == id })
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	telemetry.Info("job.deleted", map[string]any{"job_id": id, "request_id": requestIDFromContext(ctx)})
	return nil
}

// Clear removes every job and stops every poll loop.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.mu.Lock()
	for id, t := range c.tasks {
		t.cancel()
		delete(c.tasks, id)
	}
	c.mu.Unlock()
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	telemetry.Info("job.cleared", map[string]any{"request_id": requestIDFromContext(ctx)})
	return nil
}

// Resume restarts poll loops for jobs left non-terminal by a previous process.
// Jobs that never got a backend id cannot be polled and are failed instead.
func (c *Coordinator) Resume(ctx context.Context) (int, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, rec := range records {
		if rec.Status.Terminal() {
			continue
		}
		if rec.BackendJobID == "" {
			if _, _, err := c.finish(ctx, rec.ID, func(r *Record) {
				r.Status = StatusError
				r.Error = MessageInterrupted
			}); err != nil {
				return resumed, err
			}
			continue
		}
		c.startLoop(ctx, rec.ID, 0)
		resumed++
	}
	telemetry.Info("job.resumed", map[string]any{"count": resumed})
	return resumed, nil
}

// Shutdown stops every poll loop and waits for them to exit or ctx to expire.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stop()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the number of running poll loops.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

func (c *Coordinator) startLoop(parent context.Context, id string, attempt int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if prev, ok := c.tasks[id]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(detach(c.base, parent))
	task := &pollTask{cancel: cancel}
	c.tasks[id] = task
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.removeTask(id, task)
		c.run(ctx, id, attempt)
	}()
}

func (c *Coordinator) run(ctx context.Context, id string, attempt int) {
	for {
		again, err := c.PollOnce(ctx, id, attempt)
		if err != nil {
			telemetry.Error("job.poll_store_failed", map[string]any{"job_id": id, "attempt": attempt, "err": err})
		}
		if !again {
			return
		}
		if err := c.sleep(ctx, c.cfg.Backoff.Delay(attempt)); err != nil {
			return
		}
		attempt++
	}
}

func (c *Coordinator) stopTask(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tasks[id]; ok {
		t.cancel()
		delete(c.tasks, id)
	}
}

func (c *Coordinator) removeTask(id string, task *pollTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task.cancel()
	if c.tasks[id] == task {
		delete(c.tasks, id)
	}
}

func (c *Coordinator) fields(ctx context.Context, rec Record, extra map[string]any) map[string]any {
	fields := map[string]any{
		"job_id": rec.ID,
		"status": string(rec.Status),
	}
	if rec.BackendJobID != "" {
		fields["backend_job_id"] = rec.BackendJobID
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		fields["request_id"] = rid
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
