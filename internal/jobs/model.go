package jobs

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusDone, StatusError:
		return true
	}
	return false
}

// Payload is the page analysis request sent to the backend. Field names follow the backend wire format.
type Payload struct {
	JobID      string     `json:"job_id"`
	URL        string     `json:"url"`
	RawText    string     `json:"raw_text"`
	Title      string     `json:"title"`
	UserInputs UserInputs `json:"user_inputs"`
	Options    Options    `json:"options"`
}

// UserInputs are the optional overrides typed into the popup.
type UserInputs struct {
	Material        string   `json:"material"`
	RecycledPercent *float64 `json:"recycled_percent"`
	EnergyKWh       *float64 `json:"energy_kwh"`
	TransportKM     *float64 `json:"transport_km"`
}

// Options tune backend processing.
type Options struct {
	RequireSelenium bool `json:"require_selenium"`
}

// Result is the backend's analysis of a page.
type Result struct {
	Material         string   `json:"material"`
	CO2Kg            float64  `json:"co2_kg"`
	CircularityScore float64  `json:"circularity_score"`
	RecycledPercent  float64  `json:"recycled_percent"`
	Recommendations  []string `json:"recommendations"`
	// RawJSON is kept verbatim in compact form so it survives the store unchanged.
	RawJSON json.RawMessage `json:"raw_json,omitempty"`
}

// Record is the persisted state of one submission.
type Record struct {
	ID           string    `json:"id"`
	BackendJobID string    `json:"backendJobId,omitempty"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Payload      Payload   `json:"payload"`
	Status       Status    `json:"status"`
	Progress     *int      `json:"progress,omitempty"`
	Result       *Result   `json:"result,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Retries      int       `json:"retries"`
}

// RemoteStatus is one status poll response.
type RemoteStatus struct {
	Status   Status
	Progress *int
	Error    string
}

// StatusView is the getStatus projection of a record.
type StatusView struct {
	ID       string  `json:"id"`
	Status   Status  `json:"status"`
	Progress *int    `json:"progress,omitempty"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// View projects r for status queries.
func (r Record) View() StatusView {
	return StatusView{
		ID:       r.ID,
		Status:   r.Status,
		Progress: r.Progress,
		Result:   r.Result,
		Error:    r.Error,
	}
}

// Err returns the typed failure for an error record and nil otherwise.
func (r Record) Err() error {
	if r.Status != StatusError {
		return nil
	}
	switch {
	case r.Error == MessageCancelled:
		return ErrCancelled
	case isTimeoutMessage(r.Error):
		return &TimeoutError{Message: r.Error}
	default:
		return &BackendError{JobID: r.ID, Message: r.Error}
	}
}

func intPtr(v int) *int { return &v }
