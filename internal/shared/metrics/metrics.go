package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	jobsSubmittedTotal atomic.Uint64
	jobsCompletedTotal atomic.Uint64
	jobsFailedTotal    atomic.Uint64
	jobsCancelledTotal atomic.Uint64
	jobsTimedOutTotal  atomic.Uint64
	mockJobsTotal      atomic.Uint64

	pollAttemptsTotal   atomic.Uint64
	pollTransientErrors atomic.Uint64

	eventsReceivedTotal       atomic.Uint64
	eventsRecordedTotal       atomic.Uint64
	eventsFailedTotal         atomic.Uint64
	eventsDroppedInvalidTotal atomic.Uint64

	httpPanicsTotal atomic.Uint64

	jobDuration = newHistogram([]float64{1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000, 600000})
)

// IncJobsSubmitted increments the submitted counter.
func IncJobsSubmitted() { jobsSubmittedTotal.Add(1) }

// IncJobsCompleted increments the completed counter.
func IncJobsCompleted() { jobsCompletedTotal.Add(1) }

// IncJobsFailed increments the failed counter.
func IncJobsFailed() { jobsFailedTotal.Add(1) }

// IncJobsCancelled increments the cancelled counter.
func IncJobsCancelled() { jobsCancelledTotal.Add(1) }

// IncJobsTimedOut increments the timed-out counter.
func IncJobsTimedOut() { jobsTimedOutTotal.Add(1) }

// IncMockJobs increments the mock submission counter.
func IncMockJobs() { mockJobsTotal.Add(1) }

// IncPollAttempts increments the status poll counter.
func IncPollAttempts() { pollAttemptsTotal.Add(1) }

// IncPollTransientErrors increments the counter of polls that failed and were rescheduled.
func IncPollTransientErrors() { pollTransientErrors.Add(1) }

// IncEventsReceived increments the counter of job events pulled from the queue.
func IncEventsReceived() { eventsReceivedTotal.Add(1) }

// IncEventsRecorded increments the counter of job events written to the archive.
func IncEventsRecorded() { eventsRecordedTotal.Add(1) }

// IncEventsFailed increments the counter of job events left on the queue for retry.
func IncEventsFailed() { eventsFailedTotal.Add(1) }

// IncEventsDroppedInvalid increments the counter of undecodable job events deleted.
func IncEventsDroppedInvalid() { eventsDroppedInvalidTotal.Add(1) }

// IncHTTPPanics increments the counter of handler panics recovered by the server.
func IncHTTPPanics() { httpPanicsTotal.Add(1) }

// ObserveJobDurationMs records the wall time from submit to a terminal state.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "lca_jobs_submitted_total", "Total jobs submitted to the backend", jobsSubmittedTotal.Load())
	writeCounter(&buf, "lca_jobs_completed_total", "Total jobs completed with a result", jobsCompletedTotal.Load())
	writeCounter(&buf, "lca_jobs_failed_total", "Total jobs that ended in error", jobsFailedTotal.Load())
	writeCounter(&buf, "lca_jobs_cancelled_total", "Total jobs cancelled by the user", jobsCancelledTotal.Load())
	writeCounter(&buf, "lca_jobs_timed_out_total", "Total jobs that exhausted their poll attempts", jobsTimedOutTotal.Load())
	writeCounter(&buf, "lca_mock_jobs_total", "Total mock submissions", mockJobsTotal.Load())
	writeCounter(&buf, "lca_poll_attempts_total", "Total status polls issued", pollAttemptsTotal.Load())
	writeCounter(&buf, "lca_poll_transient_errors_total", "Total polls rescheduled after a transient failure", pollTransientErrors.Load())
	writeCounter(&buf, "lca_events_received_total", "Total job events received by the worker", eventsReceivedTotal.Load())
	writeCounter(&buf, "lca_events_recorded_total", "Total job events recorded", eventsRecordedTotal.Load())
	writeCounter(&buf, "lca_events_failed_total", "Total job events that failed and will be retried", eventsFailedTotal.Load())
	writeCounter(&buf, "lca_events_dropped_invalid_total", "Total undecodable job events deleted", eventsDroppedInvalidTotal.Load())
	writeCounter(&buf, "lca_http_panics_total", "Total handler panics recovered", httpPanicsTotal.Load())
	writeHistogram(&buf, "lca_job_duration_ms", "Job duration in milliseconds", jobDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value in the first bucket that holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
