package workerproc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lca-companion/internal/queue"
	"lca-companion/internal/shared/storage/object"
)

type memStore struct {
	objects map[string][]byte
	err     error
}

func (m *memStore) Put(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return int64(len(data)), nil
}

func (m *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		unrecoverable bool
	}{
		{name: "empty", body: "  ", unrecoverable: true},
		{name: "bad json", body: "{bad-json", unrecoverable: true},
		{name: "missing job", body: `{"status":"done"}`, unrecoverable: true},
		{name: "future version", body: `{"jobId":"a","version":99}`, unrecoverable: true},
		{name: "traversal id", body: `{"jobId":"../../etc","status":"done"}`, unrecoverable: true},
		{name: "valid", body: `{"jobId":"a","status":"done","version":1}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, meta, err := ParseMessage(tt.body)
			if !tt.unrecoverable {
				require.NoError(t, err)
				assert.Equal(t, len(tt.body), meta.BodyLen)
				assert.Len(t, meta.BodySHA, 64)
				return
			}
			require.Error(t, err)
			assert.True(t, Unrecoverable(err))
		})
	}
}

func TestEventKey(t *testing.T) {
	key := EventKey(queue.Message{JobID: "job-1", Status: "done", OccurredAt: "2026-03-01T10:20:30.5Z"})
	assert.Equal(t, "events/job-1/20260301T102030.500000000Z-done.json", key)

	key = EventKey(queue.Message{JobID: "a/b", OccurredAt: "yesterday:noon"})
	assert.Equal(t, "events/a_b/yesterdaynoon-unknown.json", key)
}

func TestHandleMessageRecordsEvent(t *testing.T) {
	store := &memStore{}
	body, err := queue.EncodeMessage(queue.Message{JobID: "job-9", Status: "error", Error: "Cancelled by user", OccurredAt: "2026-03-01T10:20:30Z"})
	require.NoError(t, err)

	msg, err := Recorder{Store: store}.HandleMessage(context.Background(), string(body))
	require.NoError(t, err)
	assert.Equal(t, "job-9", msg.JobID)

	stored, ok := store.objects[EventKey(msg)]
	require.True(t, ok)
	assert.Contains(t, string(stored), "Cancelled by user")
}

func TestHandleMessageStoreFailureIsRetryable(t *testing.T) {
	store := &memStore{err: errors.New("bucket unavailable")}
	body, err := queue.EncodeMessage(queue.Message{JobID: "job-9", Status: "done"})
	require.NoError(t, err)

	_, err = Recorder{Store: store}.HandleMessage(context.Background(), string(body))
	require.Error(t, err)
	assert.False(t, Unrecoverable(err))

	var procErr ErrProcess
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, "job-9", procErr.JobID)
}

func TestHandleMessageWithoutStore(t *testing.T) {
	_, err := Recorder{}.HandleMessage(context.Background(), `{"jobId":"x","status":"done"}`)
	require.Error(t, err)
	assert.False(t, Unrecoverable(err))
}
