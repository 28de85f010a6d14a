package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("object: not found")

// ObjectStore saves and retrieves archived documents by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ResultKey returns the archive key for a job's result document.
func ResultKey(jobID string) string {
	return "results/" + jobID + ".json"
}
