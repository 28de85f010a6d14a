// Package kv provides the small key-value slots the companion persists its state in.
// Each key holds one opaque document; callers own the encoding.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the key has never been saved or was deleted.
var ErrNotFound = errors.New("kv: key not found")

// Slot is a durable key-value store of whole documents.
type Slot interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
