package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGSlot stores documents in the kv_store table.
type PGSlot struct {
	DB *sql.DB
}

// NewPGSlot wraps an open database. The kv_store migration must already be applied.
func NewPGSlot(db *sql.DB) *PGSlot {
	return &PGSlot{DB: db}
}

func (s *PGSlot) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv_store load %s: %w", key, err)
	}
	return value, nil
}

func (s *PGSlot) Save(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO kv_store (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("kv_store save %s: %w", key, err)
	}
	return nil
}

func (s *PGSlot) Delete(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("kv_store delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *PGSlot) Close() error { return nil }

var _ Slot = (*PGSlot)(nil)
