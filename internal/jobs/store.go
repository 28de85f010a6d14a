package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"lca-companion/internal/shared/storage/kv"
)

// StorageKey is the slot key holding the whole job collection.
const StorageKey = "lca_jobs"

// errNoChange, returned from an Update callback, leaves the record untouched.
var errNoChange = errors.New("no change")

// Store persists the ordered job collection as one JSON document.
// Every mutation holds mu across its read-modify-write so concurrent poll
// loops cannot overwrite each other's records.
type Store struct {
	slot kv.Slot
	now  func() time.Time

	mu sync.Mutex
}

// NewStore wraps slot.
func NewStore(slot kv.Slot) *Store {
	return &Store{slot: slot, now: func() time.Time { return time.Now().UTC() }}
}

// List returns every record in insertion order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns the record with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}
	if i := indexOf(records, id); i >= 0 {
		return records[i], nil
	}
	return Record{}, ErrNotFound
}

// Upsert inserts rec, or overwrites the record with the same id in place.
// UpdatedAt never moves backwards for an existing id.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	if i := indexOf(records, rec.ID); i >= 0 {
		rec.UpdatedAt = later(rec.UpdatedAt, records[i].UpdatedAt)
		records[i] = rec
	} else {
		records = append(records, rec)
	}
	return s.save(ctx, records)
}

// Update applies fn to the record with id and persists the result with a fresh UpdatedAt.
// changed is false when fn returned errNoChange.
func (s *Store) Update(ctx context.Context, id string, fn func(*Record) error) (rec Record, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load(ctx)
	if err != nil {
		return Record{}, false, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return Record{}, false, ErrNotFound
	}
	next := records[i]
	if err := fn(&next); err != nil {
		if errors.Is(err, errNoChange) {
			return records[i], false, nil
		}
		return records[i], false, err
	}
	next.ID = id
	next.UpdatedAt = later(s.now(), records[i].UpdatedAt)
	records[i] = next
	if err := s.save(ctx, records); err != nil {
		return Record{}, false, err
	}
	return next, true, nil
}

// RemoveWhere deletes every record matching pred and returns how many were removed.
func (s *Store) RemoveWhere(ctx context.Context, pred func(Record) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	kept := records[:0]
	for _, r := range records {
		if !pred(r) {
			kept = append(kept, r)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(ctx, kept)
}

// Clear drops the whole collection.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.slot.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear jobs: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) ([]Record, error) {
	raw, err := s.slot.Load(ctx, StorageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, records []Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode jobs: %w", err)
	}
	if err := s.slot.Save(ctx, StorageKey, raw); err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	return nil
}

func indexOf(records []Record, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

func later(a, b time.Time) time.Time {
	if a.Before(b) {
		return b
	}
	return a
}
