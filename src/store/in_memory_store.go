package store

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	rec.Image = append([]byte(nil), rec.Image...)

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.limit()
	out := make([]Record, 0, min(limit, len(s.records)))
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if q.matches(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

var _ HistoryStore = (*MemoryStore)(nil)
