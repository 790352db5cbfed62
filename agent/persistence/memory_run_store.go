package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRunStore is an in-memory implementation of RunStore.
// Suitable for development and testing. Data is lost on restart.
type MemoryRunStore struct {
	runs   map[string]*RunRecord
	mu     sync.RWMutex
	closed bool
}

// NewMemoryRunStore creates a new in-memory run store
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*RunRecord)}
}

// Close closes the store
func (s *MemoryRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryRunStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// SaveRun persists a run record
func (s *MemoryRunStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if old, ok := s.runs[rec.ID]; ok && rec.CreatedAt.IsZero() {
		rec.CreatedAt = old.CreatedAt
	}
	rec.touch()
	s.runs[rec.ID] = rec.clone()
	return nil
}

// GetRun retrieves a run by ID
func (s *MemoryRunStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rec, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

// ListRuns retrieves runs matching the filter, newest first
func (s *MemoryRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if filter.matches(rec) {
			result = append(result, rec.clone())
		}
	}
	sortNewestFirst(result)
	return filter.page(result), nil
}

// DeleteRun removes a run from the store
func (s *MemoryRunStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.runs[runID]; !ok {
		return ErrNotFound
	}
	delete(s.runs, runID)
	return nil
}

// Cleanup removes runs last updated before now-olderThan
func (s *MemoryRunStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-olderThan)
	count := 0
	for id, rec := range s.runs {
		if rec.UpdatedAt.Before(cutoff) {
			delete(s.runs, id)
			count++
		}
	}
	return count, nil
}

func sortNewestFirst(records []*RunRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
