package memory

import (
	"context"
	"sync"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/storage"
)

// GuardEvaluationStore is an in-memory implementation of storage.GuardEvaluationStore.
// Evaluations of the newest runs up to the capacity are kept.
type GuardEvaluationStore struct {
	mu       sync.RWMutex
	byRun    map[string][]domain.GuardEvaluationRecord
	runs     []string // first-seen order
	capacity int
}

// NewGuardEvaluationStore creates a new in-memory guard evaluation store.
func NewGuardEvaluationStore(opts ...Option) *GuardEvaluationStore {
	return &GuardEvaluationStore{
		byRun:    make(map[string][]domain.GuardEvaluationRecord),
		capacity: newOptions(opts).capacity,
	}
}

// InsertBulk adds evaluations atomically. Rejects the batch if any record lacks a run ID.
func (s *GuardEvaluationStore) InsertBulk(_ context.Context, records []*domain.GuardEvaluationRecord) error {
	for _, r := range records {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if _, seen := s.byRun[r.RunID]; !seen {
			s.runs = append(s.runs, r.RunID)
		}
		s.byRun[r.RunID] = append(s.byRun[r.RunID], *r)
	}
	for len(s.runs) > s.capacity {
		delete(s.byRun, s.runs[0])
		s.runs = s.runs[1:]
	}
	return nil
}

// GetByRunID retrieves evaluations of a run in insertion order.
func (s *GuardEvaluationStore) GetByRunID(_ context.Context, runID string) ([]*domain.GuardEvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byRun[runID]
	result := make([]*domain.GuardEvaluationRecord, len(stored))
	for i := range stored {
		recordCopy := stored[i]
		result[i] = &recordCopy
	}
	return result, nil
}

var _ storage.GuardEvaluationStore = (*GuardEvaluationStore)(nil)
