package memory

import (
	"context"
	"sort"
	"sync"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/storage"
)

// RefreshRunStore is an in-memory implementation of storage.RefreshRunStore.
// Only the newest runs up to the capacity are kept.
type RefreshRunStore struct {
	mu       sync.RWMutex
	byID     map[string]*domain.RefreshRun
	order    []string // insertion order
	capacity int
}

// NewRefreshRunStore creates a new in-memory refresh run store.
func NewRefreshRunStore(opts ...Option) *RefreshRunStore {
	return &RefreshRunStore{
		byID:     make(map[string]*domain.RefreshRun),
		capacity: newOptions(opts).capacity,
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if id already exists.
func (s *RefreshRunStore) Insert(_ context.Context, r *domain.RefreshRun) error {
	if r == nil || r.ID == "" || !r.Outcome.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := copyRun(r)
	s.byID[r.ID] = runCopy
	s.order = append(s.order, r.ID)
	for len(s.order) > s.capacity {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// GetByID retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RefreshRunStore) GetByID(_ context.Context, id string) (*domain.RefreshRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

// ListRecent retrieves up to limit runs ordered by started_at DESC.
func (s *RefreshRunStore) ListRecent(_ context.Context, limit int) ([]*domain.RefreshRun, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RefreshRun, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		result = append(result, copyRun(s.byID[s.order[i]]))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt > result[j].StartedAt
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyRun(r *domain.RefreshRun) *domain.RefreshRun {
	runCopy := *r
	if r.Error != nil {
		msg := *r.Error
		runCopy.Error = &msg
	}
	return &runCopy
}

var _ storage.RefreshRunStore = (*RefreshRunStore)(nil)
