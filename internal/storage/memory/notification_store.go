package memory

import (
	"context"
	"sync"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/storage"
)

// NotificationStore is an in-memory implementation of storage.NotificationStore.
// Only the newest events up to the capacity are kept.
type NotificationStore struct {
	mu       sync.RWMutex
	ids      map[string]struct{}
	events   []domain.NotificationEvent
	capacity int
}

// NewNotificationStore creates a new in-memory notification log.
func NewNotificationStore(opts ...Option) *NotificationStore {
	return &NotificationStore{
		ids:      make(map[string]struct{}),
		capacity: newOptions(opts).capacity,
	}
}

// Insert appends an event. Returns ErrDuplicateKey if id already exists.
func (s *NotificationStore) Insert(_ context.Context, e *domain.NotificationEvent) error {
	if e == nil || e.ID == "" || e.Key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.ids[e.ID] = struct{}{}
	s.events = append(s.events, *e)
	for len(s.events) > s.capacity {
		delete(s.ids, s.events[0].ID)
		s.events = s.events[1:]
	}
	return nil
}

// ListRecent retrieves up to limit events, newest first.
func (s *NotificationStore) ListRecent(_ context.Context, limit int) ([]*domain.NotificationEvent, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.NotificationEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		eventCopy := s.events[i]
		result = append(result, &eventCopy)
	}
	return result, nil
}

var _ storage.NotificationStore = (*NotificationStore)(nil)
