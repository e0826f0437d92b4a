// Package notify keeps the set of user-facing notifications currently displayed.
package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/observability"
	"candy-gallery/internal/storage"
)

// Shower displays notifications. Implemented by Notifier.
type Shower interface {
	ShowKey(ctx context.Context, key string) bool
}

// Notifier deduplicates notifications by key.
// A key stays active until dismissed; showing it again is a no-op.
type Notifier struct {
	mu     sync.Mutex
	active map[string]domain.Notification

	store   storage.NotificationStore
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithStore appends every shown notification to store.
func WithStore(store storage.NotificationStore) Option {
	return func(n *Notifier) { n.store = store }
}

// WithMetrics counts shown notifications.
func WithMetrics(m *observability.Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// New creates a Notifier.
func New(logger *zap.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{
		active: make(map[string]domain.Notification),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var _ Shower = (*Notifier)(nil)

// Show displays n unless a notification with the same key is active.
// Returns true if n was shown.
func (s *Notifier) Show(ctx context.Context, n domain.Notification) bool {
	s.mu.Lock()
	if _, ok := s.active[n.Key]; ok {
		s.mu.Unlock()
		return false
	}
	n.ShownAt = s.now().UnixMilli()
	s.active[n.Key] = n
	s.mu.Unlock()

	s.logger.Error(n.Title,
		zap.String("key", n.Key),
		zap.String("description", n.Description),
		zap.String("severity", n.Severity.String()),
	)
	if s.metrics != nil {
		s.metrics.RecordNotification(n.Key)
	}
	if s.store != nil {
		event := &domain.NotificationEvent{
			ID:          uuid.NewString(),
			Key:         n.Key,
			Title:       n.Title,
			Description: n.Description,
			Severity:    n.Severity,
			ShownAt:     n.ShownAt,
		}
		if err := s.store.Insert(ctx, event); err != nil {
			s.logger.Warn("record notification", zap.String("key", n.Key), zap.Error(err))
		}
	}
	return true
}

// ShowKey shows the catalog notification for key.
func (s *Notifier) ShowKey(ctx context.Context, key string) bool {
	n, ok := Lookup(key)
	if !ok {
		s.logger.Warn("unknown notification key", zap.String("key", key))
		return false
	}
	return s.Show(ctx, n)
}

// Dismiss closes the notification with key. Returns false if it was not active.
func (s *Notifier) Dismiss(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[key]; !ok {
		return false
	}
	delete(s.active, key)
	return true
}

// IsActive reports whether the notification with key is displayed.
func (s *Notifier) IsActive(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[key]
	return ok
}

// Active returns the displayed notifications, oldest first.
func (s *Notifier) Active() []domain.Notification {
	s.mu.Lock()
	out := make([]domain.Notification, 0, len(s.active))
	for _, n := range s.active {
		out = append(out, n)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ShownAt != out[j].ShownAt {
			return out[i].ShownAt < out[j].ShownAt
		}
		return out[i].Key < out[j].Key
	})
	return out
}
