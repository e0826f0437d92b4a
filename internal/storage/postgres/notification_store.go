package postgres

import (
	"context"
	"fmt"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/storage"
)

// NotificationStore implements storage.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *Pool
}

// NewNotificationStore creates a new NotificationStore.
func NewNotificationStore(pool *Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

var _ storage.NotificationStore = (*NotificationStore)(nil)

// Insert appends an event. Returns ErrDuplicateKey if id exists.
func (s *NotificationStore) Insert(ctx context.Context, e *domain.NotificationEvent) error {
	if e == nil || e.ID == "" || e.Key == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO notification_events (id, key, title, description, severity, shown_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query, e.ID, e.Key, e.Title, e.Description, string(e.Severity), e.ShownAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert notification event: %w", err)
	}
	return nil
}

// ListRecent retrieves up to limit events, newest first.
func (s *NotificationStore) ListRecent(ctx context.Context, limit int) ([]*domain.NotificationEvent, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	query := `
		SELECT id, key, title, description, severity, shown_at
		FROM notification_events
		ORDER BY shown_at DESC, created_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list notification events: %w", err)
	}
	defer rows.Close()

	var result []*domain.NotificationEvent
	for rows.Next() {
		var e domain.NotificationEvent
		var severity string
		if err := rows.Scan(&e.ID, &e.Key, &e.Title, &e.Description, &severity, &e.ShownAt); err != nil {
			return nil, fmt.Errorf("scan notification event: %w", err)
		}
		e.Severity = domain.Severity(severity)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification events: %w", err)
	}
	return result, nil
}
