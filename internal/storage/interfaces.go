package storage

import (
	"context"

	"candy-gallery/internal/domain"
)

// RefreshRunStore provides access to refresh_runs storage.
type RefreshRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, r *domain.RefreshRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.RefreshRun, error)

	// ListRecent retrieves up to limit runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.RefreshRun, error)
}

// NotificationStore provides access to the notification log.
type NotificationStore interface {
	// Insert appends a notification event. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, e *domain.NotificationEvent) error

	// ListRecent retrieves up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.NotificationEvent, error)
}

// GuardEvaluationStore provides access to guard_evaluations storage.
type GuardEvaluationStore interface {
	// InsertBulk adds the evaluations of one run.
	InsertBulk(ctx context.Context, records []*domain.GuardEvaluationRecord) error

	// GetByRunID retrieves evaluations of a run in insertion order.
	GetByRunID(ctx context.Context, runID string) ([]*domain.GuardEvaluationRecord, error)
}
