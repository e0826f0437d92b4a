package memory

import (
	"context"
	"errors"
	"testing"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/storage"
)

func TestNotificationStore_InsertAndList(t *testing.T) {
	store := NewNotificationStore()
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3"} {
		err := store.Insert(ctx, &domain.NotificationEvent{
			ID:       id,
			Key:      "no-cm",
			Severity: domain.SeverityError,
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	events, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(events) != 2 || events[0].ID != "e3" || events[1].ID != "e2" {
		t.Errorf("unexpected events: %+v", events)
	}

	if err := store.Insert(ctx, &domain.NotificationEvent{ID: "e1", Key: "no-cm"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, &domain.NotificationEvent{ID: "e4"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNotificationStore_EvictsOldest(t *testing.T) {
	store := NewNotificationStore(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3"} {
		if err := store.Insert(ctx, &domain.NotificationEvent{ID: id, Key: "no-cm"}); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	events, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(events) != 2 || events[0].ID != "e3" || events[1].ID != "e2" {
		t.Fatalf("expected [e3 e2], got %+v", events)
	}
}
