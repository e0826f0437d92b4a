package memory

import (
	"context"
	"errors"
	"testing"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/storage"
)

func TestGuardEvaluationStore_InsertBulkAndGet(t *testing.T) {
	store := NewGuardEvaluationStore()
	ctx := context.Background()

	records := []*domain.GuardEvaluationRecord{
		{RunID: "run1", Label: "OGs", Allowed: false, Reason: "mint limit reached"},
		{RunID: "run1", Label: "public", Allowed: true, MaxAmount: 3},
		{RunID: "run2", Label: "default", Allowed: true, MaxAmount: 1},
	}
	if err := store.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 2 || got[0].Label != "OGs" || got[1].MaxAmount != 3 {
		t.Errorf("unexpected records: %+v", got)
	}

	empty, _ := store.GetByRunID(ctx, "missing")
	if len(empty) != 0 {
		t.Errorf("expected no records, got %d", len(empty))
	}
}

func TestGuardEvaluationStore_RejectsBatchWithoutRunID(t *testing.T) {
	store := NewGuardEvaluationStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.GuardEvaluationRecord{
		{RunID: "run1", Label: "a"},
		{Label: "b"},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	got, _ := store.GetByRunID(ctx, "run1")
	if len(got) != 0 {
		t.Error("partial batch must not be stored")
	}
}

func TestGuardEvaluationStore_EvictsOldestRuns(t *testing.T) {
	store := NewGuardEvaluationStore(WithCapacity(2))
	ctx := context.Background()

	batch := []*domain.GuardEvaluationRecord{
		{RunID: "run1", Label: "OGs"},
		{RunID: "run2", Label: "OGs"},
		{RunID: "run2", Label: "public"},
		{RunID: "run3", Label: "OGs"},
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	if got, _ := store.GetByRunID(ctx, "run1"); len(got) != 0 {
		t.Errorf("run1 should be evicted, got %d records", len(got))
	}
	if got, _ := store.GetByRunID(ctx, "run2"); len(got) != 2 {
		t.Errorf("run2 should keep 2 records, got %d", len(got))
	}
	if got, _ := store.GetByRunID(ctx, "run3"); len(got) != 1 {
		t.Errorf("run3 should keep 1 record, got %d", len(got))
	}
}
