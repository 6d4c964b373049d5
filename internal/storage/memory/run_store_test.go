package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/storage"
)

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunRecord{
		RunID:     "run1",
		Strategy:  "short-straddle",
		Config:    `{"name":"short-straddle"}`,
		Mode:      "backtest",
		Status:    domain.RunInitial,
		StartedAt: time.Date(2025, 7, 17, 9, 20, 0, 0, time.UTC),
	}

	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Strategy != "short-straddle" {
		t.Errorf("Strategy mismatch: got %s, want short-straddle", got.Strategy)
	}
	if got.Status != domain.RunInitial {
		t.Errorf("Status mismatch: got %s, want %s", got.Status, domain.RunInitial)
	}
}

func TestRunStore_DuplicateKey(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunRecord{RunID: "run1", Strategy: "s", Status: domain.RunInitial}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, run)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunStore_GetByIDNotFound(t *testing.T) {
	store := NewRunStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunStore_UpdateStatus(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	started := time.Date(2025, 7, 17, 9, 20, 0, 0, time.UTC)
	run := &domain.RunRecord{
		RunID:     "run1",
		Strategy:  "s",
		Status:    domain.RunRunning,
		StartedAt: started,
		UpdatedAt: started,
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	at := started.Add(time.Hour)
	if err := store.UpdateStatus(ctx, "run1", domain.RunFinished, at); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.RunFinished {
		t.Errorf("Status = %s, want %s", got.Status, domain.RunFinished)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %s, want %s", got.UpdatedAt, at)
	}
}

func TestRunStore_UpdateStatusNotFound(t *testing.T) {
	store := NewRunStore()

	err := store.UpdateStatus(context.Background(), "missing", domain.RunFinished, time.Now())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunStore_ListByStatus(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	base := time.Date(2025, 7, 17, 9, 0, 0, 0, time.UTC)
	runs := []*domain.RunRecord{
		{RunID: "run-b", Strategy: "s", Status: domain.RunRunning, StartedAt: base.Add(time.Minute)},
		{RunID: "run-a", Strategy: "s", Status: domain.RunRunning, StartedAt: base},
		{RunID: "run-c", Strategy: "s", Status: domain.RunFinished, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert(%s) failed: %v", r.RunID, err)
		}
	}

	got, err := store.ListByStatus(ctx, domain.RunRunning)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByStatus returned %d runs, want 2", len(got))
	}
	if got[0].RunID != "run-a" || got[1].RunID != "run-b" {
		t.Errorf("order = %s, %s; want run-a, run-b", got[0].RunID, got[1].RunID)
	}
}

func TestRunStore_CopySemantics(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunRecord{RunID: "run1", Strategy: "s", Status: domain.RunRunning}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the original or a returned copy must not leak into the store.
	run.Strategy = "mutated"
	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	got.Strategy = "also-mutated"

	again, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.Strategy != "s" {
		t.Errorf("stored record mutated: Strategy = %s, want s", again.Strategy)
	}
}
