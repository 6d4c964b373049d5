package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/storage"
)

func testTrade(id, runID string, exit time.Time) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:    id,
		RunID:      runID,
		LegID:      "ce_short",
		Contract:   "NIFTY|2025-07-17|CE|24500",
		Side:       domain.SideSell,
		Lots:       1,
		EntryTime:  exit.Add(-time.Hour),
		EntryPrice: decimal.NewFromInt(100),
		ExitTime:   exit,
		ExitPrice:  decimal.NewFromInt(70),
		Status:     domain.StatusClosedTarget,
		PnL:        decimal.NewFromInt(1500),
	}
}

func TestTradeStore_InsertAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	exit := time.Date(2025, 7, 17, 11, 0, 0, 0, time.UTC)
	if err := store.Insert(ctx, testTrade("trade1", "run1", exit)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "trade1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.PnL.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("PnL mismatch: got %s, want 1500", got.PnL)
	}
	if got.Status != domain.StatusClosedTarget {
		t.Errorf("Status mismatch: got %s, want %s", got.Status, domain.StatusClosedTarget)
	}
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	exit := time.Date(2025, 7, 17, 11, 0, 0, 0, time.UTC)
	trade := testTrade("trade1", "run1", exit)

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, trade); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_InsertBulkAtomic(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	exit := time.Date(2025, 7, 17, 11, 0, 0, 0, time.UTC)
	if err := store.Insert(ctx, testTrade("trade1", "run1", exit)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	batch := []*domain.TradeRecord{
		testTrade("trade2", "run1", exit.Add(time.Minute)),
		testTrade("trade1", "run1", exit), // duplicate of existing row
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Nothing from the failed batch may have landed.
	if _, err := store.GetByID(ctx, "trade2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("trade2 inserted despite failed batch: err = %v", err)
	}
}

func TestTradeStore_InsertBulkIntraBatchDuplicate(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	exit := time.Date(2025, 7, 17, 11, 0, 0, 0, time.UTC)
	batch := []*domain.TradeRecord{
		testTrade("trade1", "run1", exit),
		testTrade("trade1", "run1", exit),
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_GetByRunIDOrdered(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	exit := time.Date(2025, 7, 17, 11, 0, 0, 0, time.UTC)
	trades := []*domain.TradeRecord{
		testTrade("trade-late", "run1", exit.Add(time.Hour)),
		testTrade("trade-early", "run1", exit),
		testTrade("trade-other", "run2", exit),
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetByRunID returned %d trades, want 2", len(got))
	}
	if got[0].TradeID != "trade-early" || got[1].TradeID != "trade-late" {
		t.Errorf("order = %s, %s; want trade-early, trade-late", got[0].TradeID, got[1].TradeID)
	}
}

func TestTradeStore_InsertInvalid(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil trade: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Insert(ctx, &domain.TradeRecord{TradeID: "t", RunID: ""}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("missing run id: expected ErrInvalidInput, got %v", err)
	}
}
