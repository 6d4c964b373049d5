package chain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

func memorySnap(asOf time.Time, expiry time.Time, strike int64) *domain.ChainSnapshot {
	last := decimal.NewFromInt(strike).Div(decimal.NewFromInt(100))
	return &domain.ChainSnapshot{
		Underlying: "NIFTY",
		Expiry:     expiry,
		AsOf:       asOf,
		Spot:       decimal.NewFromInt(24500),
		Strikes: []domain.ChainStrike{
			{Strike: decimal.NewFromInt(strike), Call: &domain.ChainQuote{Last: last}},
		},
	}
}

func TestMemoryProvider_AtOrBefore(t *testing.T) {
	expiry := time.Date(2025, 7, 24, 0, 0, 0, 0, time.UTC)
	t0 := time.Date(2025, 7, 17, 9, 15, 0, 0, time.UTC)

	p := NewMemoryProvider([]*domain.ChainSnapshot{
		memorySnap(t0.Add(2*time.Minute), expiry, 24600),
		memorySnap(t0, expiry, 24400),
		memorySnap(t0.Add(time.Minute), expiry, 24500),
	})

	snap, err := p.Snapshot(expiry, t0.Add(90*time.Second), decimal.Zero)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Strikes) != 1 || !snap.Strikes[0].Strike.Equal(decimal.NewFromInt(24500)) {
		t.Errorf("Expected the 09:16 snapshot, got strikes %v", snap.Strikes)
	}

	// Exact AsOf match counts.
	snap, err = p.Snapshot(expiry, t0.Add(2*time.Minute), decimal.Zero)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !snap.Strikes[0].Strike.Equal(decimal.NewFromInt(24600)) {
		t.Errorf("Expected the 09:17 snapshot, got %s", snap.Strikes[0].Strike)
	}
}

func TestMemoryProvider_BeforeFirstIsEmpty(t *testing.T) {
	expiry := time.Date(2025, 7, 24, 0, 0, 0, 0, time.UTC)
	t0 := time.Date(2025, 7, 17, 9, 20, 0, 0, time.UTC)

	p := NewMemoryProvider([]*domain.ChainSnapshot{memorySnap(t0, expiry, 24500)})

	snap, err := p.Snapshot(expiry, t0.Add(-time.Minute), decimal.NewFromInt(24480))
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !snap.Empty() {
		t.Error("Lookup before the first snapshot should be empty, not future data")
	}
	if !snap.Spot.Equal(decimal.NewFromInt(24480)) {
		t.Errorf("Empty snapshot should carry the caller's spot, got %s", snap.Spot)
	}
}

func TestMemoryProvider_UnknownExpiry(t *testing.T) {
	expiry := time.Date(2025, 7, 24, 0, 0, 0, 0, time.UTC)
	other := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)
	t0 := time.Date(2025, 7, 17, 9, 20, 0, 0, time.UTC)

	p := NewMemoryProvider([]*domain.ChainSnapshot{memorySnap(t0, expiry, 24500)})

	snap, err := p.Snapshot(other, t0, decimal.Zero)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !snap.Empty() {
		t.Error("Unknown expiry should yield an empty snapshot")
	}
}

func TestMemoryProvider_CloneIsolation(t *testing.T) {
	expiry := time.Date(2025, 7, 24, 0, 0, 0, 0, time.UTC)
	t0 := time.Date(2025, 7, 17, 9, 20, 0, 0, time.UTC)

	p := NewMemoryProvider([]*domain.ChainSnapshot{memorySnap(t0, expiry, 24500)})

	first, err := p.Snapshot(expiry, t0, decimal.Zero)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	EnrichGreeks(first, 0.06, 0)
	if first.Strikes[0].Call.Delta == nil {
		t.Fatal("Enrichment should fill the call delta")
	}

	second, err := p.Snapshot(expiry, t0, decimal.Zero)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if second.Strikes[0].Call.Delta != nil {
		t.Error("Enriching one snapshot copy should not leak into the provider")
	}
}

func TestReadSnapshotFile(t *testing.T) {
	content := `{"underlying":"NIFTY","expiry":"2025-07-24","as_of":"2025-07-17T09:16:00Z","spot":"24500","strikes":[{"strike":"24600","call":{"last":"52.4","iv":"0.14"}},{"strike":"24400","call":{"last":"142.1"},"put":{"last":"61.3","delta":"-0.31"}}]}
`
	path := filepath.Join(t.TempDir(), "chains.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	snaps, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snaps))
	}

	s := snaps[0]
	if s.Underlying != "NIFTY" || !s.Spot.Equal(decimal.NewFromInt(24500)) {
		t.Errorf("Header fields wrong: %s %s", s.Underlying, s.Spot)
	}
	if !s.Expiry.Equal(time.Date(2025, 7, 24, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expiry wrong: %s", s.Expiry)
	}

	// Strikes come out ascending regardless of file order.
	if len(s.Strikes) != 2 || !s.Strikes[0].Strike.Equal(decimal.NewFromInt(24400)) {
		t.Fatalf("Strikes not sorted: %v", s.Strikes)
	}
	if s.Strikes[0].Put == nil || s.Strikes[0].Put.Delta == nil {
		t.Fatal("Put quote with delta should survive the round trip")
	}
	if !s.Strikes[0].Put.Delta.Equal(decimal.RequireFromString("-0.31")) {
		t.Errorf("Put delta wrong: %s", s.Strikes[0].Put.Delta)
	}
	if s.Strikes[1].Call.IV == nil || !s.Strikes[1].Call.IV.Equal(decimal.RequireFromString("0.14")) {
		t.Error("Call IV should survive the round trip")
	}
	if s.Strikes[1].Put != nil {
		t.Error("Absent put should stay nil")
	}
}

func TestReadSnapshotFile_BadExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.jsonl")
	if err := os.WriteFile(path, []byte(`{"underlying":"NIFTY","expiry":"24-07-2025","as_of":"2025-07-17T09:16:00Z","spot":"1","strikes":[]}`+"\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := ReadSnapshotFile(path); err == nil {
		t.Error("Malformed expiry should fail the read")
	}
}
