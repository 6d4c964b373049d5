package idhash

import (
	"testing"
	"time"
)

func TestComputePositionID(t *testing.T) {
	entry := time.Date(2025, time.June, 5, 9, 20, 0, 0, time.UTC)

	got := ComputePositionID("short-straddle", "leg-ce", 0, "NIFTY|2025-06-05|CE|24500", "SELL", entry)
	if len(got) != 64 {
		t.Errorf("ComputePositionID() length = %d, want 64", len(got))
	}

	// Same inputs, same id.
	got2 := ComputePositionID("short-straddle", "leg-ce", 0, "NIFTY|2025-06-05|CE|24500", "SELL", entry)
	if got != got2 {
		t.Errorf("ComputePositionID() not deterministic: %s != %s", got, got2)
	}

	// Sequence participates in the id: a re-entry gets a new id.
	reentry := ComputePositionID("short-straddle", "leg-ce", 1, "NIFTY|2025-06-05|CE|24500", "SELL", entry)
	if reentry == got {
		t.Errorf("re-entry id should differ from original entry id")
	}
}

func TestComputeEventID_OrdinalSeparatesSameTickEvents(t *testing.T) {
	at := time.Date(2025, time.June, 5, 15, 15, 0, 0, time.UTC)

	a := ComputeEventID("short-straddle", "POSITION_CLOSED", "leg-ce", "pos1", at, 42, 0)
	b := ComputeEventID("short-straddle", "POSITION_CLOSED", "leg-ce", "pos1", at, 42, 1)

	if a == b {
		t.Errorf("events differing only by ordinal must have distinct ids")
	}
}
