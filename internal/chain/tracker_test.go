package chain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var (
	thisExpiry = time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	nextExpiry = time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
	asOf       = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
)

func tick(at time.Time, quotes map[string]string) *domain.Tick {
	t := &domain.Tick{Timestamp: at, Quotes: make(map[string]domain.Quote)}
	for id, last := range quotes {
		t.Quotes[id] = domain.Quote{Last: dec(last)}
	}
	return t
}

func TestTrackerBuildsChainFromTicks(t *testing.T) {
	tr := NewTracker("NIFTY")

	tr.Observe(tick(asOf, map[string]string{
		"NIFTY|2025-06-05|CE|24500": "121",
		"NIFTY|2025-06-05|PE|24500": "110",
		"NIFTY|2025-06-05|CE|24600": "71",
		"NIFTY|2025-06-12|CE|24500": "180", // next week, different expiry
		"BANKNIFTY|2025-06-05|CE|52000": "300", // other underlying
		"NIFTY|2025-06-26|FUT":      "24512", // futures, not part of the chain
	}))

	snap, err := tr.Snapshot(thisExpiry, asOf, dec("24510"))
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}

	if snap.Underlying != "NIFTY" || !snap.Spot.Equal(dec("24510")) {
		t.Errorf("snapshot header = %q spot %s", snap.Underlying, snap.Spot)
	}
	if len(snap.Strikes) != 2 {
		t.Fatalf("strikes = %d, want 2", len(snap.Strikes))
	}
	if !snap.Strikes[0].Strike.Equal(dec("24500")) || !snap.Strikes[1].Strike.Equal(dec("24600")) {
		t.Errorf("strikes not ascending: %s, %s", snap.Strikes[0].Strike, snap.Strikes[1].Strike)
	}

	row := snap.Strikes[0]
	if row.Call == nil || !row.Call.Last.Equal(dec("121")) {
		t.Errorf("24500 call = %+v", row.Call)
	}
	if row.Put == nil || !row.Put.Last.Equal(dec("110")) {
		t.Errorf("24500 put = %+v", row.Put)
	}
	if snap.Strikes[1].Put != nil {
		t.Error("24600 put should be absent")
	}
}

func TestTrackerKeepsLatestQuote(t *testing.T) {
	tr := NewTracker("NIFTY")

	tr.Observe(tick(asOf, map[string]string{"NIFTY|2025-06-05|CE|24500": "121"}))
	tr.Observe(tick(asOf.Add(time.Minute), map[string]string{"NIFTY|2025-06-05|CE|24500": "118"}))

	snap, _ := tr.Snapshot(thisExpiry, asOf.Add(time.Minute), dec("24500"))
	if len(snap.Strikes) != 1 || !snap.Strikes[0].Call.Last.Equal(dec("118")) {
		t.Errorf("snapshot did not keep the latest quote: %+v", snap.Strikes)
	}
}

func TestTrackerEmptyExpiry(t *testing.T) {
	tr := NewTracker("NIFTY")
	tr.Observe(tick(asOf, map[string]string{"NIFTY|2025-06-05|CE|24500": "121"}))

	snap, err := tr.Snapshot(nextExpiry, asOf, dec("24500"))
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if !snap.Empty() {
		t.Errorf("snapshot for unseen expiry not empty: %+v", snap.Strikes)
	}
}

func TestEnrichGreeksDerivesDeltas(t *testing.T) {
	tr := NewTracker("NIFTY")
	tr.Observe(tick(asOf, map[string]string{
		"NIFTY|2025-06-05|CE|24000": "520", // deep ITM call
		"NIFTY|2025-06-05|CE|24500": "121", // near ATM
		"NIFTY|2025-06-05|CE|25000": "8",   // far OTM
		"NIFTY|2025-06-05|PE|24500": "110",
	}))

	snap, _ := tr.Snapshot(thisExpiry, asOf, dec("24510"))
	EnrichGreeks(snap, 0.06, 0)

	itm := snap.QuoteAt(dec("24000"), domain.RightCall)
	atm := snap.QuoteAt(dec("24500"), domain.RightCall)
	otm := snap.QuoteAt(dec("25000"), domain.RightCall)
	put := snap.QuoteAt(dec("24500"), domain.RightPut)

	for name, q := range map[string]*domain.ChainQuote{"itm": itm, "atm": atm, "otm": otm, "put": put} {
		if q.IV == nil || q.Delta == nil {
			t.Fatalf("%s quote not enriched: %+v", name, q)
		}
	}

	one := decimal.NewFromInt(1)
	if itm.Delta.LessThanOrEqual(atm.Delta.Abs()) || itm.Delta.GreaterThan(one) {
		t.Errorf("itm call delta = %s, want above atm and <= 1", itm.Delta)
	}
	if otm.Delta.GreaterThanOrEqual(*atm.Delta) || otm.Delta.Sign() < 0 {
		t.Errorf("otm call delta = %s, want below atm and >= 0", otm.Delta)
	}
	if put.Delta.Sign() > 0 || put.Delta.LessThan(one.Neg()) {
		t.Errorf("put delta = %s, want in [-1, 0]", put.Delta)
	}
}

func TestEnrichGreeksRespectsSuppliedValues(t *testing.T) {
	iv := dec("0.2")
	delta := dec("0.55")
	snap := &domain.ChainSnapshot{
		Underlying: "NIFTY",
		Expiry:     thisExpiry,
		AsOf:       asOf,
		Spot:       dec("24500"),
		Strikes: []domain.ChainStrike{{
			Strike: dec("24500"),
			Call:   &domain.ChainQuote{Last: dec("121"), IV: &iv, Delta: &delta},
			Put:    &domain.ChainQuote{}, // zero price, must be skipped
		}},
	}

	EnrichGreeks(snap, 0.06, 0)

	call := snap.Strikes[0].Call
	if !call.IV.Equal(dec("0.2")) || !call.Delta.Equal(dec("0.55")) {
		t.Errorf("supplied greeks overwritten: iv %s delta %s", call.IV, call.Delta)
	}
	if snap.Strikes[0].Put.Delta != nil {
		t.Error("zero-price quote was enriched")
	}
}
