package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one contract's bid/ask/last snapshot within a tick.
type Quote struct {
	Bid  decimal.Decimal
	Ask  decimal.Decimal
	Last decimal.Decimal
}

// Tick is one immutable observation of the market. Ticks form a total
// order by (Timestamp, Seq); Seq breaks timestamp ties.
type Tick struct {
	Timestamp time.Time
	Seq       int64

	// Spot is the cash underlying price; FutSpot the near-futures price
	// when the feed carries one (zero otherwise).
	Spot    decimal.Decimal
	FutSpot decimal.Decimal

	// Quotes maps Contract.ID() to that contract's snapshot. A tick may
	// omit quotes for contracts the feed has no update for.
	Quotes map[string]Quote

	// Synthetic marks clock-advance ticks injected by the live driver.
	// They carry no quotes.
	Synthetic bool
}

// QuoteFor returns the quote for a contract id, if present.
func (t *Tick) QuoteFor(contractID string) (Quote, bool) {
	q, ok := t.Quotes[contractID]
	return q, ok
}

// SpotFor returns the underlying price matching the configured source,
// falling back to cash when no futures price is present.
func (t *Tick) SpotFor(from UnderlyingFrom) decimal.Decimal {
	if from == UnderlyingFutures && !t.FutSpot.IsZero() {
		return t.FutSpot
	}
	return t.Spot
}
