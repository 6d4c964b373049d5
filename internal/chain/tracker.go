// Package chain materializes option chain snapshots from the tick
// stream. A Tracker ingests every tick and serves the latest known
// chain for an expiry on demand; EnrichGreeks derives implied vol and
// delta for criteria that select by delta.
package chain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/greeks"
)

// Provider serves chain snapshots at evaluation moments.
type Provider interface {
	Snapshot(expiry, at time.Time, spot decimal.Decimal) (*domain.ChainSnapshot, error)
}

// trackedQuote pairs a parsed contract with its latest quote.
type trackedQuote struct {
	contract domain.Contract
	quote    domain.Quote
}

// Tracker accumulates the latest quote per option contract of one
// underlying. Not safe for concurrent use; the engine goroutine owns it.
type Tracker struct {
	underlying string
	quotes     map[string]*trackedQuote
	skip       map[string]struct{} // ids that are not our options
}

var _ Provider = (*Tracker)(nil)

// NewTracker creates a tracker for the underlying.
func NewTracker(underlying string) *Tracker {
	return &Tracker{
		underlying: underlying,
		quotes:     make(map[string]*trackedQuote),
		skip:       make(map[string]struct{}),
	}
}

// Observe folds a tick's quotes into the tracked state. Quotes for
// other underlyings or non-option contracts are ignored.
func (t *Tracker) Observe(tick *domain.Tick) {
	for id, q := range tick.Quotes {
		if tq, ok := t.quotes[id]; ok {
			tq.quote = q
			continue
		}
		if _, ok := t.skip[id]; ok {
			continue
		}

		c, err := domain.ParseContractID(id)
		if err != nil || c.Instrument != domain.InstrumentOption || c.Underlying != t.underlying {
			t.skip[id] = struct{}{}
			continue
		}
		t.quotes[id] = &trackedQuote{contract: c, quote: q}
	}
}

// Snapshot assembles the chain for one expiry from the latest tracked
// quotes. Strikes come out sorted ascending; an expiry with no quotes
// yields an empty snapshot, never an error.
func (t *Tracker) Snapshot(expiry, at time.Time, spot decimal.Decimal) (*domain.ChainSnapshot, error) {
	want := expiry.Format("2006-01-02")

	rows := make(map[string]*domain.ChainStrike)
	for _, tq := range t.quotes {
		if tq.contract.Expiry.Format("2006-01-02") != want {
			continue
		}

		key := tq.contract.Strike.String()
		row, ok := rows[key]
		if !ok {
			row = &domain.ChainStrike{Strike: tq.contract.Strike}
			rows[key] = row
		}

		cq := &domain.ChainQuote{Bid: tq.quote.Bid, Ask: tq.quote.Ask, Last: tq.quote.Last}
		if tq.contract.Right == domain.RightCall {
			row.Call = cq
		} else {
			row.Put = cq
		}
	}

	snap := &domain.ChainSnapshot{
		Underlying: t.underlying,
		Expiry:     expiry,
		AsOf:       at,
		Spot:       spot,
	}
	for _, row := range rows {
		snap.Strikes = append(snap.Strikes, *row)
	}
	sort.Slice(snap.Strikes, func(i, j int) bool {
		return snap.Strikes[i].Strike.LessThan(snap.Strikes[j].Strike)
	})
	return snap, nil
}

// expiryCut positions the expiry moment at 10:00 UTC, the Indian cash
// close, so time-to-expiry stays positive through the last session.
const expiryCut = 10 * time.Hour

// EnrichGreeks fills IV and Delta on every quote that lacks them,
// backing delta out of the last traded price via Black-Scholes. Quotes
// without a positive price are left untouched.
func EnrichGreeks(snap *domain.ChainSnapshot, rate, yield float64) {
	if snap.Empty() || snap.Spot.Sign() <= 0 {
		return
	}

	s, _ := snap.Spot.Float64()
	tte := greeks.YearFrac(snap.AsOf, snap.Expiry.Add(expiryCut))

	for i := range snap.Strikes {
		k, _ := snap.Strikes[i].Strike.Float64()
		enrichQuote(snap.Strikes[i].Call, s, k, tte, rate, yield, true)
		enrichQuote(snap.Strikes[i].Put, s, k, tte, rate, yield, false)
	}
}

func enrichQuote(q *domain.ChainQuote, s, k, tte, rate, yield float64, call bool) {
	if q == nil || q.Last.Sign() <= 0 {
		return
	}

	var sigma float64
	if q.IV != nil {
		sigma, _ = q.IV.Float64()
	} else {
		price, _ := q.Last.Float64()
		sigma = greeks.ImpliedVol(s, k, tte, rate, yield, price, call)
		iv := decimal.NewFromFloat(sigma)
		q.IV = &iv
	}

	if q.Delta == nil {
		delta := decimal.NewFromFloat(greeks.Delta(s, k, tte, rate, yield, sigma, call))
		q.Delta = &delta
	}
}
