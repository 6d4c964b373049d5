package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChainQuote is one option's snapshot inside a chain.
type ChainQuote struct {
	Bid  decimal.Decimal
	Ask  decimal.Decimal
	Last decimal.Decimal

	// IV is the implied volatility as a fraction (0.18 = 18%), nil when
	// the feed does not supply one.
	IV *decimal.Decimal

	// Delta is supplied by the chain source or derived from IV by the
	// provider. Call deltas lie in [0,1], put deltas in [-1,0]. Nil when
	// unavailable; delta-based criteria then fail resolution.
	Delta *decimal.Decimal
}

// ChainStrike is one strike row of a chain: the call and put at that strike.
type ChainStrike struct {
	Strike decimal.Decimal
	Call   *ChainQuote
	Put    *ChainQuote
}

// ChainSnapshot is a point-in-time option chain for one underlying and
// expiry. Strikes are sorted ascending.
type ChainSnapshot struct {
	Underlying string
	Expiry     time.Time // civil date
	AsOf       time.Time
	Spot       decimal.Decimal
	Strikes    []ChainStrike
}

// QuoteAt returns the quote for the given right at the given strike.
func (c *ChainSnapshot) QuoteAt(strike decimal.Decimal, right OptionRight) *ChainQuote {
	for i := range c.Strikes {
		if c.Strikes[i].Strike.Equal(strike) {
			if right == RightCall {
				return c.Strikes[i].Call
			}
			return c.Strikes[i].Put
		}
	}
	return nil
}

// Empty reports whether the snapshot has no strikes.
func (c *ChainSnapshot) Empty() bool {
	return c == nil || len(c.Strikes) == 0
}
