// Package strikes resolves strike-selection criteria against option
// chain snapshots. Resolution happens once per position creation and is
// never revisited mid-life.
package strikes

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// Resolution errors.
var (
	// ErrEmptyChain means the snapshot has no usable strikes for the
	// requested right.
	ErrEmptyChain = errors.New("option chain has no usable strikes")
	// ErrNoMatch means no strike satisfies the criterion's constraints.
	ErrNoMatch = errors.New("no strike matches criterion")
	// ErrMissingGreeks means a delta-based criterion found no chain deltas.
	ErrMissingGreeks = errors.New("chain snapshot carries no deltas")
)

// Criterion parameter errors.
var (
	ErrUnknownCriterion   = errors.New("unknown strike criterion kind")
	ErrInvalidMoneyness   = errors.New("invalid moneyness")
	ErrInvalidSteps       = errors.New("steps must not be negative")
	ErrMissingPremium     = errors.New("criterion requires a premium parameter")
	ErrMissingPremiumBand = errors.New("PREMIUM_RANGE requires low and high bounds")
	ErrMissingDelta       = errors.New("CLOSEST_DELTA requires a delta target")
	ErrMissingDeltaBand   = errors.New("DELTA_RANGE requires low and high bounds")
	ErrMissingMultiple    = errors.New("STRADDLE_WIDTH requires a multiple")
	ErrMissingPercent     = errors.New("criterion requires a percent parameter")
)

// defaultGridStep is used when the chain lists too few strikes to infer
// the grid spacing.
var defaultGridStep = decimal.NewFromInt(50)

// ValidateCriterion checks that the criterion carries the parameters
// its kind requires. The config loader runs this at load time and
// Resolve repeats it before every resolution.
func ValidateCriterion(c domain.StrikeCriterion) error {
	switch c.Kind {
	case domain.StrikeByType:
		if c.Moneyness != "" && !c.Moneyness.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidMoneyness, c.Moneyness)
		}
		if c.Steps < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidSteps, c.Steps)
		}
	case domain.StrikeClosestPremium, domain.StrikePremiumLE, domain.StrikePremiumGE:
		if c.Premium == nil {
			return fmt.Errorf("%w: %s", ErrMissingPremium, c.Kind)
		}
	case domain.StrikePremiumRange:
		if c.PremiumLow == nil || c.PremiumHigh == nil {
			return ErrMissingPremiumBand
		}
	case domain.StrikeClosestDelta:
		if c.Delta == nil {
			return ErrMissingDelta
		}
	case domain.StrikeDeltaRange:
		if c.DeltaLow == nil || c.DeltaHigh == nil {
			return ErrMissingDeltaBand
		}
	case domain.StrikeStraddleWidth:
		if c.Multiple == nil {
			return ErrMissingMultiple
		}
	case domain.StrikePctOfATM, domain.StrikeATMPremiumPct:
		if c.Percent == nil {
			return fmt.Errorf("%w: %s", ErrMissingPercent, c.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCriterion, c.Kind)
	}
	return nil
}

// candidate is one selectable strike with its quote for the requested right.
type candidate struct {
	strike decimal.Decimal
	quote  *domain.ChainQuote
}

// Resolve picks a concrete contract for the criterion from the snapshot.
// The side matters only for DELTA_RANGE, which buys the lowest delta in
// the band and sells the highest.
func Resolve(
	criterion domain.StrikeCriterion,
	chain *domain.ChainSnapshot,
	right domain.OptionRight,
	side domain.Side,
) (domain.Contract, error) {
	if err := ValidateCriterion(criterion); err != nil {
		return domain.Contract{}, err
	}
	if chain.Empty() {
		return domain.Contract{}, ErrEmptyChain
	}

	cands := candidates(chain, right)
	if len(cands) == 0 {
		return domain.Contract{}, fmt.Errorf("%w: no %s quotes", ErrEmptyChain, right)
	}

	step := gridStep(chain)
	atm := snapToGrid(chain.Spot, step)

	var (
		strike decimal.Decimal
		err    error
	)
	switch criterion.Kind {
	case domain.StrikeByType:
		strike = byType(cands, criterion.Moneyness, criterion.Steps, atm, step, right)
	case domain.StrikeClosestPremium:
		strike = closestPremium(cands, *criterion.Premium)
	case domain.StrikePremiumLE:
		strike, err = premiumLE(cands, *criterion.Premium)
	case domain.StrikePremiumGE:
		strike, err = premiumGE(cands, *criterion.Premium)
	case domain.StrikeClosestDelta:
		strike, err = closestDelta(cands, *criterion.Delta)
	case domain.StrikePremiumRange:
		strike, err = premiumRange(cands, *criterion.PremiumLow, *criterion.PremiumHigh)
	case domain.StrikeStraddleWidth:
		strike, err = straddleWidth(chain, cands, *criterion.Multiple, atm, step)
	case domain.StrikePctOfATM:
		strike = pctOfATM(cands, *criterion.Percent, atm, step)
	case domain.StrikeATMPremiumPct:
		strike, err = atmPremiumPct(chain, cands, *criterion.Percent, atm)
	case domain.StrikeDeltaRange:
		strike, err = deltaRange(cands, *criterion.DeltaLow, *criterion.DeltaHigh, side)
	}
	if err != nil {
		return domain.Contract{}, fmt.Errorf("resolve %s for %s: %w", criterion.Kind, right, err)
	}

	return domain.Contract{
		Underlying: chain.Underlying,
		Instrument: domain.InstrumentOption,
		Right:      right,
		Strike:     strike,
		Expiry:     chain.Expiry,
	}, nil
}

// candidates extracts strikes quoting the requested right, ascending.
func candidates(chain *domain.ChainSnapshot, right domain.OptionRight) []candidate {
	var out []candidate
	for i := range chain.Strikes {
		q := chain.Strikes[i].Call
		if right == domain.RightPut {
			q = chain.Strikes[i].Put
		}
		if q != nil {
			out = append(out, candidate{strike: chain.Strikes[i].Strike, quote: q})
		}
	}
	return out
}

// gridStep infers the strike grid spacing as the modal difference
// between adjacent listed strikes.
func gridStep(chain *domain.ChainSnapshot) decimal.Decimal {
	if len(chain.Strikes) < 2 {
		return defaultGridStep
	}

	counts := make(map[string]int)
	diffs := make(map[string]decimal.Decimal)
	for i := 1; i < len(chain.Strikes); i++ {
		d := chain.Strikes[i].Strike.Sub(chain.Strikes[i-1].Strike)
		if d.Sign() <= 0 {
			continue
		}
		counts[d.String()]++
		diffs[d.String()] = d
	}

	best := decimal.Zero
	bestCount := 0
	for key, n := range counts {
		d := diffs[key]
		// Higher count wins; equal counts prefer the smaller spacing.
		if n > bestCount || (n == bestCount && d.LessThan(best)) {
			best = d
			bestCount = n
		}
	}
	if bestCount == 0 {
		return defaultGridStep
	}
	return best
}

// snapToGrid rounds a price to the nearest grid multiple.
func snapToGrid(price, step decimal.Decimal) decimal.Decimal {
	return price.Div(step).Round(0).Mul(step)
}

// nearest returns the listed strike closest to target, ties toward the
// lower strike (candidates are ascending, strict improvement keeps the
// earlier one).
func nearest(cands []candidate, target decimal.Decimal) decimal.Decimal {
	best := cands[0].strike
	bestDiff := cands[0].strike.Sub(target).Abs()
	for _, c := range cands[1:] {
		diff := c.strike.Sub(target).Abs()
		if diff.LessThan(bestDiff) {
			best = c.strike
			bestDiff = diff
		}
	}
	return best
}

// byType picks ATM or a strike n grid steps in/out of the money.
// OTM for calls lies above spot, for puts below; ITM is inverted.
func byType(cands []candidate, m domain.StrikeMoneyness, steps int, atm, step decimal.Decimal, right domain.OptionRight) decimal.Decimal {
	offset := step.Mul(decimal.NewFromInt(int64(steps)))
	if right == domain.RightPut {
		offset = offset.Neg()
	}

	target := atm
	switch m {
	case domain.MoneynessOTM:
		target = atm.Add(offset)
	case domain.MoneynessITM:
		target = atm.Sub(offset)
	}
	return nearest(cands, target)
}

// closestPremium picks the strike whose premium is nearest the target,
// ties toward the lower strike.
func closestPremium(cands []candidate, target decimal.Decimal) decimal.Decimal {
	best := cands[0].strike
	bestDiff := cands[0].quote.Last.Sub(target).Abs()
	for _, c := range cands[1:] {
		diff := c.quote.Last.Sub(target).Abs()
		if diff.LessThan(bestDiff) {
			best = c.strike
			bestDiff = diff
		}
	}
	return best
}

// premiumLE picks the highest premium at or below the limit.
func premiumLE(cands []candidate, limit decimal.Decimal) (decimal.Decimal, error) {
	found := false
	var best decimal.Decimal
	var bestPremium decimal.Decimal
	for _, c := range cands {
		if c.quote.Last.GreaterThan(limit) {
			continue
		}
		if !found || c.quote.Last.GreaterThan(bestPremium) {
			best = c.strike
			bestPremium = c.quote.Last
			found = true
		}
	}
	if !found {
		return decimal.Zero, fmt.Errorf("%w: no premium <= %s", ErrNoMatch, limit)
	}
	return best, nil
}

// premiumGE picks the lowest premium at or above the limit.
func premiumGE(cands []candidate, limit decimal.Decimal) (decimal.Decimal, error) {
	found := false
	var best decimal.Decimal
	var bestPremium decimal.Decimal
	for _, c := range cands {
		if c.quote.Last.LessThan(limit) {
			continue
		}
		if !found || c.quote.Last.LessThan(bestPremium) {
			best = c.strike
			bestPremium = c.quote.Last
			found = true
		}
	}
	if !found {
		return decimal.Zero, fmt.Errorf("%w: no premium >= %s", ErrNoMatch, limit)
	}
	return best, nil
}

// premiumRange picks within [low, high], nearest the band midpoint.
func premiumRange(cands []candidate, low, high decimal.Decimal) (decimal.Decimal, error) {
	if low.GreaterThan(high) {
		low, high = high, low
	}
	mid := low.Add(high).Div(decimal.NewFromInt(2))

	found := false
	var best decimal.Decimal
	var bestDiff decimal.Decimal
	for _, c := range cands {
		if c.quote.Last.LessThan(low) || c.quote.Last.GreaterThan(high) {
			continue
		}
		diff := c.quote.Last.Sub(mid).Abs()
		if !found || diff.LessThan(bestDiff) {
			best = c.strike
			bestDiff = diff
			found = true
		}
	}
	if !found {
		return decimal.Zero, fmt.Errorf("%w: no premium in [%s, %s]", ErrNoMatch, low, high)
	}
	return best, nil
}

// normalizedDelta returns |delta| scaled into [0, 1]; values above 1 are
// treated as percentages.
func normalizedDelta(d decimal.Decimal) decimal.Decimal {
	abs := d.Abs()
	if abs.GreaterThan(decimal.NewFromInt(1)) {
		return abs.Div(decimal.NewFromInt(100))
	}
	return abs
}

// closestDelta picks the strike whose |delta| is nearest the target.
// Strikes without a chain-supplied delta are skipped; if none carry one
// the criterion fails with ErrMissingGreeks.
func closestDelta(cands []candidate, target decimal.Decimal) (decimal.Decimal, error) {
	t := normalizedDelta(target)

	found := false
	var best decimal.Decimal
	var bestDiff decimal.Decimal
	for _, c := range cands {
		if c.quote.Delta == nil {
			continue
		}
		diff := normalizedDelta(*c.quote.Delta).Sub(t).Abs()
		if !found || diff.LessThan(bestDiff) {
			best = c.strike
			bestDiff = diff
			found = true
		}
	}
	if !found {
		return decimal.Zero, ErrMissingGreeks
	}
	return best, nil
}

// deltaRange picks within a |delta| band: buys take the lowest delta in
// the band, sells the highest.
func deltaRange(cands []candidate, low, high decimal.Decimal, side domain.Side) (decimal.Decimal, error) {
	lo, hi := normalizedDelta(low), normalizedDelta(high)
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}

	anyDelta := false
	found := false
	var best decimal.Decimal
	var bestDelta decimal.Decimal
	for _, c := range cands {
		if c.quote.Delta == nil {
			continue
		}
		anyDelta = true
		d := normalizedDelta(*c.quote.Delta)
		if d.LessThan(lo) || d.GreaterThan(hi) {
			continue
		}
		better := side == domain.SideBuy && d.LessThan(bestDelta) ||
			side == domain.SideSell && d.GreaterThan(bestDelta)
		if !found || better {
			best = c.strike
			bestDelta = d
			found = true
		}
	}
	if !anyDelta {
		return decimal.Zero, ErrMissingGreeks
	}
	if !found {
		return decimal.Zero, fmt.Errorf("%w: no delta in [%s, %s]", ErrNoMatch, lo, hi)
	}
	return best, nil
}

// straddlePrice sums the ATM call and put premiums.
func straddlePrice(chain *domain.ChainSnapshot, atm decimal.Decimal) (decimal.Decimal, error) {
	calls := candidates(chain, domain.RightCall)
	puts := candidates(chain, domain.RightPut)
	if len(calls) == 0 || len(puts) == 0 {
		return decimal.Zero, fmt.Errorf("%w: straddle needs both rights quoted", ErrEmptyChain)
	}

	ceStrike := nearest(calls, atm)
	peStrike := nearest(puts, atm)

	var cePx, pePx decimal.Decimal
	for _, c := range calls {
		if c.strike.Equal(ceStrike) {
			cePx = c.quote.Last
		}
	}
	for _, p := range puts {
		if p.strike.Equal(peStrike) {
			pePx = p.quote.Last
		}
	}
	return cePx.Add(pePx), nil
}

// straddleWidth offsets from ATM by multiple x straddle price; the
// multiple's sign selects the direction. Snapped to the grid.
func straddleWidth(chain *domain.ChainSnapshot, cands []candidate, multiple, atm, step decimal.Decimal) (decimal.Decimal, error) {
	straddle, err := straddlePrice(chain, atm)
	if err != nil {
		return decimal.Zero, err
	}

	target := snapToGrid(atm.Add(multiple.Mul(straddle)), step)
	return nearest(cands, target), nil
}

// pctOfATM offsets from the ATM strike by a signed percentage of it.
func pctOfATM(cands []candidate, percent, atm, step decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(percent.Div(decimal.NewFromInt(100)))
	target := snapToGrid(atm.Mul(factor), step)
	return nearest(cands, target)
}

// atmPremiumPct targets a premium that is a percentage of the ATM
// straddle price, then selects by closest premium.
func atmPremiumPct(chain *domain.ChainSnapshot, cands []candidate, percent, atm decimal.Decimal) (decimal.Decimal, error) {
	straddle, err := straddlePrice(chain, atm)
	if err != nil {
		return decimal.Zero, err
	}

	target := percent.Div(decimal.NewFromInt(100)).Mul(straddle)
	return closestPremium(cands, target), nil
}
