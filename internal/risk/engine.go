// Package risk evaluates stop-loss, target, and trailing rules against
// open positions. Evaluation is pure: the same position and prices
// always produce the same verdict, and nothing here mutates state.
package risk

import (
	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// Verdict is the outcome of evaluating one position on one tick.
type Verdict string

const (
	VerdictNone     Verdict = "NONE"
	VerdictStopLoss Verdict = "STOP_LOSS"
	VerdictTarget   Verdict = "TARGET"
)

// String returns the string representation of Verdict.
func (v Verdict) String() string {
	return string(v)
}

// Trigger maps the verdict to the re-entry trigger it fires.
func (v Verdict) Trigger() domain.ReentryTrigger {
	switch v {
	case VerdictStopLoss:
		return domain.TriggerStopLoss
	case VerdictTarget:
		return domain.TriggerTarget
	}
	return domain.TriggerNone
}

// Status maps the verdict to the position status it closes with.
func (v Verdict) Status() domain.PositionStatus {
	switch v {
	case VerdictStopLoss:
		return domain.StatusClosedStopLoss
	case VerdictTarget:
		return domain.StatusClosedTarget
	}
	return domain.StatusOpen
}

var hundred = decimal.NewFromInt(100)

// threshold converts a rule value into absolute points. Percent bases
// scale by the reference price; a zero reference falls back to 1 so the
// rule stays triggerable.
func threshold(basis domain.RiskBasis, value, ref decimal.Decimal) decimal.Decimal {
	switch basis {
	case domain.BasisPremiumPercent, domain.BasisUnderlyingPercent:
		if ref.IsZero() {
			ref = decimal.NewFromInt(1)
		}
		return ref.Mul(value).Div(hundred)
	}
	return value
}

// favorableMove measures movement in the position's favor on the rule's
// reference series. Shorts profit as the series falls, longs as it rises.
func favorableMove(basis domain.RiskBasis, pos *domain.Position, ltp, spot decimal.Decimal) decimal.Decimal {
	if basis.IsPremium() {
		return pos.EntryPrice.Sub(ltp).Mul(pos.Side.PnLSign())
	}
	return pos.EntrySpot.Sub(spot).Mul(pos.Side.PnLSign())
}

// ruleRef picks the percent-basis reference price for a rule.
func ruleRef(basis domain.RiskBasis, pos *domain.Position) decimal.Decimal {
	if basis.IsPremium() {
		return pos.EntryPrice
	}
	return pos.EntrySpot
}

// trailHit reports whether the premium has crossed the trail level:
// shorts stop when the premium rises to the level, longs when it falls.
func trailHit(side domain.Side, level, ltp decimal.Decimal) bool {
	if side == domain.SideSell {
		return ltp.GreaterThanOrEqual(level)
	}
	return ltp.LessThanOrEqual(level)
}

// Evaluate checks one open position against its leg's risk rules and
// trail level. Stop-loss outranks target when both fire on the same
// tick. ltp is the position contract's last traded price; spot is the
// strategy's underlying reference for the same tick.
func Evaluate(leg *domain.LegDefinition, pos *domain.Position, ltp, spot decimal.Decimal) Verdict {
	if pos.TrailLevel != nil && trailHit(pos.Side, *pos.TrailLevel, ltp) {
		return VerdictStopLoss
	}

	if leg.StopLoss.Enabled {
		adverse := favorableMove(leg.StopLoss.Basis, pos, ltp, spot).Neg()
		limit := threshold(leg.StopLoss.Basis, leg.StopLoss.Value, ruleRef(leg.StopLoss.Basis, pos))
		if adverse.GreaterThanOrEqual(limit) {
			return VerdictStopLoss
		}
	}

	if leg.Target.Enabled {
		gain := favorableMove(leg.Target.Basis, pos, ltp, spot)
		limit := threshold(leg.Target.Basis, leg.Target.Value, ruleRef(leg.Target.Basis, pos))
		if gain.GreaterThanOrEqual(limit) {
			return VerdictTarget
		}
	}

	return VerdictNone
}

// TightenTo merges a new stop level into an existing trail level,
// keeping whichever is tighter for the side: lower for shorts, higher
// for longs. The result is always a fresh allocation.
func TightenTo(side domain.Side, prev *decimal.Decimal, level decimal.Decimal) *decimal.Decimal {
	if prev != nil {
		if side == domain.SideSell && prev.LessThan(level) {
			level = *prev
		}
		if side == domain.SideBuy && prev.GreaterThan(level) {
			level = *prev
		}
	}
	return &level
}

// AdvanceTrail ratchets the trailing stop after a price move. The level
// only ever tightens: falling premiums pull a short's stop down with
// them, rising premiums push a long's stop up. Returns prev unchanged
// when trailing is disabled.
func AdvanceTrail(rule domain.TrailRule, side domain.Side, prev *decimal.Decimal, price decimal.Decimal) *decimal.Decimal {
	if !rule.Enabled {
		return prev
	}

	var candidate decimal.Decimal
	switch rule.Basis {
	case domain.TrailPercent:
		pct := rule.Value.Div(hundred)
		if side == domain.SideSell {
			candidate = price.Mul(decimal.NewFromInt(1).Add(pct))
		} else {
			candidate = price.Mul(decimal.NewFromInt(1).Sub(pct))
		}
	default:
		if side == domain.SideSell {
			candidate = price.Add(rule.Value)
		} else {
			candidate = price.Sub(rule.Value)
		}
	}

	return TightenTo(side, prev, candidate)
}

// BreakevenReached reports whether aggregate profit has hit the
// breakeven trigger. pointsPnL is premium PnL summed across positions
// in price points (no lot scaling); entryPremium is the summed entry
// premium of the same positions, the reference for percent rules.
func BreakevenReached(rule *domain.BreakevenRule, pointsPnL, entryPremium decimal.Decimal) bool {
	if rule == nil {
		return false
	}
	limit := threshold(rule.Basis, rule.Value, entryPremium)
	return pointsPnL.GreaterThanOrEqual(limit)
}
