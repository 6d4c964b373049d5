package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyKind classifies how long a strategy stays in the market.
type StrategyKind string

const (
	KindIntraday   StrategyKind = "INTRADAY"
	KindPositional StrategyKind = "POSITIONAL"
)

// String returns the string representation of StrategyKind.
func (k StrategyKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k StrategyKind) IsValid() bool {
	return k == KindIntraday || k == KindPositional
}

// UnderlyingFrom selects which spot series drives strike selection
// and underlying-basis risk rules.
type UnderlyingFrom string

const (
	UnderlyingCash    UnderlyingFrom = "CASH"
	UnderlyingFutures UnderlyingFrom = "FUTURES"
)

// String returns the string representation of UnderlyingFrom.
func (u UnderlyingFrom) String() string {
	return string(u)
}

// IsValid checks if the source is a valid value.
func (u UnderlyingFrom) IsValid() bool {
	return u == UnderlyingCash || u == UnderlyingFutures
}

// SquareOffMode controls whether legs exit independently or as a package.
type SquareOffMode string

const (
	// SquareOffPartial closes each leg independently of the others.
	SquareOffPartial SquareOffMode = "PARTIAL"
	// SquareOffComplete closes every open leg as soon as any leg
	// exits via stop-loss or target.
	SquareOffComplete SquareOffMode = "COMPLETE"
)

// String returns the string representation of SquareOffMode.
func (m SquareOffMode) String() string {
	return string(m)
}

// IsValid checks if the mode is a valid value.
func (m SquareOffMode) IsValid() bool {
	return m == SquareOffPartial || m == SquareOffComplete
}

// Side is the direction of a leg or position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the reversed side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PnLSign returns the multiplier applied to (entry - current) when
// computing PnL: +1 for short positions, -1 for long.
func (s Side) PnLSign() decimal.Decimal {
	if s == SideSell {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// RiskBasis determines the reference series and unit for a risk rule.
type RiskBasis string

const (
	BasisPremiumPoints     RiskBasis = "PREMIUM_POINTS"
	BasisPremiumPercent    RiskBasis = "PREMIUM_PERCENT"
	BasisUnderlyingPoints  RiskBasis = "UNDERLYING_POINTS"
	BasisUnderlyingPercent RiskBasis = "UNDERLYING_PERCENT"
)

// String returns the string representation of RiskBasis.
func (b RiskBasis) String() string {
	return string(b)
}

// IsValid checks if the basis is a valid value.
func (b RiskBasis) IsValid() bool {
	switch b {
	case BasisPremiumPoints, BasisPremiumPercent, BasisUnderlyingPoints, BasisUnderlyingPercent:
		return true
	}
	return false
}

// IsPremium reports whether the rule compares against option premium
// rather than underlying spot.
func (b RiskBasis) IsPremium() bool {
	return b == BasisPremiumPoints || b == BasisPremiumPercent
}

// RiskRule defines a single target or stop-loss trigger for a leg.
type RiskRule struct {
	Enabled bool
	Basis   RiskBasis
	Value   decimal.Decimal
}

// TrailBasis is the unit of a trailing-stop offset.
type TrailBasis string

const (
	TrailPoints  TrailBasis = "POINTS"
	TrailPercent TrailBasis = "PERCENT"
)

// String returns the string representation of TrailBasis.
func (b TrailBasis) String() string {
	return string(b)
}

// IsValid checks if the basis is a valid value.
func (b TrailBasis) IsValid() bool {
	return b == TrailPoints || b == TrailPercent
}

// TrailRule defines how a stop level follows favorable movement.
// The resulting level is monotonic within one position's lifetime.
type TrailRule struct {
	Enabled bool
	Basis   TrailBasis
	Value   decimal.Decimal
}

// ReentryMode selects when and how a closed leg reopens.
type ReentryMode string

const (
	// ReentryASAP reopens the leg on the very next tick with a fresh
	// strike resolution.
	ReentryASAP ReentryMode = "RE_ASAP"
	// ReentryASAPRev is ReentryASAP with the opposite side.
	ReentryASAPRev ReentryMode = "RE_ASAP_REV"
	// ReentryCost waits for the closed contract's premium to return to
	// the original entry price, then reopens the same contract.
	ReentryCost ReentryMode = "RE_COST"
	// ReentryCostRev is ReentryCost with the opposite side.
	ReentryCostRev ReentryMode = "RE_COST_REV"
	// ReentryMomentum waits for the premium to continue beyond the exit
	// price by the strategy's momentum margin, then re-resolves.
	ReentryMomentum ReentryMode = "RE_MOMENTUM"
	// ReentryMomentumRev is ReentryMomentum with the opposite side.
	ReentryMomentumRev ReentryMode = "RE_MOMENTUM_REV"
	// ReentryLazyLeg reopens after a configured delay has elapsed.
	ReentryLazyLeg ReentryMode = "LAZY_LEG"
)

// String returns the string representation of ReentryMode.
func (m ReentryMode) String() string {
	return string(m)
}

// IsValid checks if the mode is a valid value.
func (m ReentryMode) IsValid() bool {
	switch m {
	case ReentryASAP, ReentryASAPRev, ReentryCost, ReentryCostRev,
		ReentryMomentum, ReentryMomentumRev, ReentryLazyLeg:
		return true
	}
	return false
}

// Reversed reports whether the mode flips the side on re-entry.
func (m ReentryMode) Reversed() bool {
	return m == ReentryASAPRev || m == ReentryCostRev || m == ReentryMomentumRev
}

// MaxReentryCount caps re-entries per (leg, trigger) regardless of config.
const MaxReentryCount = 20

// ReentryRule defines re-entry behavior for one trigger of one leg.
type ReentryRule struct {
	Enabled  bool
	Mode     ReentryMode
	MaxCount int
	// LazyDelay applies only to LAZY_LEG.
	LazyDelay time.Duration
}

// ReentryTrigger identifies which exit fired a re-entry rule.
type ReentryTrigger string

const (
	TriggerNone     ReentryTrigger = "NONE"
	TriggerStopLoss ReentryTrigger = "STOP_LOSS"
	TriggerTarget   ReentryTrigger = "TARGET"
)

// String returns the string representation of ReentryTrigger.
func (t ReentryTrigger) String() string {
	return string(t)
}

// BreakevenRule moves every open position's stop level to its entry
// price once aggregate profit reaches the trigger. Fires at most once
// per run.
type BreakevenRule struct {
	Basis RiskBasis // PREMIUM_POINTS or PREMIUM_PERCENT
	Value decimal.Decimal
}

// CostModel captures execution costs applied to fills and realized PnL.
// Zero values reproduce frictionless arithmetic.
type CostModel struct {
	PerLotRoundTrip decimal.Decimal
	SlippagePerFill decimal.Decimal
}

// LegDefinition is the immutable definition of one leg of a strategy.
type LegDefinition struct {
	ID              string
	Side            Side
	Instrument      InstrumentKind
	Right           OptionRight // meaningful only for options
	Expiry          ExpiryRule
	Lots            int
	Strike          StrikeCriterion
	Target          RiskRule
	StopLoss        RiskRule
	Trail           TrailRule
	ReentryOnStop   ReentryRule
	ReentryOnTarget ReentryRule
}

// ReentryFor returns the re-entry rule attached to the given trigger.
func (l *LegDefinition) ReentryFor(trigger ReentryTrigger) ReentryRule {
	switch trigger {
	case TriggerStopLoss:
		return l.ReentryOnStop
	case TriggerTarget:
		return l.ReentryOnTarget
	}
	return ReentryRule{}
}

// StrategyDefinition is the immutable, validated configuration of one run.
// Loaded once per run; the engine never mutates it.
type StrategyDefinition struct {
	Name           string
	Kind           StrategyKind
	Underlying     string // e.g. "NIFTY"
	UnderlyingFrom UnderlyingFrom
	EntryTime      TimeOfDay
	ExitTime       TimeOfDay
	LotSize        int
	SquareOff      SquareOffMode
	Legs           []LegDefinition

	// NoReentryAfter blocks all re-entries once the run clock passes
	// this time of day. Nil means no cutoff.
	NoReentryAfter *TimeOfDay

	// MomentumPoints is the confirmation margin shared by the momentum
	// re-entry modes.
	MomentumPoints decimal.Decimal

	// TrailToBreakeven optionally tightens all open stops to entry once
	// aggregate profit reaches its trigger. Nil disables.
	TrailToBreakeven *BreakevenRule

	Costs CostModel
}

// Leg returns the leg definition with the given id, or nil.
func (s *StrategyDefinition) Leg(id string) *LegDefinition {
	for i := range s.Legs {
		if s.Legs[i].ID == id {
			return &s.Legs[i]
		}
	}
	return nil
}

// UsesMomentum reports whether any leg has a momentum re-entry mode enabled.
func (s *StrategyDefinition) UsesMomentum() bool {
	for i := range s.Legs {
		for _, r := range []ReentryRule{s.Legs[i].ReentryOnStop, s.Legs[i].ReentryOnTarget} {
			if r.Enabled && (r.Mode == ReentryMomentum || r.Mode == ReentryMomentumRev) {
				return true
			}
		}
	}
	return false
}
