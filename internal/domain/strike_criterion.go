package domain

import "github.com/shopspring/decimal"

// StrikeCriterionKind enumerates the closed set of strike-selection rules.
type StrikeCriterionKind string

const (
	// StrikeByType picks ATM or a number of grid steps in/out of the money.
	StrikeByType StrikeCriterionKind = "STRIKE_TYPE"
	// StrikeClosestPremium picks the strike whose premium is nearest a target.
	StrikeClosestPremium StrikeCriterionKind = "CLOSEST_PREMIUM"
	// StrikePremiumLE picks the highest premium at or below a limit.
	StrikePremiumLE StrikeCriterionKind = "PREMIUM_LE"
	// StrikePremiumGE picks the lowest premium at or above a limit.
	StrikePremiumGE StrikeCriterionKind = "PREMIUM_GE"
	// StrikeClosestDelta picks the strike whose |delta| is nearest a target.
	StrikeClosestDelta StrikeCriterionKind = "CLOSEST_DELTA"
	// StrikePremiumRange picks within a premium band, nearest the midpoint.
	StrikePremiumRange StrikeCriterionKind = "PREMIUM_RANGE"
	// StrikeStraddleWidth offsets from ATM by a multiple of the straddle price.
	StrikeStraddleWidth StrikeCriterionKind = "STRADDLE_WIDTH"
	// StrikePctOfATM offsets from ATM by a percentage of the ATM strike.
	StrikePctOfATM StrikeCriterionKind = "PCT_OF_ATM"
	// StrikeATMPremiumPct targets a premium that is a percentage of the
	// ATM straddle price.
	StrikeATMPremiumPct StrikeCriterionKind = "ATM_PREMIUM_PCT"
	// StrikeDeltaRange picks within a |delta| band; buys take the lowest
	// delta in the band, sells the highest.
	StrikeDeltaRange StrikeCriterionKind = "DELTA_RANGE"
)

// String returns the string representation of StrikeCriterionKind.
func (k StrikeCriterionKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k StrikeCriterionKind) IsValid() bool {
	switch k {
	case StrikeByType, StrikeClosestPremium, StrikePremiumLE, StrikePremiumGE,
		StrikeClosestDelta, StrikePremiumRange, StrikeStraddleWidth,
		StrikePctOfATM, StrikeATMPremiumPct, StrikeDeltaRange:
		return true
	}
	return false
}

// NeedsGreeks reports whether resolving this kind requires chain deltas.
func (k StrikeCriterionKind) NeedsGreeks() bool {
	return k == StrikeClosestDelta || k == StrikeDeltaRange
}

// StrikeMoneyness classifies a STRIKE_TYPE selection relative to spot.
type StrikeMoneyness string

const (
	MoneynessATM StrikeMoneyness = "ATM"
	MoneynessOTM StrikeMoneyness = "OTM"
	MoneynessITM StrikeMoneyness = "ITM"
)

// String returns the string representation of StrikeMoneyness.
func (m StrikeMoneyness) String() string {
	return string(m)
}

// IsValid checks if the moneyness is a valid value.
func (m StrikeMoneyness) IsValid() bool {
	return m == MoneynessATM || m == MoneynessOTM || m == MoneynessITM
}

// StrikeCriterion is a tagged variant: Kind selects the rule, the
// pointer parameters carry that rule's inputs. The resolver validates
// required parameters per kind.
type StrikeCriterion struct {
	Kind StrikeCriterionKind

	// STRIKE_TYPE parameters
	Moneyness StrikeMoneyness
	Steps     int

	// CLOSEST_PREMIUM / PREMIUM_LE / PREMIUM_GE parameters
	Premium *decimal.Decimal

	// PREMIUM_RANGE parameters
	PremiumLow  *decimal.Decimal
	PremiumHigh *decimal.Decimal

	// CLOSEST_DELTA parameters (absolute delta, 0..1 or 0..100)
	Delta *decimal.Decimal

	// DELTA_RANGE parameters
	DeltaLow  *decimal.Decimal
	DeltaHigh *decimal.Decimal

	// STRADDLE_WIDTH parameter; sign selects the offset direction.
	Multiple *decimal.Decimal

	// PCT_OF_ATM / ATM_PREMIUM_PCT parameter; sign selects direction
	// for PCT_OF_ATM.
	Percent *decimal.Decimal
}
