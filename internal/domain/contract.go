package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentKind distinguishes what a leg trades.
type InstrumentKind string

const (
	InstrumentOption InstrumentKind = "OPTION"
	InstrumentFuture InstrumentKind = "FUTURE"
	InstrumentEquity InstrumentKind = "EQUITY"
)

// String returns the string representation of InstrumentKind.
func (k InstrumentKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k InstrumentKind) IsValid() bool {
	return k == InstrumentOption || k == InstrumentFuture || k == InstrumentEquity
}

// OptionRight is the option type of a contract.
type OptionRight string

const (
	RightCall OptionRight = "CE"
	RightPut  OptionRight = "PE"
)

// String returns the string representation of OptionRight.
func (r OptionRight) String() string {
	return string(r)
}

// IsValid checks if the right is a valid value.
func (r OptionRight) IsValid() bool {
	return r == RightCall || r == RightPut
}

// Contract identifies one tradeable instrument. Resolved once per
// position; never re-resolved mid-life.
type Contract struct {
	Underlying string
	Instrument InstrumentKind
	Right      OptionRight     // options only
	Strike     decimal.Decimal // options only
	Expiry     time.Time       // civil date, zero for equity
}

// ID returns the canonical identifier used as the quotes map key and
// in deterministic hashes. Equal contracts always produce equal IDs.
func (c Contract) ID() string {
	switch c.Instrument {
	case InstrumentOption:
		return fmt.Sprintf("%s|%s|%s|%s", c.Underlying, c.Expiry.Format("2006-01-02"), c.Right, c.Strike.String())
	case InstrumentFuture:
		return fmt.Sprintf("%s|%s|FUT", c.Underlying, c.Expiry.Format("2006-01-02"))
	default:
		return fmt.Sprintf("%s|EQ", c.Underlying)
	}
}

// IsZero reports whether the contract is unset.
func (c Contract) IsZero() bool {
	return c.Underlying == ""
}

// ParseContractID reverses Contract.ID.
func ParseContractID(id string) (Contract, error) {
	parts := strings.Split(id, "|")
	switch {
	case len(parts) == 2 && parts[1] == "EQ":
		return Contract{Underlying: parts[0], Instrument: InstrumentEquity}, nil

	case len(parts) == 3 && parts[2] == "FUT":
		expiry, err := time.Parse("2006-01-02", parts[1])
		if err != nil {
			return Contract{}, fmt.Errorf("contract id %q: bad expiry: %w", id, err)
		}
		return Contract{Underlying: parts[0], Instrument: InstrumentFuture, Expiry: expiry}, nil

	case len(parts) == 4:
		expiry, err := time.Parse("2006-01-02", parts[1])
		if err != nil {
			return Contract{}, fmt.Errorf("contract id %q: bad expiry: %w", id, err)
		}
		right := OptionRight(parts[2])
		if !right.IsValid() {
			return Contract{}, fmt.Errorf("contract id %q: bad right %q", id, parts[2])
		}
		strike, err := decimal.NewFromString(parts[3])
		if err != nil {
			return Contract{}, fmt.Errorf("contract id %q: bad strike: %w", id, err)
		}
		return Contract{
			Underlying: parts[0],
			Instrument: InstrumentOption,
			Right:      right,
			Strike:     strike,
			Expiry:     expiry,
		}, nil
	}
	return Contract{}, fmt.Errorf("malformed contract id %q", id)
}
