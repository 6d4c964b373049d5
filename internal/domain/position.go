package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is the lifecycle state of a position. Transitions are
// one-directional: Open to exactly one closed status; closed is terminal.
type PositionStatus string

const (
	StatusOpen           PositionStatus = "OPEN"
	StatusClosedStopLoss PositionStatus = "CLOSED_STOP_LOSS"
	StatusClosedTarget   PositionStatus = "CLOSED_TARGET"
	StatusClosedTime     PositionStatus = "CLOSED_TIME"
	StatusClosedManual   PositionStatus = "CLOSED_MANUAL"
)

// String returns the string representation of PositionStatus.
func (s PositionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s PositionStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusClosedStopLoss, StatusClosedTarget, StatusClosedTime, StatusClosedManual:
		return true
	}
	return false
}

// IsClosed reports whether the status is terminal.
func (s PositionStatus) IsClosed() bool {
	return s != StatusOpen && s.IsValid()
}

// ReentryTrigger maps a closing status to the re-entry trigger it fires.
// Time and manual closes never trigger re-entry.
func (s PositionStatus) ReentryTrigger() ReentryTrigger {
	switch s {
	case StatusClosedStopLoss:
		return TriggerStopLoss
	case StatusClosedTarget:
		return TriggerTarget
	}
	return TriggerNone
}

// Position is one entry for one leg (original or re-entry). Owned
// exclusively by the ledger; every other component reads copies.
type Position struct {
	ID       string // deterministic hash
	LegID    string
	Contract Contract
	Side     Side
	Lots     int

	// Sequence numbers entries per leg: 0 is the original entry,
	// re-entries count up from 1.
	Sequence int
	// Trigger records which exit spawned this entry (NONE for sequence 0).
	Trigger ReentryTrigger

	EntryTime  time.Time
	EntryPrice decimal.Decimal
	// EntrySpot is the underlying price at entry, the reference for
	// underlying-basis risk rules.
	EntrySpot decimal.Decimal

	CurrentPrice decimal.Decimal
	// TrailLevel is the trailing stop level, nil until trailing first
	// engages. Monotonic: tightens or holds, never loosens.
	TrailLevel *decimal.Decimal

	Status    PositionStatus
	ExitTime  *time.Time
	ExitPrice *decimal.Decimal

	// RealizedPnL is computed exactly once at close and never revised.
	RealizedPnL *decimal.Decimal
	// UnrealizedPnL is refreshed on every tick while open, zeroed at close.
	UnrealizedPnL decimal.Decimal
}

// Open reports whether the position is still open.
func (p *Position) Open() bool {
	return p.Status == StatusOpen
}

// PnL returns realized PnL for closed positions and unrealized for open.
func (p *Position) PnL() decimal.Decimal {
	if p.RealizedPnL != nil {
		return *p.RealizedPnL
	}
	return p.UnrealizedPnL
}

// Clone returns a deep copy safe to hand outside the ledger.
func (p *Position) Clone() *Position {
	c := *p
	if p.TrailLevel != nil {
		v := *p.TrailLevel
		c.TrailLevel = &v
	}
	if p.ExitTime != nil {
		v := *p.ExitTime
		c.ExitTime = &v
	}
	if p.ExitPrice != nil {
		v := *p.ExitPrice
		c.ExitPrice = &v
	}
	if p.RealizedPnL != nil {
		v := *p.RealizedPnL
		c.RealizedPnL = &v
	}
	return &c
}
