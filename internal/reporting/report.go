// Package reporting builds human-readable run reports from engine
// output or from journaled rows, and renders them as Markdown or CSV.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// Report is one run summarized for a reader: every trade, the money
// totals, and the per-leg lifecycle noise (re-entries, skips, deferrals).
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Strategy    string
	Mode        string // "backtest" or "live", empty when unknown
	Status      domain.RunStatus
	Clock       time.Time // engine clock at report time

	// Trades, sorted by entry time, then leg, then sequence
	Trades []TradeRow

	Totals Totals

	// Reentries lists consumed re-entry budget per (leg, trigger)
	Reentries []ReentryRow

	// Skips and Deferrals carry the per-leg events that explain why an
	// expected entry is absent or late
	Skips     []LegEventRow
	Deferrals []LegEventRow
}

// TradeRow is one position, open or closed.
type TradeRow struct {
	LegID    string
	Sequence int
	Trigger  domain.ReentryTrigger
	Contract string
	Side     domain.Side
	Lots     int

	EntryTime  time.Time
	EntryPrice decimal.Decimal
	ExitTime   *time.Time
	ExitPrice  *decimal.Decimal

	Status domain.PositionStatus
	// PnL is realized for closed rows, mark-to-market for open ones.
	PnL decimal.Decimal
}

// Totals aggregates the money columns.
type Totals struct {
	Positions       int
	OpenPositions   int
	ClosedPositions int
	Wins            int // closed with positive PnL
	Losses          int // closed with negative PnL

	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	TotalPnL      decimal.Decimal
}

// ReentryRow reports consumed re-entry units for one (leg, trigger).
type ReentryRow struct {
	LegID   string
	Trigger domain.ReentryTrigger
	Used    int
}

// LegEventRow is one skip or deferral with its reason.
type LegEventRow struct {
	LegID string
	At    time.Time
	Note  string
}
