package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunRecord is one strategy run as persisted.
type RunRecord struct {
	RunID    string
	Strategy string
	// Config is the strategy definition JSON as submitted.
	Config string
	// Mode is "backtest" or "live".
	Mode   string
	Status RunStatus

	StartedAt time.Time
	UpdatedAt time.Time
}

// TradeRecord is one closed position as persisted: the realized side
// of the ledger, one row per position lifecycle.
type TradeRecord struct {
	TradeID  string // position ID
	RunID    string
	LegID    string
	Sequence int
	Trigger  ReentryTrigger
	Contract string // Contract.ID()
	Side     Side
	Lots     int

	EntryTime  time.Time
	EntryPrice decimal.Decimal
	ExitTime   time.Time
	ExitPrice  decimal.Decimal

	Status PositionStatus
	PnL    decimal.Decimal
}

// SnapshotRecord is one portfolio snapshot row, taken at minute
// boundaries while a run is active.
type SnapshotRecord struct {
	RunID   string
	TakenAt time.Time
	Status  RunStatus

	OpenPositions int
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	TotalPnL      decimal.Decimal
}
