package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunInitial  RunStatus = "INITIAL"
	RunRunning  RunStatus = "RUNNING"
	RunFinished RunStatus = "FINISHED"
	RunError    RunStatus = "ERROR"
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunInitial, RunRunning, RunFinished, RunError:
		return true
	}
	return false
}

// Terminal reports whether the run can make no further progress.
func (s RunStatus) Terminal() bool {
	return s == RunFinished || s == RunError
}

// EventType classifies lifecycle events.
type EventType string

const (
	EventPositionCreated  EventType = "POSITION_CREATED"
	EventPositionUpdated  EventType = "POSITION_UPDATED"
	EventPositionClosed   EventType = "POSITION_CLOSED"
	EventEntryDeferred    EventType = "ENTRY_DEFERRED"
	EventLegSkipped       EventType = "LEG_SKIPPED"
	EventRunStatusChanged EventType = "RUN_STATUS_CHANGED"
	EventSnapshotTaken    EventType = "SNAPSHOT_TAKEN"
)

// String returns the string representation of EventType.
func (t EventType) String() string {
	return string(t)
}

// LifecycleEvent is the engine's only external output: one record per
// state change, emitted in processing order. All fields except RunID
// are deterministic functions of the strategy and the tick sequence.
type LifecycleEvent struct {
	EventID string // deterministic hash
	RunID   string
	Type    EventType
	At      time.Time
	Seq     int64 // tick sequence the event was produced under

	// LegID is set for per-leg events (entries, deferrals, skips).
	LegID string
	// Position carries a copy of the affected position for position events.
	Position *Position
	// Status carries the new run status for RUN_STATUS_CHANGED.
	Status RunStatus
	// Note carries human-readable context (deferral reason, close reason).
	Note string
}

// RunSnapshot is an immutable view of a run, safe for concurrent readers.
type RunSnapshot struct {
	RunID    string
	Strategy string
	Status   RunStatus
	Clock    time.Time

	Positions []Position

	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	TotalPnL      decimal.Decimal

	// ReentryCounts maps "legID|trigger" to consumed re-entry units.
	ReentryCounts map[string]int
}

// ReentryKey builds the ReentryCounts key for a (leg, trigger) pair.
func ReentryKey(legID string, trigger ReentryTrigger) string {
	return legID + "|" + trigger.String()
}

// OpenPositions returns copies of the open positions in the snapshot.
func (s *RunSnapshot) OpenPositions() []Position {
	var open []Position
	for i := range s.Positions {
		if s.Positions[i].Status == StatusOpen {
			open = append(open, s.Positions[i])
		}
	}
	return open
}
