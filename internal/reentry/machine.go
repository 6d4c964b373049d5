// Package reentry decides when a closed leg reopens. The machine owns
// per-leg re-entry budgets and the pending watches that arm after
// cost, momentum, and lazy exits. It never opens positions itself; it
// hands the engine directives describing what to open.
package reentry

import (
	"time"

	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// DecisionKind classifies the outcome of an exit.
type DecisionKind string

const (
	// DecisionNone means the leg stays closed.
	DecisionNone DecisionKind = "NONE"
	// DecisionNow means the leg reopens on the next tick.
	DecisionNow DecisionKind = "REENTER_NOW"
	// DecisionPending means a watch was armed; the leg reopens when the
	// watch condition fires.
	DecisionPending DecisionKind = "REENTER_PENDING"
)

// String returns the string representation of DecisionKind.
func (k DecisionKind) String() string {
	return string(k)
}

// Directive tells the engine how to reopen a leg.
type Directive struct {
	LegID   string
	Trigger domain.ReentryTrigger // the exit that spawned this re-entry
	Side    domain.Side           // side for the new position

	// ReuseContract pins the re-entry to the closed contract instead of
	// resolving the strike afresh.
	ReuseContract bool
	Contract      domain.Contract // set when ReuseContract
}

// Decision is the outcome of OnExit. Directive is meaningful for
// DecisionNow; pending directives surface later through Check.
type Decision struct {
	Kind      DecisionKind
	Directive Directive
}

// pendingWatch is one armed re-entry waiting on price or time.
type pendingWatch struct {
	directive Directive
	// contract whose last price the watch observes
	contractID string

	fireAtOrAbove *decimal.Decimal
	fireAtOrBelow *decimal.Decimal
	readyAt       *time.Time
}

// Machine tracks re-entry budgets and pending watches for one run.
// Not safe for concurrent use; the engine goroutine owns it.
type Machine struct {
	strategy *domain.StrategyDefinition
	counts   map[string]int // domain.ReentryKey -> consumed budget
	pending  []*pendingWatch
}

// New creates a machine for the strategy.
func New(strategy *domain.StrategyDefinition) *Machine {
	return &Machine{
		strategy: strategy,
		counts:   make(map[string]int),
	}
}

// OnExit consumes one re-entry budget slot and decides how the leg
// reopens, if at all. pos is the position that just closed; at is the
// tick time of the close. Time and manual closes never re-enter.
func (m *Machine) OnExit(pos *domain.Position, at time.Time) Decision {
	trigger := pos.Status.ReentryTrigger()
	if trigger == domain.TriggerNone {
		return Decision{Kind: DecisionNone}
	}

	leg := m.strategy.Leg(pos.LegID)
	if leg == nil {
		return Decision{Kind: DecisionNone}
	}

	rule := leg.ReentryFor(trigger)
	if !rule.Enabled || !rule.Mode.IsValid() {
		return Decision{Kind: DecisionNone}
	}

	if m.pastCutoff(at) {
		return Decision{Kind: DecisionNone}
	}

	key := domain.ReentryKey(pos.LegID, trigger)
	if m.counts[key] >= budget(rule) {
		return Decision{Kind: DecisionNone}
	}
	m.counts[key]++

	side := pos.Side
	if rule.Mode.Reversed() {
		side = side.Opposite()
	}
	d := Directive{LegID: pos.LegID, Trigger: trigger, Side: side}

	switch rule.Mode {
	case domain.ReentryASAP, domain.ReentryASAPRev:
		return Decision{Kind: DecisionNow, Directive: d}

	case domain.ReentryCost, domain.ReentryCostRev:
		// Wait for the closed contract's premium to come back to the
		// original entry. The predicate keys on the closed side: a short
		// that stopped out above entry waits for the fall back, a long
		// for the recovery.
		d.ReuseContract = true
		d.Contract = pos.Contract
		w := &pendingWatch{directive: d, contractID: pos.Contract.ID()}
		entry := pos.EntryPrice
		if pos.Side == domain.SideSell {
			w.fireAtOrBelow = &entry
		} else {
			w.fireAtOrAbove = &entry
		}
		m.pending = append(m.pending, w)
		return Decision{Kind: DecisionPending, Directive: d}

	case domain.ReentryMomentum, domain.ReentryMomentumRev:
		// Wait for the premium to push past the exit price in the exit's
		// direction by the strategy's confirmation margin, then resolve
		// the strike afresh.
		w := &pendingWatch{directive: d, contractID: pos.Contract.ID()}
		exit := pos.EntryPrice
		if pos.ExitPrice != nil {
			exit = *pos.ExitPrice
		}
		if exitMovedUp(pos.Side, trigger) {
			level := exit.Add(m.strategy.MomentumPoints)
			w.fireAtOrAbove = &level
		} else {
			level := exit.Sub(m.strategy.MomentumPoints)
			w.fireAtOrBelow = &level
		}
		m.pending = append(m.pending, w)
		return Decision{Kind: DecisionPending, Directive: d}

	case domain.ReentryLazyLeg:
		ready := at.Add(rule.LazyDelay)
		m.pending = append(m.pending, &pendingWatch{directive: d, readyAt: &ready})
		return Decision{Kind: DecisionPending, Directive: d}
	}

	return Decision{Kind: DecisionNone}
}

// Check fires pending watches satisfied by the tick and returns their
// directives in arming order. Watches past the no-re-entry cutoff are
// dropped without firing.
func (m *Machine) Check(tick *domain.Tick) []Directive {
	if len(m.pending) == 0 {
		return nil
	}

	if m.pastCutoff(tick.Timestamp) {
		m.pending = nil
		return nil
	}

	var due []Directive
	var keep []*pendingWatch
	for _, w := range m.pending {
		if w.due(tick) {
			due = append(due, w.directive)
		} else {
			keep = append(keep, w)
		}
	}
	m.pending = keep
	return due
}

// CancelAll drops every pending watch. Called at square-off.
func (m *Machine) CancelAll() {
	m.pending = nil
}

// PendingCount returns the number of armed watches.
func (m *Machine) PendingCount() int {
	return len(m.pending)
}

// Count returns the consumed budget for a leg and trigger.
func (m *Machine) Count(legID string, trigger domain.ReentryTrigger) int {
	return m.counts[domain.ReentryKey(legID, trigger)]
}

// Counts returns a copy of all consumed budgets keyed by leg and trigger.
func (m *Machine) Counts() map[string]int {
	out := make(map[string]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

func (m *Machine) pastCutoff(at time.Time) bool {
	return m.strategy.NoReentryAfter != nil && m.strategy.NoReentryAfter.ReachedBy(at)
}

// due reports whether the tick satisfies the watch condition.
func (w *pendingWatch) due(tick *domain.Tick) bool {
	if w.readyAt != nil {
		return !tick.Timestamp.Before(*w.readyAt)
	}

	q, ok := tick.QuoteFor(w.contractID)
	if !ok {
		return false
	}
	if w.fireAtOrAbove != nil {
		return q.Last.GreaterThanOrEqual(*w.fireAtOrAbove)
	}
	if w.fireAtOrBelow != nil {
		return q.Last.LessThanOrEqual(*w.fireAtOrBelow)
	}
	return false
}

// budget caps a rule's re-entry count at the global maximum. A rule
// without an explicit count gets the full cap.
func budget(rule domain.ReentryRule) int {
	if rule.MaxCount <= 0 || rule.MaxCount > domain.MaxReentryCount {
		return domain.MaxReentryCount
	}
	return rule.MaxCount
}

// exitMovedUp reports whether the closing move pushed the premium up:
// shorts stop out on a rise and take profit on a fall, longs inverted.
func exitMovedUp(side domain.Side, trigger domain.ReentryTrigger) bool {
	if side == domain.SideSell {
		return trigger == domain.TriggerStopLoss
	}
	return trigger == domain.TriggerTarget
}
