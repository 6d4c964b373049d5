// Package engine folds a time-ordered tick stream into position
// lifecycle events. The engine is a deterministic state machine: the
// same strategy over the same tick sequence always produces the same
// positions, events, and PnL. One goroutine feeds it ticks; concurrent
// readers take snapshots.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/chain"
	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/greeks"
	"options-strategy-lab/internal/idhash"
	"options-strategy-lab/internal/ledger"
	"options-strategy-lab/internal/observability"
	"options-strategy-lab/internal/reentry"
	"options-strategy-lab/internal/risk"
	"options-strategy-lab/internal/strikes"
)

var (
	// ErrNotRunning is returned by ProcessTick once the run is terminal.
	ErrNotRunning = errors.New("run is not accepting ticks")
	// ErrClockNonMonotonic is returned when a tick does not advance the
	// run clock. The run moves to ERROR; reordering is the feed layer's
	// job, a violation here means the stream is unusable.
	ErrClockNonMonotonic = errors.New("tick clock did not advance")
)

// EventSink receives lifecycle events as the engine produces them.
// Emit is called on the engine goroutine and must not block;
// implementations enqueue and return.
type EventSink interface {
	Emit(ev domain.LifecycleEvent)
}

// Options configures an Engine.
type Options struct {
	// Strategy is the validated strategy definition. Required.
	Strategy *domain.StrategyDefinition
	// RunID tags every event of this run. Required.
	RunID string
	// Chains resolves option chain snapshots for strike selection.
	// When nil the engine builds chains from the tick stream itself.
	Chains chain.Provider
	// Sink receives events in addition to the in-memory log. Optional.
	Sink EventSink
	// Logger for engine diagnostics.
	Logger zerolog.Logger
}

// Engine evaluates one strategy against one tick stream. ProcessTick
// and the terminal operations serialize on an internal mutex; Status,
// Snapshot, and Events may be called concurrently from other goroutines.
type Engine struct {
	mu sync.RWMutex

	strategy *domain.StrategyDefinition
	runID    string
	logger   zerolog.Logger
	sink     EventSink

	book    *ledger.Ledger
	machine *reentry.Machine
	chains  chain.Provider
	tracker *chain.Tracker

	status   domain.RunStatus
	clock    time.Time
	clockSeq int64
	hasTick  bool

	// entryAt and exitAt are anchored to concrete instants on the
	// first tick.
	entryAt time.Time
	exitAt  time.Time

	lastSpot    decimal.Decimal
	lastFutSpot decimal.Decimal

	pendingInitial map[string]bool
	queued         []reentry.Directive
	breakevenDone  bool

	snapMinute time.Time
	ordinal    int
	log        []domain.LifecycleEvent
}

// New creates an engine in INITIAL state.
func New(opts Options) (*Engine, error) {
	if opts.Strategy == nil {
		return nil, errors.New("engine: strategy is required")
	}
	if opts.RunID == "" {
		return nil, errors.New("engine: run id is required")
	}

	e := &Engine{
		strategy: opts.Strategy,
		runID:    opts.RunID,
		logger: opts.Logger.With().
			Str("component", "engine").
			Str("run_id", opts.RunID).
			Str("strategy", opts.Strategy.Name).
			Logger(),
		sink: opts.Sink,
		book: ledger.New(ledger.Options{
			LotSize: opts.Strategy.LotSize,
			Costs:   opts.Strategy.Costs,
		}),
		machine:        reentry.New(opts.Strategy),
		chains:         opts.Chains,
		status:         domain.RunInitial,
		pendingInitial: make(map[string]bool, len(opts.Strategy.Legs)),
	}
	for i := range opts.Strategy.Legs {
		e.pendingInitial[opts.Strategy.Legs[i].ID] = true
	}
	if e.chains == nil {
		e.tracker = chain.NewTracker(opts.Strategy.Underlying)
		e.chains = e.tracker
	}
	return e, nil
}

// RunID returns the run identifier.
func (e *Engine) RunID() string {
	return e.runID
}

// Strategy returns the immutable strategy definition the run evaluates.
func (e *Engine) Strategy() *domain.StrategyDefinition {
	return e.strategy
}

// ProcessTick advances the run by one tick. Ticks must arrive in
// strictly increasing (timestamp, seq) order; a tick behind the run
// clock fails the run. Returns an error only when the run can no
// longer continue.
func (e *Engine) ProcessTick(tick *domain.Tick) error {
	start := time.Now()
	defer func() {
		observability.RecordTickEval(time.Since(start).Seconds())
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status.Terminal() {
		return fmt.Errorf("%w: status %s", ErrNotRunning, e.status)
	}

	if e.hasTick && !aheadOfClock(tick, e.clock, e.clockSeq) {
		err := fmt.Errorf("%w: tick %s seq %d at run clock %s seq %d",
			ErrClockNonMonotonic, tick.Timestamp.Format(time.RFC3339Nano), tick.Seq,
			e.clock.Format(time.RFC3339Nano), e.clockSeq)
		e.failLocked(err)
		return err
	}

	e.ordinal = 0
	if !e.hasTick {
		e.hasTick = true
		e.anchorLocked(tick)
		e.setStatusLocked(domain.RunRunning, tick.Timestamp, tick.Seq, "first tick")
	}
	e.clock = tick.Timestamp
	e.clockSeq = tick.Seq
	if !tick.Spot.IsZero() {
		e.lastSpot = tick.Spot
	}
	if !tick.FutSpot.IsZero() {
		e.lastFutSpot = tick.FutSpot
	}
	observability.RecordTick(tick.Synthetic)

	if e.tracker != nil {
		e.tracker.Observe(tick)
	}

	// Exit boundary: the first tick at or past exit time settles the
	// whole session, whatever the risk state.
	if !tick.Timestamp.Before(e.exitAt) {
		e.markPricesLocked(tick, false)
		e.settleLocked(tick.Timestamp, tick.Seq, domain.StatusClosedTime, "session exit")
		return nil
	}

	if err := e.enterLocked(tick); err != nil {
		return err
	}
	e.markPricesLocked(tick, true)
	e.breakevenLocked(tick)
	if err := e.evaluateLocked(tick); err != nil {
		return err
	}
	e.minuteSnapshotLocked(tick)

	observability.UpdateReentriesPending(e.machine.PendingCount())
	return nil
}

// Shutdown stops the run manually: every open position closes at its
// last marked price and the run finishes. A terminal run is left
// untouched.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Terminal() {
		return
	}
	e.settleLocked(e.clock, e.clockSeq, domain.StatusClosedManual, "manual stop")
}

// FinishExhausted settles the run after a bounded feed ran dry: open
// positions close as time exits at the last known prices.
func (e *Engine) FinishExhausted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Terminal() {
		return
	}
	e.settleLocked(e.clock, e.clockSeq, domain.StatusClosedTime, "feed exhausted")
}

// Fail moves the run to ERROR, keeping the last valid state readable.
func (e *Engine) Fail(cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Terminal() {
		return
	}
	e.failLocked(cause)
}

// Status returns the current run status.
func (e *Engine) Status() domain.RunStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Snapshot returns an immutable view of the run state.
func (e *Engine) Snapshot() *domain.RunSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &domain.RunSnapshot{
		RunID:         e.runID,
		Strategy:      e.strategy.Name,
		Status:        e.status,
		Clock:         e.clock,
		Positions:     e.book.All(),
		RealizedPnL:   e.book.RealizedPnL(),
		UnrealizedPnL: e.book.UnrealizedPnL(),
		TotalPnL:      e.book.TotalPnL(),
		ReentryCounts: e.machine.Counts(),
	}
}

// Events returns a copy of the lifecycle event log so far.
func (e *Engine) Events() []domain.LifecycleEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.LifecycleEvent, len(e.log))
	copy(out, e.log)
	return out
}

// aheadOfClock reports whether the tick strictly advances the clock.
func aheadOfClock(tick *domain.Tick, clock time.Time, seq int64) bool {
	if tick.Timestamp.After(clock) {
		return true
	}
	return tick.Timestamp.Equal(clock) && tick.Seq > seq
}

// anchorLocked pins entry and exit to concrete instants. Entry anchors
// on the first tick's day. Intraday runs exit the same day; positional
// runs exit at exit time on the earliest leg expiry.
func (e *Engine) anchorLocked(tick *domain.Tick) {
	e.entryAt = e.strategy.EntryTime.On(tick.Timestamp)

	exitDay := tick.Timestamp
	if e.strategy.Kind == domain.KindPositional {
		var earliest time.Time
		for i := range e.strategy.Legs {
			exp := domain.ResolveExpiry(e.strategy.Legs[i].Expiry, tick.Timestamp)
			if earliest.IsZero() || exp.Before(earliest) {
				earliest = exp
			}
		}
		if !earliest.IsZero() {
			exitDay = time.Date(earliest.Year(), earliest.Month(), earliest.Day(),
				0, 0, 0, 0, tick.Timestamp.Location())
		}
	}
	e.exitAt = e.strategy.ExitTime.On(exitDay)

	e.logger.Info().
		Time("entry_at", e.entryAt).
		Time("exit_at", e.exitAt).
		Msg("session anchored")
}

// enterLocked opens whatever the tick allows: initial legs once entry
// time is reached, then queued and newly fired re-entries. Failed
// attempts defer to the next tick.
func (e *Engine) enterLocked(tick *domain.Tick) error {
	if !tick.Timestamp.Before(e.entryAt) {
		for i := range e.strategy.Legs {
			leg := &e.strategy.Legs[i]
			if !e.pendingInitial[leg.ID] {
				continue
			}
			ok, err := e.openLocked(tick, leg, leg.Side, domain.TriggerNone, domain.Contract{}, false)
			if err != nil {
				return err
			}
			if ok {
				delete(e.pendingInitial, leg.ID)
			}
		}
	}

	due := e.queued
	e.queued = nil
	due = append(due, e.machine.Check(tick)...)

	if e.strategy.NoReentryAfter != nil && e.strategy.NoReentryAfter.ReachedBy(tick.Timestamp) {
		if len(due) > 0 {
			e.logger.Info().Int("dropped", len(due)).Msg("re-entry cutoff reached")
		}
		due = nil
	}

	for _, d := range due {
		if _, open := e.book.OpenForLeg(d.LegID); open {
			e.logger.Warn().
				Str("leg", d.LegID).
				Str("trigger", d.Trigger.String()).
				Msg("re-entry dropped, leg already open")
			continue
		}
		leg := e.strategy.Leg(d.LegID)
		if leg == nil {
			continue
		}
		ok, err := e.openLocked(tick, leg, d.Side, d.Trigger, d.Contract, d.ReuseContract)
		if err != nil {
			return err
		}
		if !ok {
			e.queued = append(e.queued, d)
		}
	}
	return nil
}

// openLocked resolves and fills one entry at the tick's prices. A
// resolution or quote failure defers the entry; only ledger invariant
// violations fail the run.
func (e *Engine) openLocked(tick *domain.Tick, leg *domain.LegDefinition, side domain.Side, trigger domain.ReentryTrigger, pinned domain.Contract, reuse bool) (bool, error) {
	price, contract, err := e.resolveEntryLocked(tick, leg, side, pinned, reuse)
	if err != nil {
		e.emitLocked(domain.EventEntryDeferred, tick.Timestamp, tick.Seq, leg.ID, nil, "", err.Error())
		observability.RecordEntryDeferred()
		e.logger.Warn().Err(err).Str("leg", leg.ID).Msg("entry deferred")
		return false, nil
	}

	seq := e.book.NextSequence(leg.ID)
	pos := &domain.Position{
		ID:           idhash.ComputePositionID(e.strategy.Name, leg.ID, seq, contract.ID(), side.String(), tick.Timestamp),
		LegID:        leg.ID,
		Contract:     contract,
		Side:         side,
		Lots:         leg.Lots,
		Sequence:     seq,
		Trigger:      trigger,
		EntryTime:    tick.Timestamp,
		EntryPrice:   price,
		EntrySpot:    e.spotLocked(tick),
		CurrentPrice: price,
		Status:       domain.StatusOpen,
	}
	if err := e.book.Open(pos); err != nil {
		err = fmt.Errorf("open position for leg %s: %w", leg.ID, err)
		e.failLocked(err)
		return false, err
	}

	kind := "initial"
	if trigger != domain.TriggerNone {
		kind = "reentry"
	}
	observability.RecordPositionOpened(kind)
	e.emitLocked(domain.EventPositionCreated, tick.Timestamp, tick.Seq, leg.ID, pos.Clone(), "", kind)
	e.logger.Info().
		Str("leg", leg.ID).
		Str("contract", contract.ID()).
		Str("side", side.String()).
		Int("sequence", seq).
		Str("price", price.String()).
		Msg("position opened")
	return true, nil
}

// resolveEntryLocked picks the contract and fill price for one entry.
// Options resolve their strike against the chain at the tick instant;
// futures and equity trade the underlying directly. Re-entries pinned
// to a contract skip resolution.
func (e *Engine) resolveEntryLocked(tick *domain.Tick, leg *domain.LegDefinition, side domain.Side, pinned domain.Contract, reuse bool) (decimal.Decimal, domain.Contract, error) {
	if reuse {
		q, ok := tick.QuoteFor(pinned.ID())
		if !ok || q.Last.IsZero() {
			return decimal.Decimal{}, domain.Contract{}, fmt.Errorf("no quote for %s", pinned.ID())
		}
		return q.Last, pinned, nil
	}

	expiry := domain.ResolveExpiry(leg.Expiry, tick.Timestamp)

	switch leg.Instrument {
	case domain.InstrumentFuture:
		c := domain.Contract{Underlying: e.strategy.Underlying, Instrument: domain.InstrumentFuture, Expiry: expiry}
		px, ok := e.priceLocked(c, tick)
		if !ok {
			return decimal.Decimal{}, domain.Contract{}, errors.New("no futures price")
		}
		return px, c, nil

	case domain.InstrumentEquity:
		c := domain.Contract{Underlying: e.strategy.Underlying, Instrument: domain.InstrumentEquity}
		px, ok := e.priceLocked(c, tick)
		if !ok {
			return decimal.Decimal{}, domain.Contract{}, errors.New("no equity price")
		}
		return px, c, nil
	}

	spot := e.spotLocked(tick)
	if spot.IsZero() {
		return decimal.Decimal{}, domain.Contract{}, errors.New("no underlying price yet")
	}
	snap, err := e.chains.Snapshot(expiry, tick.Timestamp, spot)
	if err != nil {
		return decimal.Decimal{}, domain.Contract{}, fmt.Errorf("chain snapshot: %w", err)
	}
	if leg.Strike.Kind.NeedsGreeks() {
		chain.EnrichGreeks(snap, greeks.DefaultRate, greeks.DefaultYield)
	}
	contract, err := strikes.Resolve(leg.Strike, snap, leg.Right, side)
	if err != nil {
		return decimal.Decimal{}, domain.Contract{}, err
	}
	q, ok := tick.QuoteFor(contract.ID())
	if !ok || q.Last.IsZero() {
		return decimal.Decimal{}, domain.Contract{}, fmt.Errorf("no quote for %s", contract.ID())
	}
	return q.Last, contract, nil
}

// spotLocked returns the strategy's underlying reference for the tick,
// falling back to the last known value when the tick carries none.
func (e *Engine) spotLocked(tick *domain.Tick) decimal.Decimal {
	if s := tick.SpotFor(e.strategy.UnderlyingFrom); !s.IsZero() {
		return s
	}
	if e.strategy.UnderlyingFrom == domain.UnderlyingFutures && !e.lastFutSpot.IsZero() {
		return e.lastFutSpot
	}
	return e.lastSpot
}

// priceLocked returns the tick's price for a contract. Futures and
// equity fall back to the spot series when unquoted; options price
// only from their own quote.
func (e *Engine) priceLocked(c domain.Contract, tick *domain.Tick) (decimal.Decimal, bool) {
	if q, ok := tick.QuoteFor(c.ID()); ok && !q.Last.IsZero() {
		return q.Last, true
	}
	switch c.Instrument {
	case domain.InstrumentFuture:
		if !tick.FutSpot.IsZero() {
			return tick.FutSpot, true
		}
		if !e.lastFutSpot.IsZero() {
			return e.lastFutSpot, true
		}
	case domain.InstrumentEquity:
		if !tick.Spot.IsZero() {
			return tick.Spot, true
		}
		if !e.lastSpot.IsZero() {
			return e.lastSpot, true
		}
	}
	return decimal.Decimal{}, false
}

// markPricesLocked refreshes open position marks from the tick. A
// missing quote holds the prior mark. With trail enabled the stop
// ratchets alongside the fresh mark.
func (e *Engine) markPricesLocked(tick *domain.Tick, trail bool) {
	for _, pos := range e.book.OpenPositions() {
		px, ok := e.priceLocked(pos.Contract, tick)
		if !ok {
			e.logger.Debug().Str("contract", pos.Contract.ID()).Msg("no quote, holding last mark")
			continue
		}
		if err := e.book.MarkPrice(pos.ID, px); err != nil {
			continue
		}
		if !trail {
			continue
		}
		leg := e.strategy.Leg(pos.LegID)
		if leg == nil || !leg.Trail.Enabled {
			continue
		}
		next := risk.AdvanceTrail(leg.Trail, pos.Side, pos.TrailLevel, px)
		if !trailChanged(pos.TrailLevel, next) {
			continue
		}
		if err := e.book.SetTrail(pos.ID, next); err != nil {
			continue
		}
		if cp, err := e.book.Get(pos.ID); err == nil {
			e.emitLocked(domain.EventPositionUpdated, tick.Timestamp, tick.Seq, pos.LegID, cp, "", "trail advanced")
		}
	}
}

// trailChanged reports whether next is a new or tightened level.
func trailChanged(prev, next *decimal.Decimal) bool {
	if next == nil {
		return false
	}
	return prev == nil || !next.Equal(*prev)
}

// breakevenLocked tightens every open stop to its entry price once
// aggregate premium profit reaches the trigger. Fires at most once per
// run.
func (e *Engine) breakevenLocked(tick *domain.Tick) {
	if e.breakevenDone || e.strategy.TrailToBreakeven == nil {
		return
	}
	points, entryPremium := e.book.PremiumPoints()
	if !risk.BreakevenReached(e.strategy.TrailToBreakeven, points, entryPremium) {
		return
	}
	e.breakevenDone = true
	e.logger.Info().Str("points", points.String()).Msg("breakeven trigger reached")

	for _, pos := range e.book.OpenPositions() {
		next := risk.TightenTo(pos.Side, pos.TrailLevel, pos.EntryPrice)
		if !trailChanged(pos.TrailLevel, next) {
			continue
		}
		if err := e.book.SetTrail(pos.ID, next); err != nil {
			continue
		}
		if cp, err := e.book.Get(pos.ID); err == nil {
			e.emitLocked(domain.EventPositionUpdated, tick.Timestamp, tick.Seq, pos.LegID, cp, "", "stop moved to breakeven")
		}
	}
}

// evaluateLocked runs risk rules over open positions in creation order
// and closes what fires. In COMPLETE square-off mode the first trigger
// also force-closes everything else and cancels all re-entries.
func (e *Engine) evaluateLocked(tick *domain.Tick) error {
	spot := e.spotLocked(tick)
	squareOff := false

	for _, pos := range e.book.OpenPositions() {
		leg := e.strategy.Leg(pos.LegID)
		if leg == nil {
			continue
		}
		verdict := risk.Evaluate(leg, &pos, pos.CurrentPrice, spot)
		if verdict == risk.VerdictNone {
			continue
		}
		closed, err := e.book.Close(pos.ID, verdict.Status(), tick.Timestamp, pos.CurrentPrice)
		if err != nil {
			err = fmt.Errorf("close position %s: %w", pos.ID, err)
			e.failLocked(err)
			return err
		}
		observability.RecordPositionClosed(closed.Status.String())
		e.emitLocked(domain.EventPositionClosed, tick.Timestamp, tick.Seq, closed.LegID, closed, "", verdict.String())
		e.logger.Info().
			Str("leg", closed.LegID).
			Str("verdict", verdict.String()).
			Str("price", pos.CurrentPrice.String()).
			Str("pnl", closed.PnL().String()).
			Msg("position closed")

		if e.strategy.SquareOff == domain.SquareOffComplete {
			squareOff = true
			continue
		}
		decision := e.machine.OnExit(closed, tick.Timestamp)
		switch decision.Kind {
		case reentry.DecisionNow:
			e.queued = append(e.queued, decision.Directive)
		case reentry.DecisionPending:
			e.logger.Debug().Str("leg", closed.LegID).Msg("re-entry watch armed")
		}
	}

	if squareOff {
		e.squareOffLocked(tick)
	}
	return nil
}

// squareOffLocked force-closes every remaining open position and
// cancels all pending entries and re-entries.
func (e *Engine) squareOffLocked(tick *domain.Tick) {
	for _, pos := range e.book.OpenPositions() {
		closed, err := e.book.Close(pos.ID, domain.StatusClosedManual, tick.Timestamp, pos.CurrentPrice)
		if err != nil {
			continue
		}
		observability.RecordPositionClosed(closed.Status.String())
		e.emitLocked(domain.EventPositionClosed, tick.Timestamp, tick.Seq, closed.LegID, closed, "", "square-off")
		e.logger.Info().Str("leg", closed.LegID).Msg("position squared off")
	}
	e.machine.CancelAll()
	e.queued = nil

	for i := range e.strategy.Legs {
		id := e.strategy.Legs[i].ID
		if !e.pendingInitial[id] {
			continue
		}
		delete(e.pendingInitial, id)
		observability.RecordLegSkipped()
		e.emitLocked(domain.EventLegSkipped, tick.Timestamp, tick.Seq, id, nil, "", "square-off before entry")
	}
}

// settleLocked closes every open position with the given status at the
// last marked prices and finishes the run. Legs that never entered are
// reported skipped.
func (e *Engine) settleLocked(at time.Time, seq int64, status domain.PositionStatus, reason string) {
	for _, pos := range e.book.OpenPositions() {
		closed, err := e.book.Close(pos.ID, status, at, pos.CurrentPrice)
		if err != nil {
			continue
		}
		observability.RecordPositionClosed(closed.Status.String())
		e.emitLocked(domain.EventPositionClosed, at, seq, closed.LegID, closed, "", reason)
		e.logger.Info().
			Str("leg", closed.LegID).
			Str("status", closed.Status.String()).
			Str("pnl", closed.PnL().String()).
			Msg("position settled")
	}

	for i := range e.strategy.Legs {
		id := e.strategy.Legs[i].ID
		if !e.pendingInitial[id] {
			continue
		}
		delete(e.pendingInitial, id)
		observability.RecordLegSkipped()
		e.emitLocked(domain.EventLegSkipped, at, seq, id, nil, "", "no entry before "+reason)
		e.logger.Warn().Str("leg", id).Msg("leg never entered")
	}

	e.machine.CancelAll()
	e.queued = nil
	e.setStatusLocked(domain.RunFinished, at, seq, reason)
}

// minuteSnapshotLocked emits a SNAPSHOT_TAKEN marker when the tick
// crosses a minute boundary. The first tick only sets the baseline.
func (e *Engine) minuteSnapshotLocked(tick *domain.Tick) {
	minute := tick.Timestamp.Truncate(time.Minute)
	if e.snapMinute.IsZero() {
		e.snapMinute = minute
		return
	}
	if !minute.After(e.snapMinute) {
		return
	}
	e.snapMinute = minute
	e.emitLocked(domain.EventSnapshotTaken, tick.Timestamp, tick.Seq, "", nil, "", "")
}

func (e *Engine) failLocked(cause error) {
	e.logger.Error().Err(cause).Msg("run failed")
	e.setStatusLocked(domain.RunError, e.clock, e.clockSeq, cause.Error())
}

func (e *Engine) setStatusLocked(status domain.RunStatus, at time.Time, seq int64, note string) {
	e.status = status
	e.emitLocked(domain.EventRunStatusChanged, at, seq, "", nil, status, note)
	e.logger.Info().Str("status", status.String()).Str("note", note).Msg("run status changed")
}

// emitLocked appends an event to the run log and forwards it to the sink.
func (e *Engine) emitLocked(typ domain.EventType, at time.Time, seq int64, legID string, pos *domain.Position, status domain.RunStatus, note string) {
	posID := ""
	if pos != nil {
		posID = pos.ID
	}
	ev := domain.LifecycleEvent{
		EventID:  idhash.ComputeEventID(e.strategy.Name, typ.String(), legID, posID, at, seq, e.ordinal),
		RunID:    e.runID,
		Type:     typ,
		At:       at,
		Seq:      seq,
		LegID:    legID,
		Position: pos,
		Status:   status,
		Note:     note,
	}
	e.ordinal++
	e.log = append(e.log, ev)
	if e.sink != nil {
		e.sink.Emit(ev)
	}
}
