// Package journal persists lifecycle events to the run stores without
// blocking the engine. Writes are fire and forget: a failed or slow
// insert is logged and counted, never surfaced to the tick path.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/engine"
	"options-strategy-lab/internal/observability"
	"options-strategy-lab/internal/storage"
)

const (
	defaultBuffer       = 1024
	defaultWriteTimeout = 5 * time.Second
)

// Snapshotter supplies the current run snapshot when a snapshot event
// arrives. *engine.Engine satisfies it.
type Snapshotter interface {
	Snapshot() *domain.RunSnapshot
}

// Options configures a Journal. Stores are optional; events with no
// configured store are skipped.
type Options struct {
	// Runs receives run status transitions.
	Runs storage.RunStore
	// Trades receives one row per closed position.
	Trades storage.TradeStore
	// Snapshots receives minute snapshot rows.
	Snapshots storage.SnapshotStore
	// Snapshotter resolves snapshot events to rows. Required when
	// Snapshots is set.
	Snapshotter Snapshotter
	// Buffer is the queue depth before events are dropped. Defaults to 1024.
	Buffer int
	// WriteTimeout bounds each store write. Defaults to 5s.
	WriteTimeout time.Duration
	// Logger for journal diagnostics.
	Logger zerolog.Logger
}

// Journal buffers lifecycle events and writes them to storage from a
// background goroutine.
type Journal struct {
	runs      storage.RunStore
	trades    storage.TradeStore
	snapshots storage.SnapshotStore
	snapper   Snapshotter
	timeout   time.Duration
	logger    zerolog.Logger

	queue chan domain.LifecycleEvent
	done  chan struct{}
	once  sync.Once
}

// Compile-time interface check.
var _ engine.EventSink = (*Journal)(nil)

// New creates a Journal and starts its writer goroutine. Call Close to
// drain and stop it.
func New(opts Options) *Journal {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}

	j := &Journal{
		runs:      opts.Runs,
		trades:    opts.Trades,
		snapshots: opts.Snapshots,
		snapper:   opts.Snapshotter,
		timeout:   timeout,
		logger:    opts.Logger.With().Str("component", "journal").Logger(),
		queue:     make(chan domain.LifecycleEvent, buffer),
		done:      make(chan struct{}),
	}
	go j.run()
	return j
}

// Emit enqueues an event. When the queue is full the event is dropped;
// the engine never waits on storage.
func (j *Journal) Emit(ev domain.LifecycleEvent) {
	select {
	case j.queue <- ev:
	default:
		observability.RecordJournalError("queue")
		j.logger.Warn().
			Str("run_id", ev.RunID).
			Str("event_type", ev.Type.String()).
			Msg("journal queue full, event dropped")
	}
}

// Close drains queued events and stops the writer. Emit must not be
// called after Close.
func (j *Journal) Close() {
	j.once.Do(func() {
		close(j.queue)
		<-j.done
	})
}

func (j *Journal) run() {
	defer close(j.done)
	for ev := range j.queue {
		j.write(ev)
	}
}

func (j *Journal) write(ev domain.LifecycleEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	switch ev.Type {
	case domain.EventRunStatusChanged:
		if j.runs == nil {
			return
		}
		if err := j.runs.UpdateStatus(ctx, ev.RunID, ev.Status, ev.At); err != nil {
			observability.RecordJournalError("runs")
			j.logger.Warn().Err(err).
				Str("run_id", ev.RunID).
				Str("status", ev.Status.String()).
				Msg("run status update failed")
			return
		}

	case domain.EventPositionClosed:
		if j.trades == nil {
			return
		}
		trade, ok := tradeFromEvent(ev)
		if !ok {
			observability.RecordJournalError("trades")
			j.logger.Warn().
				Str("run_id", ev.RunID).
				Str("event_id", ev.EventID).
				Msg("close event missing exit fields")
			return
		}
		if err := j.trades.Insert(ctx, trade); err != nil {
			observability.RecordJournalError("trades")
			j.logger.Warn().Err(err).
				Str("run_id", ev.RunID).
				Str("trade_id", trade.TradeID).
				Msg("trade insert failed")
			return
		}

	case domain.EventSnapshotTaken:
		if j.snapshots == nil || j.snapper == nil {
			return
		}
		snap := j.snapper.Snapshot()
		if snap == nil {
			return
		}
		if err := j.snapshots.Insert(ctx, snapshotRow(snap, ev.At)); err != nil {
			observability.RecordJournalError("snapshots")
			j.logger.Warn().Err(err).
				Str("run_id", ev.RunID).
				Time("taken_at", ev.At).
				Msg("snapshot insert failed")
			return
		}

	default:
		// Entry, deferral, and skip events live in the engine event
		// log only.
		return
	}

	observability.RecordEventJournaled()
}

// tradeFromEvent maps a close event's position to its persisted row.
func tradeFromEvent(ev domain.LifecycleEvent) (*domain.TradeRecord, bool) {
	p := ev.Position
	if p == nil || p.ExitTime == nil || p.ExitPrice == nil || p.RealizedPnL == nil {
		return nil, false
	}
	return &domain.TradeRecord{
		TradeID:    p.ID,
		RunID:      ev.RunID,
		LegID:      p.LegID,
		Sequence:   p.Sequence,
		Trigger:    p.Trigger,
		Contract:   p.Contract.ID(),
		Side:       p.Side,
		Lots:       p.Lots,
		EntryTime:  p.EntryTime,
		EntryPrice: p.EntryPrice,
		ExitTime:   *p.ExitTime,
		ExitPrice:  *p.ExitPrice,
		Status:     p.Status,
		PnL:        *p.RealizedPnL,
	}, true
}

// snapshotRow maps a run snapshot to its persisted row. TakenAt is the
// event instant, not the write instant; the snapshot itself may have
// advanced past it by the time the writer runs.
func snapshotRow(snap *domain.RunSnapshot, takenAt time.Time) *domain.SnapshotRecord {
	return &domain.SnapshotRecord{
		RunID:         snap.RunID,
		TakenAt:       takenAt,
		Status:        snap.Status,
		OpenPositions: len(snap.OpenPositions()),
		RealizedPnL:   snap.RealizedPnL,
		UnrealizedPnL: snap.UnrealizedPnL,
		TotalPnL:      snap.TotalPnL,
	}
}
