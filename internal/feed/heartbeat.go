package feed

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"options-strategy-lab/internal/domain"
)

// DefaultHeartbeatInterval is the synthetic clock period for live runs.
const DefaultHeartbeatInterval = time.Second

// Heartbeat wraps a live source and injects synthetic ticks so the
// stream clock keeps advancing through quiet stretches. Synthetic ticks
// carry the last seen spot and no quotes.
//
// Interval ticks advance stream time by the heartbeat period from the
// last emitted tick. Mark ticks are emitted exactly at the configured
// mark timestamps once the wall clock reaches them, unless a tick at or
// past the mark has already flowed; the session exit time is the usual
// mark. The output closes when the wrapped source closes; what a dead
// feed means for the run is the driver's call, not the clock's.
type Heartbeat struct {
	inner    Source
	interval time.Duration
	marks    []time.Time
	logger   zerolog.Logger
	dropped  atomic.Int64
}

var _ Source = (*Heartbeat)(nil)

// NewHeartbeat wraps inner with a synthetic clock. Marks are sorted;
// a non-positive interval falls back to DefaultHeartbeatInterval.
func NewHeartbeat(inner Source, interval time.Duration, marks []time.Time, logger zerolog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	sorted := make([]time.Time, len(marks))
	copy(sorted, marks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	return &Heartbeat{
		inner:    inner,
		interval: interval,
		marks:    sorted,
		logger:   logger.With().Str("component", "heartbeat").Logger(),
	}
}

// Dropped reports how many real ticks arrived behind the synthetic
// clock and were discarded.
func (h *Heartbeat) Dropped() int64 {
	return h.dropped.Load()
}

// Bounded reports whether the wrapped source is bounded.
func (h *Heartbeat) Bounded() bool {
	return h.inner.Bounded()
}

// Ticks starts the wrapped source and merges its ticks with the
// synthetic clock.
func (h *Heartbeat) Ticks(ctx context.Context) (<-chan *domain.Tick, error) {
	in, err := h.inner.Ticks(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.Tick)
	go func() {
		defer close(out)

		var (
			last        *domain.Tick
			spot        decimalPair
			marks       = h.marks
			lastArrival = time.Now()
		)

		timer := time.NewTimer(h.interval)
		defer timer.Stop()

		emit := func(t *domain.Tick) bool {
			select {
			case out <- t:
				last = t
				return true
			case <-ctx.Done():
				return false
			}
		}

		synthetic := func(at time.Time) bool {
			if last != nil && !at.After(last.Timestamp) {
				return true
			}
			return emit(&domain.Tick{
				Timestamp: at,
				Spot:      spot.spot,
				FutSpot:   spot.futSpot,
				Synthetic: true,
			})
		}

		for {
			// Next wake-up: the silence deadline or the next mark,
			// whichever comes first.
			wake := lastArrival.Add(h.interval)
			if len(marks) > 0 && marks[0].Before(wake) {
				wake = marks[0]
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(time.Until(wake))

			select {
			case <-ctx.Done():
				return

			case t, ok := <-in:
				if !ok {
					if len(marks) > 0 {
						h.logger.Warn().Int("marks_left", len(marks)).Msg("feed closed before final mark")
					}
					return
				}
				if last != nil && CompareTicks(t, last) <= 0 {
					h.dropped.Add(1)
					h.logger.Warn().
						Time("tick_ts", t.Timestamp).
						Time("clock_ts", last.Timestamp).
						Msg("dropping tick behind synthetic clock")
					continue
				}
				spot.observe(t)
				lastArrival = time.Now()
				if !emit(t) {
					return
				}

			case now := <-timer.C:
				lastArrival = now
				if len(marks) > 0 && !now.Before(marks[0]) {
					mark := marks[0]
					marks = marks[1:]
					if !synthetic(mark) {
						return
					}
					continue
				}

				at := now
				if last != nil {
					at = last.Timestamp.Add(h.interval)
				}
				if !synthetic(at) {
					return
				}
			}
		}
	}()
	return out, nil
}

// decimalPair carries the latest underlying prices forward into
// synthetic ticks.
type decimalPair struct {
	spot    decimal.Decimal
	futSpot decimal.Decimal
}

func (p *decimalPair) observe(t *domain.Tick) {
	if !t.Spot.IsZero() {
		p.spot = t.Spot
	}
	if !t.FutSpot.IsZero() {
		p.futSpot = t.FutSpot
	}
}
