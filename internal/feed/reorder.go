package feed

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/observability"
)

// ReorderBuffer wraps a live source and restores tick ordering within a
// fixed time window. Ticks are held until the stream time advances past
// their timestamp plus the window, then released in order. Ticks older
// than the last released timestamp are dropped and counted.
type ReorderBuffer struct {
	inner   Source
	window  time.Duration
	logger  zerolog.Logger
	dropped atomic.Int64
}

var _ Source = (*ReorderBuffer)(nil)

// NewReorderBuffer wraps inner with an ordering window. A zero window
// passes ticks through with only the monotonicity check.
func NewReorderBuffer(inner Source, window time.Duration, logger zerolog.Logger) *ReorderBuffer {
	return &ReorderBuffer{
		inner:  inner,
		window: window,
		logger: logger.With().Str("component", "reorder_buffer").Logger(),
	}
}

// Dropped reports how many late ticks were discarded.
func (r *ReorderBuffer) Dropped() int64 {
	return r.dropped.Load()
}

// Bounded reports whether the wrapped source is bounded.
func (r *ReorderBuffer) Bounded() bool {
	return r.inner.Bounded()
}

// Ticks starts the wrapped source and emits its ticks in order.
func (r *ReorderBuffer) Ticks(ctx context.Context) (<-chan *domain.Tick, error) {
	in, err := r.inner.Ticks(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.Tick)
	go func() {
		defer close(out)

		var (
			buffer   []*domain.Tick
			lastSent *domain.Tick
		)

		send := func(t *domain.Tick) bool {
			select {
			case out <- t:
				lastSent = t
				return true
			case <-ctx.Done():
				return false
			}
		}

		// flush releases every buffered tick with timestamp at or
		// before the horizon, in order. A zero horizon releases all.
		flush := func(horizon time.Time) bool {
			sort.Slice(buffer, func(i, j int) bool {
				return CompareTicks(buffer[i], buffer[j]) < 0
			})
			n := 0
			for _, t := range buffer {
				if !horizon.IsZero() && t.Timestamp.After(horizon) {
					break
				}
				if !send(t) {
					return false
				}
				n++
			}
			buffer = buffer[n:]
			return true
		}

		for t := range in {
			if lastSent != nil && CompareTicks(t, lastSent) <= 0 {
				r.dropped.Add(1)
				observability.RecordLateTick()
				r.logger.Warn().
					Time("tick_ts", t.Timestamp).
					Int64("tick_seq", t.Seq).
					Time("last_ts", lastSent.Timestamp).
					Msg("dropping late tick")
				continue
			}

			buffer = append(buffer, t)
			if !flush(t.Timestamp.Add(-r.window)) {
				return
			}
		}

		// Inner stream finished; release whatever is left.
		flush(time.Time{})
	}()
	return out, nil
}
