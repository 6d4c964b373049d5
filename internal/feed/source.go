// Package feed supplies time-ordered tick streams to the engine.
// Sources share one contract: ticks arrive strictly ordered by
// (timestamp, seq), and the channel closes when the stream ends or the
// context is cancelled.
package feed

import (
	"context"

	"options-strategy-lab/internal/domain"
)

// Source is a stream of market ticks.
type Source interface {
	// Ticks starts the stream. The returned channel is closed when the
	// source is exhausted or ctx is cancelled. Ticks come out strictly
	// ordered by (timestamp, seq).
	Ticks(ctx context.Context) (<-chan *domain.Tick, error)

	// Bounded reports whether the stream ends on its own. Backtest
	// sources are bounded; live feeds run until cancelled.
	Bounded() bool
}

// SliceSource streams an in-memory tick slice. It backs backtests over
// preloaded data and most tests.
type SliceSource struct {
	ticks []*domain.Tick
}

var _ Source = (*SliceSource)(nil)

// NewSliceSource creates a source over the given ticks. The slice is
// sorted into deterministic order; the caller's slice is not modified.
func NewSliceSource(ticks []*domain.Tick) *SliceSource {
	owned := make([]*domain.Tick, len(ticks))
	copy(owned, ticks)
	SortTicks(owned)
	return &SliceSource{ticks: owned}
}

// Ticks streams the slice in order.
func (s *SliceSource) Ticks(ctx context.Context) (<-chan *domain.Tick, error) {
	out := make(chan *domain.Tick)
	go func() {
		defer close(out)
		for _, t := range s.ticks {
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Bounded is always true for slice sources.
func (s *SliceSource) Bounded() bool {
	return true
}
